package mvpp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestEnergyScoreValues(t *testing.T) {
	// D=1, truth 0, samples {1, 3}:
	// (|0-1|+|0-3|)/2 - |1-3|/2 = 2 - 1 = 1.
	testScore(t, []float32{0}, []float32{1, 3}, []float32{1}, 1)

	// Second example: truth 2, samples {2, 4}:
	// (0+2)/2 - 2/2 = 0.
	testScore(t, []float32{
		0,
		2,
	}, []float32{
		1, 3,
		2, 4,
	}, []float32{1, 0}, 2)

	// D=2, N=2: truth (0,0), samples (3,4) and (0,0):
	// (5+0)/2 - 5/2 = 0.
	testScore(t, []float32{0, 0}, []float32{
		3, 0,
		4, 0,
	}, []float32{0}, 1)
}

func TestEnergyScoreZero(t *testing.T) {
	// A perfect ensemble scores 0 (modulo the radicand
	// clamp).
	testScore(t, []float32{1, -2}, []float32{
		1, 1, 1, 1,
		-2, -2, -2, -2,
	}, []float32{0}, 1)
}

func TestEnergyScorePermutation(t *testing.T) {
	desired := []float32{0.5, -1.5}
	block := []float32{
		1, -2, 0.5,
		3, 0.25, -1,
	}
	permuted := []float32{
		-2, 0.5, 1,
		0.25, -1, 3,
	}
	score1 := scoreOf(desired, block, 1)
	score2 := scoreOf(desired, permuted, 1)
	if math.Abs(float64(score1-score2)) > 1e-4 {
		t.Errorf("permuting the sample axis changed the score: %f vs %f",
			score1, score2)
	}
}

func TestEnergyScoreNonNegative(t *testing.T) {
	gen := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		desired := make([]float32, 3)
		block := make([]float32, 3*5)
		for j := range desired {
			desired[j] = float32(gen.NormFloat64())
		}
		for j := range block {
			block[j] = float32(gen.NormFloat64())
		}
		if score := scoreOf(desired, block, 1); score < -1e-4 {
			t.Errorf("negative score: %f", score)
		}
	}
}

func TestEnergyScoreProp(t *testing.T) {
	c := anyvec64.CurrentCreator()
	truth := anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{
		0.5, -1.2,
		2.0, 0.3,
	})))
	preds := anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{
		1.1, -0.7, 0.4,
		-2.3, 1.9, 0.8,
		0.9, 2.6, -1.4,
		1.7, -0.2, 3.1,
	})))
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return EnergyScore{}.Cost(truth, preds, 2)
		},
		V: []*anydiff.Var{truth, preds},
	}
	checker.FullCheck(t)
}

func scoreOf(desired, block []float32, n int) float32 {
	desiredRes := anydiff.NewConst(anyvec32.MakeVectorData(desired))
	blockRes := anydiff.NewConst(anyvec32.MakeVectorData(block))
	out := EnergyScore{}.Cost(desiredRes, blockRes, n).Output().Data().([]float32)
	return out[0]
}

func testScore(t *testing.T, desired, block, expected []float32, n int) {
	desiredRes := anydiff.NewConst(anyvec32.MakeVectorData(desired))
	blockRes := anydiff.NewConst(anyvec32.MakeVectorData(block))

	actual := EnergyScore{}.Cost(desiredRes, blockRes, n).Output().Data().([]float32)

	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(float64(a)) || math.Abs(float64(x-a)) > 1e-3 {
			t.Errorf("component %d: expected %f but got %f", i, x, a)
		}
	}
}
