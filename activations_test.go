package mvpp

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestActivationValues(t *testing.T) {
	inputs := []float64{-2, -0.5, 0, 0.5, 2}
	fns := map[Activation]func(x float64) float64{
		ELU: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return math.Exp(x) - 1
		},
		Exp:      math.Exp,
		Softplus: func(x float64) float64 { return math.Log1p(math.Exp(x)) },
		Linear:   func(x float64) float64 { return x },
	}
	for act, fn := range fns {
		in32 := make([]float32, len(inputs))
		for i, x := range inputs {
			in32[i] = float32(x)
		}
		in := anydiff.NewConst(anyvec32.MakeVectorData(in32))
		actual := act.Apply(in, 1).Output().Data().([]float32)
		for i, x := range inputs {
			expected := fn(x)
			if math.Abs(float64(actual[i])-expected) > 1e-4 {
				t.Errorf("%v(%f): expected %f but got %f", act, x, expected, actual[i])
			}
		}
	}
}

func TestActivationProp(t *testing.T) {
	// Inputs stay away from 0, where ELU's derivative
	// is not smooth.
	c := anyvec64.CurrentCreator()
	in := anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{
		-2, -0.5, 0.5, 2, 1.25, -1.25,
	})))
	for _, act := range []Activation{ELU, Exp, Softplus, Linear} {
		checker := &anydifftest.ResChecker{
			F: func() anydiff.Res {
				return act.Apply(in, 2)
			},
			V: []*anydiff.Var{in},
		}
		checker.FullCheck(t)
	}
}

func TestActivationSerialize(t *testing.T) {
	data, err := serializer.SerializeAny(ELU, Exp, Softplus, Linear)
	if err != nil {
		t.Fatal(err)
	}
	var a1, a2, a3, a4 Activation
	if err := serializer.DeserializeAny(data, &a1, &a2, &a3, &a4); err != nil {
		t.Fatal(err)
	}
	if a1 != ELU || a2 != Exp || a3 != Softplus || a4 != Linear {
		t.Error("incorrect result")
	}
}
