package mvpp

import (
	"errors"
	"runtime"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Batch stores the packed feature and target tensors
// for a set of samples.
type Batch struct {
	Means   *anydiff.Const
	Spreads *anydiff.Const
	Aux     *anydiff.Const
	Targets *anydiff.Const

	// Weights is nil when every sample has unit weight.
	Weights *anydiff.Const

	Num int
}

// A Trainer can construct batches, compute gradients, and
// tally up costs for a Generator.
//
// It implements anysgd.Fetcher, anysgd.Gradienter, and
// anysgd.Coster.
type Trainer struct {
	Gen    *Generator
	Cost   anynet.Cost
	Params []*anydiff.Var

	// Average indicates whether or not the total cost
	// should be averaged before computing gradients.
	// This affects gradients, LastCost, and the output of
	// TotalCost().
	Average bool

	// After every gradient computation, LastCost is set
	// to the cost from the batch.
	LastCost anyvec.Numeric

	// MaxGos specifies the maximum goroutines to use
	// simultaneously for fetching samples.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int
}

// Fetch produces a *Batch for the subset of samples.
// The s argument must implement SampleList.
// The batch may not be empty.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	if s.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}

	l := s.(SampleList)
	means := make([]anyvec.Vector, l.Len())
	spreads := make([]anyvec.Vector, l.Len())
	aux := make([]anyvec.Vector, l.Len())
	targets := make([]anyvec.Vector, l.Len())
	weights := make([]float64, l.Len())

	idxChan := make(chan int, l.Len())
	for i := 0; i < l.Len(); i++ {
		idxChan <- i
	}
	close(idxChan)

	maxGos := t.MaxGos
	if maxGos == 0 {
		maxGos = runtime.GOMAXPROCS(0)
	}

	wg := sync.WaitGroup{}
	errChan := make(chan error, maxGos)
	for i := 0; i < maxGos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				sample, err := l.GetSample(i)
				if err != nil {
					errChan <- essentials.AddCtx("fetch batch", err)
					return
				}
				means[i] = sample.MeanFeatures
				spreads[i] = sample.SpreadFeatures
				aux[i] = sample.AuxFeatures
				targets[i] = sample.Target
				weights[i] = sample.Weight
			}
		}()
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	c := means[0].Creator()
	res := &Batch{
		Means:   anydiff.NewConst(c.Concat(means...)),
		Spreads: anydiff.NewConst(c.Concat(spreads...)),
		Aux:     anydiff.NewConst(c.Concat(aux...)),
		Targets: anydiff.NewConst(c.Concat(targets...)),
		Num:     l.Len(),
	}
	if weighted(weights) {
		for i, w := range weights {
			if w == 0 {
				weights[i] = 1
			}
		}
		res.Weights = anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(weights)))
	}
	return res, nil
}

// TotalCost computes the total cost for the *Batch.
func (t *Trainer) TotalCost(batch anysgd.Batch) anydiff.Res {
	b := batch.(*Batch)
	out := t.Gen.Forward(b.Means, b.Spreads, b.Aux, b.Num)
	cost := t.Cost.Cost(b.Targets, out, b.Num)
	if b.Weights != nil {
		cost = anydiff.Mul(cost, b.Weights)
	}
	total := anydiff.Sum(cost)
	if t.Average {
		divisor := 1 / float64(b.Num)
		return anydiff.Scale(total, total.Output().Creator().MakeNumeric(divisor))
	} else {
		return total
	}
}

// Gradient computes the gradient for the batch's cost.
// It also sets t.LastCost to the numerical value of the
// total cost.
//
// The b argument must be a *Batch.
func (t *Trainer) Gradient(b anysgd.Batch) anydiff.Grad {
	grad, lc := anysgd.CosterGrad(t, b, t.Params)
	t.LastCost = lc
	return grad
}

func weighted(ws []float64) bool {
	for _, w := range ws {
		if w != 0 && w != 1 {
			return true
		}
	}
	return false
}

func floatSum(cost anyvec.Vector) float64 {
	switch data := cost.Data().(type) {
	case []float32:
		var sum float32
		for _, x := range data {
			sum += x
		}
		return float64(sum)
	case []float64:
		var sum float64
		for _, x := range data {
			sum += x
		}
		return sum
	default:
		return 0
	}
}

func numericFloat(num anyvec.Numeric) float64 {
	switch num := num.(type) {
	case float32:
		return float64(num)
	case float64:
		return num
	default:
		return 0
	}
}
