package mvpp

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var l LocallyConnected
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLocallyConnected)
}

// LocallyConnected is a layer which applies an
// independent linear unit to every output position.
// Each input vector packs Positions blocks of Depth
// features, and each position gets its own Depth weights
// and its own bias, with no sharing across positions.
type LocallyConnected struct {
	Positions int
	Depth     int
	Weights   *anydiff.Var
	Biases    *anydiff.Var
}

// DeserializeLocallyConnected attempts to deserialize a
// LocallyConnected.
func DeserializeLocallyConnected(d []byte) (*LocallyConnected, error) {
	var weights, biases *anyvecsave.S
	if err := serializer.DeserializeAny(d, &weights, &biases); err != nil {
		return nil, essentials.AddCtx("deserialize LocallyConnected", err)
	}
	positions := biases.Vector.Len()
	if positions == 0 || weights.Vector.Len()%positions != 0 {
		return nil, errors.New("deserialize LocallyConnected: invalid dimensions")
	}
	return &LocallyConnected{
		Positions: positions,
		Depth:     weights.Vector.Len() / positions,
		Weights:   anydiff.NewVar(weights.Vector),
		Biases:    anydiff.NewVar(biases.Vector),
	}, nil
}

// NewLocallyConnected creates a randomized
// LocallyConnected layer.
// The randomization scheme targets an output variance of
// 1, given that the input variance is 1.
func NewLocallyConnected(c anyvec.Creator, positions, depth int) *LocallyConnected {
	res := NewLocallyConnectedZero(c, positions, depth)
	anyvec.Rand(res.Weights.Vector, anyvec.Normal, nil)
	res.Weights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(depth))))
	return res
}

// NewLocallyConnectedZero creates a zero'd out
// LocallyConnected layer.
func NewLocallyConnectedZero(c anyvec.Creator, positions, depth int) *LocallyConnected {
	return &LocallyConnected{
		Positions: positions,
		Depth:     depth,
		Weights:   anydiff.NewVar(c.MakeVector(positions * depth)),
		Biases:    anydiff.NewVar(c.MakeVector(positions)),
	}
}

// Apply applies the layer to a batch of inputs.
// Each input must contain Positions*Depth components;
// each output contains Positions components.
func (l *LocallyConnected) Apply(in anydiff.Res, batch int) anydiff.Res {
	if batch*l.Positions*l.Depth != in.Output().Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			batch*l.Positions*l.Depth, in.Output().Len()))
	}
	c := in.Output().Creator()
	zeroBias := anydiff.NewConst(c.MakeVector(1))
	prods := anydiff.ScaleAddRepeated(in, l.Weights, zeroBias)
	sums := anydiff.SumCols(&anydiff.Matrix{
		Data: prods,
		Rows: batch * l.Positions,
		Cols: l.Depth,
	})
	return anydiff.AddRepeated(sums, l.Biases)
}

// Parameters returns a slice containing the weights and
// the biases, in that order.
func (l *LocallyConnected) Parameters() []*anydiff.Var {
	return []*anydiff.Var{l.Weights, l.Biases}
}

// SerializerType returns the unique ID used to serialize
// a LocallyConnected with the serializer package.
func (l *LocallyConnected) SerializerType() string {
	return "github.com/TimCJanke/mvpp.LocallyConnected"
}

// Serialize serializes the LocallyConnected.
func (l *LocallyConnected) Serialize() ([]byte, error) {
	weights := &anyvecsave.S{Vector: l.Weights.Vector}
	biases := &anyvecsave.S{Vector: l.Biases.Vector}
	return serializer.SerializeAny(weights, biases)
}
