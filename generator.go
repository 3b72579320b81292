package mvpp

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const (
	jointHiddenSize = 25
	wsHiddenSize    = 100
)

func init() {
	serializer.RegisterTypedDeserializer((&Generator{}).SerializerType(), DeserializeGenerator)
}

// A Generator is the generative network behind a Model.
//
// One forward pass maps three per-location feature blocks
// to SampleCount correlated output samples per example:
// the mean branch produces a conditional mean per output
// location, the spread branch produces a positive scale
// per latent dimension, a fresh latent draw is scaled by
// the spread (the reparameterization trick, so gradients
// flow through the sampling step), and the joint net maps
// each scaled draw together with the auxiliary features
// to a residual which is added to the broadcast mean.
//
// A Generator is stateless apart from its weights; every
// forward pass consumes a fresh latent draw.
type Generator struct {
	OutCount     int
	MeanCount    int
	SpreadCount  int
	FeatureCount int
	LatentCount  int
	SampleCount  int

	// MeanNet maps (OutCount*MeanCount) features to an
	// OutCount conditional mean.
	MeanNet anynet.Net

	// SpreadNet maps (OutCount*SpreadCount) features to a
	// strictly positive LatentCount scale vector.
	SpreadNet anynet.Net

	// JointNet maps each per-sample row of
	// OutCount*FeatureCount+LatentCount values to an
	// OutCount residual.
	// The same weights apply to every sample.
	JointNet anynet.Net

	// Output is applied to the final sum, e.g. Softplus
	// for non-negative outputs.
	Output Activation

	Noise *Noise
}

// DeserializeGenerator attempts to deserialize a
// Generator.
func DeserializeGenerator(d []byte) (*Generator, error) {
	var outCount, meanCount, spreadCount, featureCount, latentCount, sampleCount serializer.Int
	var meanNet, spreadNet, jointNet anynet.Net
	var output Activation
	var noise *Noise
	err := serializer.DeserializeAny(d, &outCount, &meanCount, &spreadCount,
		&featureCount, &latentCount, &sampleCount, &meanNet, &spreadNet,
		&jointNet, &output, &noise)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	return &Generator{
		OutCount:     int(outCount),
		MeanCount:    int(meanCount),
		SpreadCount:  int(spreadCount),
		FeatureCount: int(featureCount),
		LatentCount:  int(latentCount),
		SampleCount:  int(sampleCount),
		MeanNet:      meanNet,
		SpreadNet:    spreadNet,
		JointNet:     jointNet,
		Output:       output,
		Noise:        noise,
	}, nil
}

// newGeneratorT2M builds the t2m architecture: one
// independent linear unit per output location for both
// the mean and the spread input transform.
func newGeneratorT2M(c anyvec.Creator, cfg *Config, noise *Noise) *Generator {
	return &Generator{
		OutCount:     cfg.OutCount,
		MeanCount:    cfg.MeanCount,
		SpreadCount:  cfg.SpreadCount,
		FeatureCount: cfg.FeatureCount,
		LatentCount:  cfg.LatentCount,
		SampleCount:  cfg.TrainSamples,
		MeanNet: anynet.Net{
			NewLocallyConnected(c, cfg.OutCount, cfg.MeanCount),
		},
		SpreadNet: anynet.Net{
			NewLocallyConnected(c, cfg.OutCount, cfg.SpreadCount),
			anynet.NewFC(c, cfg.OutCount, cfg.LatentCount),
			Exp,
		},
		JointNet: newJointNet(c, cfg),
		Output:   Linear,
		Noise:    noise,
	}
}

// newGeneratorWS builds the ws architecture: shared
// fully-connected mean and spread networks over the
// flattened features, and a softplus output so that
// every sample is non-negative.
func newGeneratorWS(c anyvec.Creator, cfg *Config, noise *Noise) *Generator {
	return &Generator{
		OutCount:     cfg.OutCount,
		MeanCount:    cfg.MeanCount,
		SpreadCount:  cfg.SpreadCount,
		FeatureCount: cfg.FeatureCount,
		LatentCount:  cfg.LatentCount,
		SampleCount:  cfg.TrainSamples,
		MeanNet: anynet.Net{
			anynet.NewFC(c, cfg.OutCount*cfg.MeanCount, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, cfg.OutCount),
			ELU,
		},
		SpreadNet: anynet.Net{
			anynet.NewFC(c, cfg.OutCount*cfg.SpreadCount, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, wsHiddenSize),
			ELU,
			anynet.NewFC(c, wsHiddenSize, cfg.LatentCount),
			Exp,
		},
		JointNet: newJointNet(c, cfg),
		Output:   Softplus,
		Noise:    noise,
	}
}

// newJointNet builds the mixing network shared by both
// architectures.
func newJointNet(c anyvec.Creator, cfg *Config) anynet.Net {
	inSize := cfg.OutCount*cfg.FeatureCount + cfg.LatentCount
	return anynet.Net{
		anynet.NewFC(c, inSize, jointHiddenSize),
		ELU,
		anynet.NewFC(c, jointHiddenSize, jointHiddenSize),
		ELU,
		anynet.NewFC(c, jointHiddenSize, cfg.OutCount),
	}
}

// Forward generates SampleCount samples per example.
//
// The inputs pack, per example, OutCount*MeanCount mean
// features, OutCount*SpreadCount spread features, and
// OutCount*FeatureCount auxiliary features.
// The result packs an OutCount-by-SampleCount block per
// example, output dimension first.
func (g *Generator) Forward(mean, spread, aux anydiff.Res, n int) anydiff.Res {
	g.checkInput("mean", mean, n, g.MeanCount)
	g.checkInput("spread", spread, n, g.SpreadCount)
	g.checkInput("aux", aux, n, g.FeatureCount)

	c := mean.Output().Creator()
	num := g.SampleCount

	condMean := g.MeanNet.Apply(mean, n)
	scale := g.SpreadNet.Apply(spread, n)

	draw := anydiff.NewConst(g.Noise.Sample(c, n*num*g.LatentCount))
	// Explicit product keeps the sampling step
	// differentiable with respect to the spread branch.
	scaled := anydiff.Mul(repeatBlocks(scale, n, num), draw)

	rows := anynet.ConcatMixer{}.Mix(repeatBlocks(aux, n, num), scaled, n*num)
	resid := g.JointNet.Apply(rows, n*num)

	out := anydiff.Add(repeatBlocks(condMean, n, num), resid)
	out = g.Output.Apply(out, n*num)
	return sampleRowsToBlocks(out, n, num, g.OutCount)
}

// Parameters returns the parameters of all sub-networks.
func (g *Generator) Parameters() []*anydiff.Var {
	return anynet.AllParameters(g.MeanNet, g.SpreadNet, g.JointNet)
}

// SerializerType returns the unique ID used to serialize
// a Generator with the serializer package.
func (g *Generator) SerializerType() string {
	return "github.com/TimCJanke/mvpp.Generator"
}

// Serialize serializes the Generator.
func (g *Generator) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(g.OutCount),
		serializer.Int(g.MeanCount),
		serializer.Int(g.SpreadCount),
		serializer.Int(g.FeatureCount),
		serializer.Int(g.LatentCount),
		serializer.Int(g.SampleCount),
		g.MeanNet,
		g.SpreadNet,
		g.JointNet,
		g.Output,
		g.Noise,
	)
}

func (g *Generator) checkInput(name string, in anydiff.Res, n, depth int) {
	if in.Output().Len() != n*g.OutCount*depth {
		panic(fmt.Sprintf("%s input length should be %d, but got %d",
			name, n*g.OutCount*depth, in.Output().Len()))
	}
}

// repeatBlocks repeats each example's chunk of in reps
// times contiguously, turning n chunks into n*reps.
func repeatBlocks(in anydiff.Res, n, reps int) anydiff.Res {
	if reps == 1 {
		return in
	}
	size := in.Output().Len() / n
	c := in.Output().Creator()
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		zeros := anydiff.NewConst(c.MakeVector(size * reps))
		out := make([]anydiff.Res, n)
		for i := range out {
			block := anydiff.Slice(in, i*size, (i+1)*size)
			out[i] = anydiff.AddRepeated(zeros, block)
		}
		return anydiff.Concat(out...)
	})
}

// sampleRowsToBlocks transposes each example's
// samples-by-dim rows into a dim-by-samples block.
func sampleRowsToBlocks(in anydiff.Res, n, samples, dim int) anydiff.Res {
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		size := samples * dim
		out := make([]anydiff.Res, n)
		for i := range out {
			block := anydiff.Slice(in, i*size, (i+1)*size)
			mat := &anydiff.Matrix{Data: block, Rows: samples, Cols: dim}
			out[i] = anydiff.Transpose(mat).Data
		}
		return anydiff.Concat(out...)
	})
}
