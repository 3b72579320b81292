package mvpp

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// Default training hyper-parameters, used by Fit when the
// corresponding option is zero.
const (
	DefaultBatchSize    = 64
	DefaultEpochs       = 300
	DefaultLearningRate = 0.01
)

func init() {
	serializer.RegisterTypedDeserializer((&Model{}).SerializerType(), DeserializeModel)
}

// A Config describes a conditional generative model.
type Config struct {
	// OutCount is the number of output dimensions
	// (e.g. forecast locations).
	OutCount int

	// MeanCount, SpreadCount, and FeatureCount are the
	// per-location feature counts for the mean branch,
	// the spread branch, and the joint mixing branch.
	MeanCount    int
	SpreadCount  int
	FeatureCount int

	// LatentCount is the number of latent variables.
	LatentCount int

	// TrainSamples is the number of predictive samples
	// drawn per forward pass during training.
	// It must be at least 2.
	TrainSamples int

	// Type selects the network architecture.
	Type ModelType

	// Latent selects the latent noise family, and
	// LatentParams optionally overrides its parameters:
	// (min, max) for Uniform, (mean, stddev) for Normal.
	Latent       LatentDist
	LatentParams []float64

	// Rand, if non-nil, seeds the latent sampler.
	Rand *rand.Rand
}

func (c *Config) validate() error {
	dims := []struct {
		name string
		val  int
	}{
		{"OutCount", c.OutCount},
		{"MeanCount", c.MeanCount},
		{"SpreadCount", c.SpreadCount},
		{"FeatureCount", c.FeatureCount},
		{"LatentCount", c.LatentCount},
	}
	for _, d := range dims {
		if d.val < 1 {
			return fmt.Errorf("%s must be positive, got %d", d.name, d.val)
		}
	}
	if c.TrainSamples < 2 {
		// The pairwise term of the energy score divides
		// by N*(N-1).
		return fmt.Errorf("TrainSamples must be at least 2, got %d", c.TrainSamples)
	}
	switch c.Type {
	case T2M, WS:
	default:
		return fmt.Errorf("unknown model type: %v", c.Type)
	}
	switch c.Latent {
	case Uniform, Normal:
	default:
		return fmt.Errorf("unknown latent distribution: %v", c.Latent)
	}
	return nil
}

// A Model wraps a Generator with training and prediction.
//
// Fit mutates the Generator's parameters in place;
// Predict is read-only with respect to them.
// Concurrent calls to Fit and Predict on the same Model
// must be serialized by the caller.
type Model struct {
	Type ModelType
	Gen  *Generator

	// History holds the average training loss of every
	// completed epoch of every Fit call.
	// ValHistory holds the validation loss when Fit had
	// validation data.
	History    []float64
	ValHistory []float64
}

// New creates a randomly initialized Model.
// It fails if any Config field is out of range.
func New(c anyvec.Creator, cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, essentials.AddCtx("new model", err)
	}
	noise, err := NewNoise(cfg.Latent, cfg.LatentParams, cfg.Rand)
	if err != nil {
		return nil, essentials.AddCtx("new model", err)
	}
	m := &Model{Type: cfg.Type}
	switch cfg.Type {
	case T2M:
		m.Gen = newGeneratorT2M(c, &cfg, noise)
	case WS:
		m.Gen = newGeneratorWS(c, &cfg, noise)
	}
	return m, nil
}

// DeserializeModel attempts to deserialize a Model.
func DeserializeModel(d []byte) (*Model, error) {
	var typ serializer.Int
	var gen *Generator
	if err := serializer.DeserializeAny(d, &typ, &gen); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	switch ModelType(typ) {
	case T2M, WS:
	default:
		return nil, fmt.Errorf("deserialize Model: unknown model type ID: %d", typ)
	}
	return &Model{Type: ModelType(typ), Gen: gen}, nil
}

// FitOptions configures a call to Fit.
// The zero value requests the defaults.
type FitOptions struct {
	// BatchSize is the minibatch size
	// (DefaultBatchSize if 0).
	BatchSize int

	// Epochs is the number of passes over the training
	// data (DefaultEpochs if 0).
	Epochs int

	// LearningRate is the Adam step size
	// (DefaultLearningRate if 0).
	LearningRate float64

	// Verbose enables per-epoch log output.
	Verbose bool

	// StatusFunc, if non-nil, is called after every
	// epoch with the 1-based epoch number, the average
	// training loss, and the validation loss (NaN when
	// there is no validation data).
	StatusFunc func(epoch int, cost, valCost float64)

	// ValidationSplit, if positive, holds out this
	// fraction of the samples for validation.
	// The list must implement anysgd.Hasher; the split
	// is deterministic in the sample contents.
	// Ignored when Validation is set.
	ValidationSplit float64

	// Validation is an explicit held-out sample list.
	Validation SampleList

	// Done, if non-nil, stops training early when it is
	// closed.
	Done <-chan struct{}
}

// Fit trains the model with the energy score as the
// objective and Adam as the optimizer.
//
// Every sample's tensor shapes are validated before any
// computation happens.
func (m *Model) Fit(list SampleList, opts FitOptions) error {
	if list.Len() == 0 {
		return errors.New("fit: empty sample list")
	}
	if err := m.checkSamples(list); err != nil {
		return essentials.AddCtx("fit", err)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	rate := opts.LearningRate
	if rate <= 0 {
		rate = DefaultLearningRate
	}

	var train anysgd.SampleList = list
	val := anysgd.SampleList(opts.Validation)
	if opts.Validation == nil && opts.ValidationSplit > 0 {
		h, ok := list.(anysgd.Hasher)
		if !ok {
			return errors.New("fit: validation split requires an anysgd.Hasher")
		}
		val, train = anysgd.HashSplit(h, opts.ValidationSplit)
		if train.Len() == 0 {
			return errors.New("fit: validation split left no training samples")
		}
	}

	t := &Trainer{
		Gen:     m.Gen,
		Cost:    EnergyScore{},
		Params:  m.Gen.Parameters(),
		Average: true,
	}

	stepsPerEpoch := (train.Len() + batchSize - 1) / batchSize
	totalSteps := epochs * stepsPerEpoch

	stop := make(chan struct{})
	var once sync.Once
	finish := func() {
		once.Do(func() {
			close(stop)
		})
	}
	if opts.Done != nil {
		go func() {
			select {
			case <-opts.Done:
				finish()
			case <-stop:
			}
		}()
	}

	// The status hook sees the cost of the previous step,
	// so completed steps are tallied one call behind.
	var step int
	var epochCost float64
	sgd := &anysgd.SGD{
		Fetcher:     t,
		Gradienter:  t,
		Transformer: &anysgd.Adam{},
		Samples:     train,
		Rater:       anysgd.ConstRater(rate),
		BatchSize:   batchSize,
		StatusFunc: func(b anysgd.Batch) {
			if step > 0 {
				epochCost += numericFloat(t.LastCost)
				if step%stepsPerEpoch == 0 {
					m.finishEpoch(t, val, step/stepsPerEpoch,
						epochCost/float64(stepsPerEpoch), &opts)
					epochCost = 0
				}
			}
			if step >= totalSteps {
				finish()
				return
			}
			step++
		},
	}
	err := sgd.Run(stop)
	finish()
	if err != nil {
		return essentials.AddCtx("fit", err)
	}
	return nil
}

func (m *Model) finishEpoch(t *Trainer, val anysgd.SampleList, epoch int,
	cost float64, opts *FitOptions) {
	m.History = append(m.History, cost)
	valCost := math.NaN()
	if val != nil && val.Len() > 0 {
		valCost = m.validationCost(t, val)
		m.ValHistory = append(m.ValHistory, valCost)
	}
	if opts.Verbose {
		if math.IsNaN(valCost) {
			log.Printf("epoch %d: cost=%f", epoch, cost)
		} else {
			log.Printf("epoch %d: cost=%f val_cost=%f", epoch, cost, valCost)
		}
	}
	if opts.StatusFunc != nil {
		opts.StatusFunc(epoch, cost, valCost)
	}
}

func (m *Model) validationCost(t *Trainer, val anysgd.SampleList) float64 {
	batch, err := t.Fetch(val)
	if err != nil {
		return math.NaN()
	}
	return floatSum(t.TotalCost(batch).Output())
}

// Predict draws predictive samples for a batch of n
// examples.
//
// Samples are generated in independent forward passes of
// the generator, each with a fresh latent draw,
// concatenated along the sample axis and truncated to
// exactly the requested count.
// The result packs an OutCount-by-samples block per
// example.
func (m *Model) Predict(mean, spread, aux anyvec.Vector, n, samples int) (anyvec.Vector, error) {
	if n < 1 {
		return nil, errors.New("predict: batch must not be empty")
	}
	if samples < 1 {
		return nil, errors.New("predict: sample count must be positive")
	}
	g := m.Gen
	checks := []struct {
		name   string
		vec    anyvec.Vector
		length int
	}{
		{"mean features", mean, n * g.OutCount * g.MeanCount},
		{"spread features", spread, n * g.OutCount * g.SpreadCount},
		{"aux features", aux, n * g.OutCount * g.FeatureCount},
	}
	for _, ch := range checks {
		if err := checkTensor(ch.name, ch.vec, ch.length); err != nil {
			return nil, essentials.AddCtx("predict", err)
		}
	}

	passes := (samples + g.SampleCount - 1) / g.SampleCount
	outs := make([]anyvec.Vector, passes)
	for i := range outs {
		res := g.Forward(anydiff.NewConst(mean), anydiff.NewConst(spread),
			anydiff.NewConst(aux), n)
		outs[i] = res.Output()
	}

	c := mean.Creator()
	var chunks []anyvec.Vector
	for b := 0; b < n; b++ {
		for d := 0; d < g.OutCount; d++ {
			start := (b*g.OutCount + d) * g.SampleCount
			remaining := samples
			for k := 0; k < passes && remaining > 0; k++ {
				take := g.SampleCount
				if take > remaining {
					take = remaining
				}
				chunks = append(chunks, outs[k].Slice(start, start+take))
				remaining -= take
			}
		}
	}
	return c.Concat(chunks...), nil
}

// Parameters returns the learnable parameters of the
// underlying Generator.
func (m *Model) Parameters() []*anydiff.Var {
	return m.Gen.Parameters()
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/TimCJanke/mvpp.Model"
}

// Serialize serializes the Model.
// Loss history and the latent random source are not
// serialized.
func (m *Model) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Int(m.Type), m.Gen)
}

func (m *Model) checkSamples(list SampleList) error {
	g := m.Gen
	for i := 0; i < list.Len(); i++ {
		s, err := list.GetSample(i)
		if err != nil {
			return err
		}
		checks := []struct {
			name   string
			vec    anyvec.Vector
			length int
		}{
			{"mean features", s.MeanFeatures, g.OutCount * g.MeanCount},
			{"spread features", s.SpreadFeatures, g.OutCount * g.SpreadCount},
			{"aux features", s.AuxFeatures, g.OutCount * g.FeatureCount},
			{"target", s.Target, g.OutCount},
		}
		for _, ch := range checks {
			if err := checkTensor(ch.name, ch.vec, ch.length); err != nil {
				return fmt.Errorf("sample %d: %v", i, err)
			}
		}
	}
	return nil
}

func checkTensor(name string, v anyvec.Vector, length int) error {
	if v == nil {
		return fmt.Errorf("%s must not be nil", name)
	}
	if v.Len() != length {
		return fmt.Errorf("%s length should be %d, but got %d", name, length, v.Len())
	}
	return nil
}
