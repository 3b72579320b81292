package mvpp

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Noise{}).SerializerType(), DeserializeNoise)
}

// Noise draws i.i.d. latent values from a fixed
// parametric family.
// The family and its parameters are chosen at
// construction time and never change for the lifetime of
// a model; only the draws themselves are random.
type Noise struct {
	Dist LatentDist

	// Params is (min, max) for Uniform and
	// (mean, stddev) for Normal.
	Params [2]float64

	// Source, if non-nil, is the random source used for
	// all draws, making them reproducible.
	// If nil, the global source is used.
	Source *rand.Rand
}

// DeserializeNoise deserializes a Noise.
// The Source will be nil.
func DeserializeNoise(d []byte) (*Noise, error) {
	var dist serializer.Int
	var p0, p1 serializer.Float64
	if err := serializer.DeserializeAny(d, &dist, &p0, &p1); err != nil {
		return nil, essentials.AddCtx("deserialize Noise", err)
	}
	if LatentDist(dist) != Uniform && LatentDist(dist) != Normal {
		return nil, fmt.Errorf("deserialize Noise: unknown distribution ID: %d", dist)
	}
	return &Noise{
		Dist:   LatentDist(dist),
		Params: [2]float64{float64(p0), float64(p1)},
	}, nil
}

// NewNoise creates a Noise for the given family.
// If params is nil, the defaults (-1, 1) for Uniform and
// (0, 1) for Normal are used; otherwise params must hold
// exactly two values.
// The source may be nil.
func NewNoise(dist LatentDist, params []float64, source *rand.Rand) (*Noise, error) {
	res := &Noise{Dist: dist, Source: source}
	switch dist {
	case Uniform:
		res.Params = [2]float64{-1, 1}
	case Normal:
		res.Params = [2]float64{0, 1}
	default:
		return nil, fmt.Errorf("new noise: unknown distribution: %v", dist)
	}
	if params != nil {
		if len(params) != 2 {
			return nil, fmt.Errorf("new noise: need 2 distribution parameters, got %d",
				len(params))
		}
		copy(res.Params[:], params)
	}
	return res, nil
}

// Sample draws count fresh independent values.
// Every call produces a new draw; draws are never cached
// or reused.
func (z *Noise) Sample(c anyvec.Creator, count int) anyvec.Vector {
	vec := c.MakeVector(count)
	switch z.Dist {
	case Uniform:
		anyvec.Rand(vec, anyvec.Uniform, z.Source)
		vec.Scale(c.MakeNumeric(z.Params[1] - z.Params[0]))
		vec.AddScalar(c.MakeNumeric(z.Params[0]))
	case Normal:
		anyvec.Rand(vec, anyvec.Normal, z.Source)
		vec.Scale(c.MakeNumeric(z.Params[1]))
		vec.AddScalar(c.MakeNumeric(z.Params[0]))
	default:
		panic(fmt.Sprintf("unknown distribution: %d", z.Dist))
	}
	return vec
}

// SerializerType returns the unique ID used to serialize
// a Noise with the serializer package.
func (z *Noise) SerializerType() string {
	return "github.com/TimCJanke/mvpp.Noise"
}

// Serialize serializes the family and its parameters.
// The random source is not serialized.
func (z *Noise) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(z.Dist),
		serializer.Float64(z.Params[0]),
		serializer.Float64(z.Params[1]),
	)
}
