package mvpp

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is an elementwise activation function
// used by the generative networks.
type Activation int

// These are the supported activation functions.
//
// Exp guarantees a strictly positive output and is used
// for spread branches; Softplus is the smooth positivity
// transform applied to WS model outputs; Linear is the
// identity.
const (
	ELU Activation = iota
	Exp
	Softplus
	Linear
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > Linear {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	c := in.Output().Creator()
	switch a {
	case ELU:
		return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
			posPart := anydiff.ClipPos(in)
			negPart := clipNeg(in)
			return anydiff.Add(
				posPart,
				anydiff.AddScalar(anydiff.Exp(negPart), c.MakeNumeric(-1)),
			)
		})
	case Exp:
		return anydiff.Exp(in)
	case Softplus:
		// log(1+e^x) = -log(sigmoid(-x))
		return anydiff.Scale(
			anydiff.LogSigmoid(anydiff.Scale(in, c.MakeNumeric(-1))),
			c.MakeNumeric(-1),
		)
	case Linear:
		return in
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/TimCJanke/mvpp.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

func clipNeg(vec anydiff.Res) anydiff.Res {
	c := vec.Output().Creator()
	return anydiff.Scale(
		anydiff.ClipPos(anydiff.Scale(vec, c.MakeNumeric(-1))),
		c.MakeNumeric(-1),
	)
}
