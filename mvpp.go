// Package mvpp implements conditional generative models
// for multivariate probabilistic forecasting.
// A model maps per-location feature tensors and a fresh
// latent draw to an ensemble of correlated output samples,
// and is trained end-to-end by minimizing the energy
// score, a proper scoring rule evaluated directly on the
// sample ensemble.
package mvpp

import "fmt"

// A ModelType selects one of the two generative network
// architectures.
type ModelType int

// These are the supported architectures.
//
// T2M models each output location's conditional mean and
// spread with an independent linear unit per location,
// suited to variables like temperature where local linear
// relationships dominate.
//
// WS shares fully-connected mean and spread networks
// across locations and passes the output through a
// softplus, suited to non-negative variables like wind
// speed with strong spatial correlation.
const (
	T2M ModelType = iota
	WS
)

// ParseModelType parses the textual names "t2m" and "ws".
func ParseModelType(s string) (ModelType, error) {
	switch s {
	case "t2m":
		return T2M, nil
	case "ws":
		return WS, nil
	default:
		return 0, fmt.Errorf("parse model type: unknown model type: %q", s)
	}
}

// String returns the textual name of the model type.
func (m ModelType) String() string {
	switch m {
	case T2M:
		return "t2m"
	case WS:
		return "ws"
	default:
		return fmt.Sprintf("ModelType(%d)", int(m))
	}
}

// A LatentDist selects the parametric family of the
// latent noise distribution.
type LatentDist int

// These are the supported latent families.
// Uniform is parameterized by (min, max) and Normal by
// (mean, stddev).
const (
	Uniform LatentDist = iota
	Normal
)

// ParseLatentDist parses the textual names "uniform" and
// "normal".
func ParseLatentDist(s string) (LatentDist, error) {
	switch s {
	case "uniform":
		return Uniform, nil
	case "normal":
		return Normal, nil
	default:
		return 0, fmt.Errorf("parse latent distribution: unknown distribution: %q", s)
	}
}

// String returns the textual name of the distribution.
func (l LatentDist) String() string {
	switch l {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("LatentDist(%d)", int(l))
	}
}
