package mvpp

import (
	"fmt"

	"github.com/unixpickle/anydiff"
)

// ScoreEpsilon is the lower clamp applied to squared
// distances before taking square roots in EnergyScore.
// Without it, the zero self-distances on the diagonal of
// the pairwise term would produce NaN gradients.
const ScoreEpsilon = 1e-7

// EnergyScore is an anynet.Cost that evaluates a sample
// ensemble against an observed vector using the energy
// score, a proper scoring rule.
//
// For an observation y and samples x_1, ..., x_N, the
// score is
//
//     (1/N) Σ_i ||y - x_i|| -
//         1/(2N(N-1)) Σ_i Σ_j ||x_i - x_j||
//
// with Euclidean norms over the output dimensions.
// The desired batch must pack one vector of D values per
// example and the actual batch must pack a D-by-N sample
// block per example, with N >= 2.
//
// All distances are computed from Gram matrices rather
// than explicit pairwise differences, so the cost of one
// example is dominated by two matrix products.
type EnergyScore struct{}

// Cost computes a score for each example in the batch.
func (e EnergyScore) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	if desired.Output().Len()%n != 0 || actual.Output().Len()%n != 0 {
		panic("batch size must divide input length")
	}
	dim := desired.Output().Len() / n
	blockLen := actual.Output().Len() / n
	if blockLen%dim != 0 {
		panic(fmt.Sprintf("sample block length %d not divisible by dimension %d",
			blockLen, dim))
	}
	num := blockLen / dim
	if num < 2 {
		panic("energy score requires at least two samples")
	}
	return anydiff.Pool(desired, func(desired anydiff.Res) anydiff.Res {
		return anydiff.Pool(actual, func(actual anydiff.Res) anydiff.Res {
			scores := make([]anydiff.Res, n)
			for i := range scores {
				truth := anydiff.Slice(desired, i*dim, (i+1)*dim)
				block := anydiff.Slice(actual, i*blockLen, (i+1)*blockLen)
				scores[i] = energyScore(truth, block, dim, num)
			}
			return anydiff.Concat(scores...)
		})
	})
}

// energyScore scores one D-by-N sample block against one
// observation of D values.
func energyScore(truth, block anydiff.Res, dim, num int) anydiff.Res {
	c := truth.Output().Creator()
	return anydiff.Pool(truth, func(truth anydiff.Res) anydiff.Res {
		return anydiff.Pool(block, func(block anydiff.Res) anydiff.Res {
			mat := &anydiff.Matrix{Data: block, Rows: dim, Cols: num}

			// Squared norm of every sample, via
			// ||x_i||^2 = Σ_d block[d][i]^2.
			sqMat := anydiff.Transpose(&anydiff.Matrix{
				Data: anydiff.Square(block),
				Rows: dim,
				Cols: num,
			})
			sqNorms := anydiff.SumCols(sqMat)

			return anydiff.Pool(sqNorms, func(sqNorms anydiff.Res) anydiff.Res {
				// ||y - x_i||^2 = ||y||^2 + ||x_i||^2 - 2<y, x_i>
				truthMat := &anydiff.Matrix{Data: truth, Rows: dim, Cols: 1}
				cross := anydiff.MatMul(true, false, truthMat, mat)
				truthSq := anydiff.Sum(anydiff.Square(truth))
				truthDists := anydiff.AddRepeated(
					anydiff.Add(sqNorms, anydiff.Scale(cross.Data, c.MakeNumeric(-2))),
					truthSq,
				)
				term1 := anydiff.Sum(sqrtClipped(truthDists))

				// ||x_i - x_j||^2 = ||x_i||^2 + ||x_j||^2 - 2 G[i][j]
				// where G is the Gram matrix of the samples.
				gram := anydiff.MatMul(true, false, mat, mat)
				half := anydiff.AddRepeated(
					anydiff.Scale(gram.Data, c.MakeNumeric(-1)),
					sqNorms,
				)
				pairDists := anydiff.Pool(half, func(half anydiff.Res) anydiff.Res {
					trans := anydiff.Transpose(&anydiff.Matrix{
						Data: half,
						Rows: num,
						Cols: num,
					})
					return anydiff.Add(half, trans.Data)
				})
				term2 := anydiff.Sum(sqrtClipped(pairDists))

				return anydiff.Add(
					anydiff.Scale(term1, c.MakeNumeric(1/float64(num))),
					anydiff.Scale(term2,
						c.MakeNumeric(-1/(2*float64(num)*float64(num-1)))),
				)
			})
		})
	})
}

// sqrtClipped takes elementwise square roots, clamping
// every radicand to at least ScoreEpsilon.
func sqrtClipped(in anydiff.Res) anydiff.Res {
	c := in.Output().Creator()
	clipped := anydiff.AddScalar(
		anydiff.ClipPos(anydiff.AddScalar(in, c.MakeNumeric(-ScoreEpsilon))),
		c.MakeNumeric(ScoreEpsilon),
	)
	return anydiff.Pow(clipped, c.MakeNumeric(0.5))
}
