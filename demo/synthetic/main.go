// Command synthetic trains a wind-speed style conditional
// generative model on synthetic spatially correlated data
// and reports the energy score on a held-out test set.
package main

import (
	"log"
	"math"
	"math/rand"

	"github.com/TimCJanke/mvpp"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/rip"
)

const (
	numTrain     = 400
	numTest      = 64
	outCount     = 3
	meanCount    = 2
	spreadCount  = 2
	featureCount = 4
	latentCount  = 3
	trainSamples = 10
	testSamples  = 50
)

var Creator anyvec.Creator

func main() {
	log.Println("Setting up...")

	Creator = anyvec32.CurrentCreator()
	rng := rand.New(rand.NewSource(1337))

	model, err := mvpp.New(Creator, mvpp.Config{
		OutCount:     outCount,
		MeanCount:    meanCount,
		SpreadCount:  spreadCount,
		FeatureCount: featureCount,
		LatentCount:  latentCount,
		TrainSamples: trainSamples,
		Type:         mvpp.WS,
		Latent:       mvpp.Uniform,
		Rand:         rng,
	})
	if err != nil {
		log.Fatal(err)
	}

	train := makeSamples(rng, numTrain)
	test := makeSamples(rng, numTest)

	log.Println("Press ctrl+c once to stop...")
	err = model.Fit(train, mvpp.FitOptions{
		Epochs:          60,
		BatchSize:       32,
		LearningRate:    0.01,
		Verbose:         true,
		ValidationSplit: 0.1,
		Done:            rip.NewRIP().Chan(),
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Computing statistics...")
	printStats(model, test)
}

// makeSamples synthesizes examples whose targets share a
// common noise factor across locations, so the output
// dimensions are correlated.
func makeSamples(rng *rand.Rand, n int) mvpp.SliceSampleList {
	list := make(mvpp.SliceSampleList, n)
	for i := range list {
		meanF := make([]float64, outCount*meanCount)
		spreadF := make([]float64, outCount*spreadCount)
		auxF := make([]float64, outCount*featureCount)
		target := make([]float64, outCount)
		shared := rng.NormFloat64()
		for d := 0; d < outCount; d++ {
			m1, m2 := rng.NormFloat64(), rng.NormFloat64()
			s1, s2 := rng.Float64(), rng.Float64()
			meanF[d*meanCount] = m1
			meanF[d*meanCount+1] = m2
			spreadF[d*spreadCount] = s1
			spreadF[d*spreadCount+1] = s2
			copy(auxF[d*featureCount:], []float64{m1, m2, s1, s2})
			sd := 0.3 + 0.5*s1
			y := 3 + 1.2*m1 + 0.6*m2 + sd*(0.8*shared+0.6*rng.NormFloat64())
			target[d] = math.Max(0, y)
		}
		list[i] = &mvpp.Sample{
			MeanFeatures:   vec(meanF),
			SpreadFeatures: vec(spreadF),
			AuxFeatures:    vec(auxF),
			Target:         vec(target),
		}
	}
	return list
}

func printStats(model *mvpp.Model, test mvpp.SliceSampleList) {
	var means, spreads, aux, targets []anyvec.Vector
	for _, s := range test {
		means = append(means, s.MeanFeatures)
		spreads = append(spreads, s.SpreadFeatures)
		aux = append(aux, s.AuxFeatures)
		targets = append(targets, s.Target)
	}
	preds, err := model.Predict(Creator.Concat(means...), Creator.Concat(spreads...),
		Creator.Concat(aux...), len(test), testSamples)
	if err != nil {
		log.Fatal(err)
	}
	scores := mvpp.EnergyScore{}.Cost(
		anydiff.NewConst(Creator.Concat(targets...)),
		anydiff.NewConst(preds),
		len(test),
	)
	log.Printf("test energy score: %f", vecMean(scores.Output()))
}

func vec(d []float64) anyvec.Vector {
	return Creator.MakeVectorData(Creator.MakeNumericList(d))
}

func vecMean(v anyvec.Vector) float64 {
	var sum float64
	for _, x := range v.Data().([]float32) {
		sum += float64(x)
	}
	return sum / float64(v.Len())
}
