package mvpp

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestNewValidation(t *testing.T) {
	good := testConfig()
	if _, err := New(anyvec32.CurrentCreator(), good); err != nil {
		t.Fatal(err)
	}
	bad := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"ZeroOut", func(c *Config) { c.OutCount = 0 }},
		{"NegativeFeatures", func(c *Config) { c.FeatureCount = -1 }},
		{"OneTrainSample", func(c *Config) { c.TrainSamples = 1 }},
		{"BadType", func(c *Config) { c.Type = ModelType(42) }},
		{"BadLatent", func(c *Config) { c.Latent = LatentDist(17) }},
		{"BadLatentParams", func(c *Config) { c.LatentParams = []float64{1} }},
	}
	for _, b := range bad {
		cfg := good
		b.mutate(&cfg)
		if _, err := New(anyvec32.CurrentCreator(), cfg); err == nil {
			t.Errorf("%s: expected error", b.name)
		}
	}
}

func TestParse(t *testing.T) {
	if typ, err := ParseModelType("ws"); err != nil || typ != WS {
		t.Errorf("parse ws: got %v, %v", typ, err)
	}
	if typ, err := ParseModelType("t2m"); err != nil || typ != T2M {
		t.Errorf("parse t2m: got %v, %v", typ, err)
	}
	if _, err := ParseModelType("gauss"); err == nil {
		t.Error("parse gauss: expected error")
	}
	if dist, err := ParseLatentDist("normal"); err != nil || dist != Normal {
		t.Errorf("parse normal: got %v, %v", dist, err)
	}
	if _, err := ParseLatentDist("cauchy"); err == nil {
		t.Error("parse cauchy: expected error")
	}
}

func TestPredictShape(t *testing.T) {
	model := testModel(t, testConfig())
	g := model.Gen
	const n = 3
	const samples = 7
	out, err := model.Predict(randomVec(n*g.OutCount*g.MeanCount),
		randomVec(n*g.OutCount*g.SpreadCount),
		randomVec(n*g.OutCount*g.FeatureCount), n, samples)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != n*g.OutCount*samples {
		t.Errorf("output length should be %d, but got %d",
			n*g.OutCount*samples, out.Len())
	}
}

func TestPredictBadShape(t *testing.T) {
	model := testModel(t, testConfig())
	g := model.Gen
	_, err := model.Predict(randomVec(g.OutCount*g.MeanCount+1),
		randomVec(g.OutCount*g.SpreadCount),
		randomVec(g.OutCount*g.FeatureCount), 1, 4)
	if err == nil {
		t.Error("expected error for mis-sized mean features")
	}
}

func TestFitHistory(t *testing.T) {
	model := testModel(t, testConfig())
	list := testSampleList(model.Gen, 6)
	var statusEpochs int
	err := model.Fit(list, FitOptions{
		BatchSize:    3,
		Epochs:       2,
		LearningRate: 0.01,
		StatusFunc: func(epoch int, cost, valCost float64) {
			statusEpochs = epoch
			if !math.IsNaN(valCost) {
				t.Errorf("epoch %d: expected NaN validation cost, got %f",
					epoch, valCost)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(model.History) != 2 {
		t.Errorf("history length should be 2, but got %d", len(model.History))
	}
	if statusEpochs != 2 {
		t.Errorf("last status epoch should be 2, but got %d", statusEpochs)
	}
	for i, c := range model.History {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			t.Errorf("epoch %d: bad cost %f", i+1, c)
		}
	}
}

func TestFitValidation(t *testing.T) {
	model := testModel(t, testConfig())
	train := testSampleList(model.Gen, 6)
	val := testSampleList(model.Gen, 3)
	err := model.Fit(train, FitOptions{
		BatchSize:  3,
		Epochs:     2,
		Validation: val,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(model.ValHistory) != 2 {
		t.Errorf("validation history length should be 2, but got %d",
			len(model.ValHistory))
	}
}

func TestFitBadSamples(t *testing.T) {
	model := testModel(t, testConfig())
	list := testSampleList(model.Gen, 3)
	list[1].Target = randomVec(model.Gen.OutCount + 1)
	if err := model.Fit(list, FitOptions{Epochs: 1}); err == nil {
		t.Error("expected error for mis-sized target")
	}
	if err := model.Fit(SliceSampleList{}, FitOptions{Epochs: 1}); err == nil {
		t.Error("expected error for empty sample list")
	}
}

func TestModelSerialize(t *testing.T) {
	model := testModel(t, testConfig())
	data, err := model.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	model1, err := DeserializeModel(data)
	if err != nil {
		t.Fatal(err)
	}
	if model1.Type != model.Type {
		t.Errorf("type should be %v, but got %v", model.Type, model1.Type)
	}
	if !reflect.DeepEqual(model.Gen, model1.Gen) {
		t.Fatal("incorrect generator")
	}
}

func testConfig() Config {
	return Config{
		OutCount:     2,
		MeanCount:    1,
		SpreadCount:  1,
		FeatureCount: 2,
		LatentCount:  2,
		TrainSamples: 5,
		Type:         T2M,
		Latent:       Uniform,
		Rand:         rand.New(rand.NewSource(7)),
	}
}

func testModel(t *testing.T, cfg Config) *Model {
	model, err := New(anyvec32.CurrentCreator(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return model
}

func testSampleList(g *Generator, count int) SliceSampleList {
	var list SliceSampleList
	for i := 0; i < count; i++ {
		list = append(list, &Sample{
			MeanFeatures:   randomVec(g.OutCount * g.MeanCount),
			SpreadFeatures: randomVec(g.OutCount * g.SpreadCount),
			AuxFeatures:    randomVec(g.OutCount * g.FeatureCount),
			Target:         randomVec(g.OutCount),
		})
	}
	return list
}

func randomVec(size int) anyvec.Vector {
	vec := anyvec32.MakeVector(size)
	anyvec.Rand(vec, anyvec.Normal, nil)
	return vec
}
