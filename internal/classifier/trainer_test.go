package classifier

import (
	"math/rand/v2"
	"path/filepath"
	"testing"
)

func smallConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Labels = []string{"hello", "thank you", "please", "A", "B"}
	cfg.SamplesPerLabel = 40
	cfg.Epochs = 150
	return cfg
}

func TestSyntheticDataset(t *testing.T) {
	cfg := smallConfig()
	d := SyntheticDataset(cfg, rand.New(rand.NewPCG(1, 2)))

	n, f := d.X.Dims()
	if n != 200 || f != 63 {
		t.Fatalf("dataset is %dx%d, want 200x63", n, f)
	}

	counts := make(map[int]int)
	for _, y := range d.Y {
		counts[y]++
	}
	for class := range cfg.Labels {
		if counts[class] != 40 {
			t.Errorf("class %d has %d samples, want 40", class, counts[class])
		}
	}

	train, test := d.Split(0.2)
	tn, _ := train.X.Dims()
	vn, _ := test.X.Dims()
	if tn != 160 || vn != 40 {
		t.Errorf("split %d/%d, want 160/40", tn, vn)
	}
}

func TestTrain(t *testing.T) {
	model, report, err := Train(smallConfig())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.TrainSamples != 160 || report.TestSamples != 40 {
		t.Errorf("report samples %d/%d", report.TrainSamples, report.TestSamples)
	}
	if report.TestAccuracy < 0.95 {
		t.Errorf("holdout accuracy %.2f, want >= 0.95", report.TestAccuracy)
	}
	if model.Inputs() != 63 || model.Classes() != 5 {
		t.Errorf("model is %dx%d", model.Classes(), model.Inputs())
	}
}

func TestTrain_Deterministic(t *testing.T) {
	cfg := smallConfig()
	cfg.Epochs = 10

	a, _, _ := Train(cfg)
	b, _, _ := Train(cfg)

	x := make([]float64, 63)
	for i := range x {
		x[i] = 0.5
	}
	pa, _ := a.Probabilities(x)
	pb, _ := b.Probabilities(x)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatal("same seed should produce the same model")
		}
	}
}

func TestTrain_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Labels = []string{"only"}
	if _, _, err := Train(cfg); err == nil {
		t.Error("expected error for a single label")
	}

	cfg = smallConfig()
	cfg.Epochs = 0
	if _, _, err := Train(cfg); err == nil {
		t.Error("expected error for zero epochs")
	}
}

func TestTrain_RecognizerEndToEnd(t *testing.T) {
	cfg := smallConfig()
	model, _, err := Train(cfg)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	labelsPath := filepath.Join(dir, "labels.txt")
	if err := model.Save(modelPath); err != nil {
		t.Fatal(err)
	}
	if err := SaveLabels(labelsPath, cfg.Labels); err != nil {
		t.Fatal(err)
	}

	m, labels, err := Load(modelPath, labelsPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := NewRecognizer(0.7)
	r.SetModel(m, labels)
	defer r.Close()

	// Regenerate the same data to get samples from known classes.
	d := SyntheticDataset(cfg, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed)))
	recognized := 0
	n, _ := d.X.Dims()
	for i := 0; i < n; i++ {
		p, err := r.Classify(d.X.RawRowView(i))
		if err != nil {
			t.Fatal(err)
		}
		if p.Label == cfg.Labels[d.Y[i]] {
			recognized++
		}
	}
	if float64(recognized)/float64(n) < 0.9 {
		t.Errorf("recognized %d of %d samples above threshold", recognized, n)
	}
}
