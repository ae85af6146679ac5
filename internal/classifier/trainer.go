package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/sign2text/internal/detector"
)

// TrainConfig controls synthetic training.
type TrainConfig struct {
	Labels          []string
	SamplesPerLabel int
	Features        int
	Noise           float64
	TestFraction    float64
	Epochs          int
	LearningRate    float64
	Seed            uint64
}

// DefaultTrainConfig returns the settings used by the train-model command.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Labels:          DefaultLabels(),
		SamplesPerLabel: 100,
		Features:        detector.NumFeatures,
		Noise:           0.1,
		TestFraction:    0.2,
		Epochs:          500,
		LearningRate:    0.5,
		Seed:            42,
	}
}

// TrainReport summarizes a training run.
type TrainReport struct {
	TrainSamples int
	TestSamples  int
	TrainLoss    float64
	TestAccuracy float64
}

// Dataset is a labeled set of feature vectors.
type Dataset struct {
	X *mat.Dense // samples x features
	Y []int      // class index per sample
}

// SyntheticDataset draws SamplesPerLabel noisy copies of a random base
// pattern for every label and shuffles them.
func SyntheticDataset(cfg TrainConfig, rng *rand.Rand) Dataset {
	n := len(cfg.Labels) * cfg.SamplesPerLabel
	x := mat.NewDense(n, cfg.Features, nil)
	y := make([]int, n)

	row := 0
	base := make([]float64, cfg.Features)
	for class := range cfg.Labels {
		for j := range base {
			base[j] = rng.Float64()
		}
		for s := 0; s < cfg.SamplesPerLabel; s++ {
			for j, b := range base {
				x.Set(row, j, b+rng.NormFloat64()*cfg.Noise)
			}
			y[row] = class
			row++
		}
	}

	perm := rng.Perm(n)
	shuffled := mat.NewDense(n, cfg.Features, nil)
	sy := make([]int, n)
	for i, p := range perm {
		shuffled.SetRow(i, x.RawRowView(p))
		sy[i] = y[p]
	}
	return Dataset{X: shuffled, Y: sy}
}

// Split returns the first (1-testFraction) samples for training and the rest for testing.
func (d Dataset) Split(testFraction float64) (train, test Dataset) {
	n, c := d.X.Dims()
	cut := n - int(float64(n)*testFraction)
	if cut <= 0 || cut > n {
		cut = n
	}
	train = Dataset{X: mat.DenseCopyOf(d.X.Slice(0, cut, 0, c)), Y: d.Y[:cut]}
	if cut < n {
		test = Dataset{X: mat.DenseCopyOf(d.X.Slice(cut, n, 0, c)), Y: d.Y[cut:]}
	}
	return train, test
}

// Train fits a softmax regression on synthetic data by full-batch gradient descent.
func Train(cfg TrainConfig) (*DenseModel, TrainReport, error) {
	if len(cfg.Labels) < 2 {
		return nil, TrainReport{}, fmt.Errorf("need at least two labels, got %d", len(cfg.Labels))
	}
	if cfg.SamplesPerLabel <= 0 || cfg.Features <= 0 || cfg.Epochs <= 0 || cfg.LearningRate <= 0 {
		return nil, TrainReport{}, fmt.Errorf("invalid training config %+v", cfg)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed))
	train, test := SyntheticDataset(cfg, rng).Split(cfg.TestFraction)

	model, loss := Fit(train, len(cfg.Labels), cfg.Epochs, cfg.LearningRate)

	report := TrainReport{TrainLoss: loss}
	report.TrainSamples, _ = train.X.Dims()
	if test.X != nil {
		report.TestSamples, _ = test.X.Dims()
		report.TestAccuracy = Accuracy(model, test)
	}
	return model, report, nil
}

// Fit trains a DenseModel on d and returns it with the final cross-entropy loss.
// Features are centered during training and the shift is folded into the bias.
func Fit(d Dataset, classes, epochs int, lr float64) (*DenseModel, float64) {
	n, f := d.X.Dims()

	mean := make([]float64, f)
	col := make([]float64, n)
	for j := 0; j < f; j++ {
		mat.Col(col, j, d.X)
		mean[j] = stat.Mean(col, nil)
	}
	xc := mat.DenseCopyOf(d.X)
	for i := 0; i < n; i++ {
		floats.Sub(xc.RawRowView(i), mean)
	}

	w := mat.NewDense(classes, f, nil)
	b := make([]float64, classes)

	var logits, grad mat.Dense
	gb := make([]float64, classes)
	loss := 0.0

	for epoch := 0; epoch < epochs; epoch++ {
		logits.Mul(xc, w.T())

		loss = 0
		for i := range gb {
			gb[i] = 0
		}
		for i := 0; i < n; i++ {
			row := logits.RawRowView(i)
			floats.Add(row, b)
			softmax(row)
			loss -= logSafe(row[d.Y[i]])
			row[d.Y[i]] -= 1
			floats.Add(gb, row)
		}
		loss /= float64(n)

		grad.Mul(logits.T(), xc)
		grad.Scale(lr/float64(n), &grad)
		w.Sub(w, &grad)
		floats.AddScaled(b, -lr/float64(n), gb)
	}

	// softmax(W(x-mean)+b) == softmax(Wx + (b - W·mean))
	var shift mat.VecDense
	shift.MulVec(w, mat.NewVecDense(f, mean))
	for i := range b {
		b[i] -= shift.AtVec(i)
	}

	return &DenseModel{w: w, b: mat.NewVecDense(classes, b)}, loss
}

// Accuracy returns the fraction of samples in d that m classifies correctly.
func Accuracy(m Model, d Dataset) float64 {
	n, _ := d.X.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		probs, err := m.Probabilities(d.X.RawRowView(i))
		if err != nil {
			continue
		}
		if floats.MaxIdx(probs) == d.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

func logSafe(p float64) float64 {
	const eps = 1e-12
	if p < eps {
		p = eps
	}
	return math.Log(p)
}
