package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// denseFormat is the on-disk representation of a DenseModel.
type denseFormat struct {
	Format  string      `json:"format"`
	Inputs  int         `json:"inputs"`
	Classes int         `json:"classes"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

const denseFormatName = "sign2text-dense-v1"

// DenseModel is a single layer softmax classifier: softmax(W·x + b).
type DenseModel struct {
	w *mat.Dense // classes x inputs
	b *mat.VecDense
}

// NewDenseModel builds a model from a row-major weight matrix with one row per class.
func NewDenseModel(weights [][]float64, bias []float64) (*DenseModel, error) {
	classes := len(weights)
	if classes == 0 {
		return nil, fmt.Errorf("dense model has no classes")
	}
	if len(bias) != classes {
		return nil, fmt.Errorf("dense model has %d classes but %d biases", classes, len(bias))
	}
	inputs := len(weights[0])
	if inputs == 0 {
		return nil, fmt.Errorf("dense model has no inputs")
	}

	data := make([]float64, 0, classes*inputs)
	for i, row := range weights {
		if len(row) != inputs {
			return nil, fmt.Errorf("weight row %d has %d values, want %d", i, len(row), inputs)
		}
		data = append(data, row...)
	}

	b := make([]float64, classes)
	copy(b, bias)
	return &DenseModel{
		w: mat.NewDense(classes, inputs, data),
		b: mat.NewVecDense(classes, b),
	}, nil
}

// LoadDense reads a model written by Save.
func LoadDense(path string) (*DenseModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var f denseFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if f.Format != denseFormatName {
		return nil, fmt.Errorf("unsupported model format %q", f.Format)
	}
	m, err := NewDenseModel(f.Weights, f.Bias)
	if err != nil {
		return nil, err
	}
	if m.Inputs() != f.Inputs || m.Classes() != f.Classes {
		return nil, fmt.Errorf("model header says %dx%d, weights are %dx%d",
			f.Classes, f.Inputs, m.Classes(), m.Inputs())
	}
	return m, nil
}

// Save writes the model as JSON.
func (m *DenseModel) Save(path string) error {
	classes, inputs := m.w.Dims()
	f := denseFormat{
		Format:  denseFormatName,
		Inputs:  inputs,
		Classes: classes,
		Weights: make([][]float64, classes),
		Bias:    make([]float64, classes),
	}
	for i := 0; i < classes; i++ {
		f.Weights[i] = mat.Row(nil, i, m.w)
		f.Bias[i] = m.b.AtVec(i)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// Inputs returns the feature vector length.
func (m *DenseModel) Inputs() int {
	_, c := m.w.Dims()
	return c
}

// Classes returns the number of output classes.
func (m *DenseModel) Classes() int {
	r, _ := m.w.Dims()
	return r
}

// Probabilities returns the class distribution for x.
func (m *DenseModel) Probabilities(x []float64) ([]float64, error) {
	if len(x) != m.Inputs() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureSize, len(x), m.Inputs())
	}
	var z mat.VecDense
	z.MulVec(m.w, mat.NewVecDense(len(x), x))
	z.AddVec(&z, m.b)

	out := make([]float64, m.Classes())
	for i := range out {
		out[i] = z.AtVec(i)
	}
	softmax(out)
	return out, nil
}

// Close is a no-op.
func (m *DenseModel) Close() error { return nil }

// softmax normalizes v in place.
func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	maxv := floats.Max(v)
	for i := range v {
		v[i] = math.Exp(v[i] - maxv)
	}
	floats.Scale(1/floats.Sum(v), v)
}

var _ Model = (*DenseModel)(nil)
