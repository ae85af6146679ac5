// Package classifier maps hand landmark vectors to gesture labels.
package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/sign2text/internal/gesture"
)

var (
	// ErrNoModel is returned when a model file does not exist.
	ErrNoModel = errors.New("no model")
	// ErrFeatureSize is returned when the feature vector length does not match the model.
	ErrFeatureSize = errors.New("feature vector size mismatch")
)

// Model produces a probability per class for a feature vector.
type Model interface {
	Probabilities(features []float64) ([]float64, error)
	Close() error
}

// Load opens the model at modelPath and its labels. Files ending in .onnx are
// run through ONNX Runtime; anything else is read as a dense JSON model.
func Load(modelPath, labelsPath string) (Model, []string, error) {
	if _, err := os.Stat(modelPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoModel, modelPath)
	}
	labels, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, nil, err
	}

	var m Model
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".onnx":
		om, err := LoadONNX(modelPath)
		if err != nil {
			return nil, nil, err
		}
		m = om
		if n := om.Classes(); n > 0 && n != len(labels) {
			om.Close()
			return nil, nil, fmt.Errorf("model has %d classes but %d labels", n, len(labels))
		}
	default:
		dm, err := LoadDense(modelPath)
		if err != nil {
			return nil, nil, err
		}
		if dm.Classes() != len(labels) {
			return nil, nil, fmt.Errorf("model has %d classes but %d labels", dm.Classes(), len(labels))
		}
		m = dm
	}
	return m, labels, nil
}

// Recognizer classifies landmark vectors with the active model. The model can
// be swapped at any time; Classify is safe for concurrent use.
type Recognizer struct {
	threshold float64

	mu     sync.RWMutex
	model  Model
	labels []string
	now    func() time.Time
}

// NewRecognizer creates a Recognizer without a model. A non-positive
// threshold selects gesture.DefaultThreshold.
func NewRecognizer(threshold float64) *Recognizer {
	if threshold <= 0 {
		threshold = gesture.DefaultThreshold
	}
	return &Recognizer{threshold: threshold, now: time.Now}
}

// SetModel installs m with its labels and closes the previous model.
// A nil model unloads the recognizer.
func (r *Recognizer) SetModel(m Model, labels []string) {
	r.mu.Lock()
	old := r.model
	r.model = m
	r.labels = labels
	r.mu.Unlock()

	if old != nil && old != m {
		old.Close()
	}
}

// Loaded reports whether a model is installed.
func (r *Recognizer) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model != nil
}

// Labels returns the labels of the active model.
func (r *Recognizer) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Threshold returns the confidence a prediction must exceed.
func (r *Recognizer) Threshold() float64 {
	return r.threshold
}

// Classify returns the prediction for features. nil features mean no hand
// was found. Without a model the result is gesture.LabelNoModel; a best class
// at or below the threshold is gesture.LabelUnknown. A non-nil error is
// returned only when the model itself fails, together with LabelUnknown.
func (r *Recognizer) Classify(features []float64) (gesture.Prediction, error) {
	p := gesture.Prediction{At: r.now()}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.model == nil {
		p.Label = gesture.LabelNoModel
		return p, nil
	}
	if features == nil {
		p.Label = gesture.LabelNoHand
		return p, nil
	}

	probs, err := r.model.Probabilities(features)
	if err != nil {
		p.Label = gesture.LabelUnknown
		return p, fmt.Errorf("classify: %w", err)
	}

	best, conf := argmax(probs)
	p.Confidence = conf
	if best < 0 || best >= len(r.labels) || conf <= r.threshold {
		p.Label = gesture.LabelUnknown
		return p, nil
	}
	p.Label = r.labels[best]
	return p, nil
}

// Close unloads and closes the active model.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	m := r.model
	r.model = nil
	r.labels = nil
	r.mu.Unlock()
	if m != nil {
		return m.Close()
	}
	return nil
}

func argmax(v []float64) (int, float64) {
	best, conf := -1, 0.0
	for i, x := range v {
		if best < 0 || x > conf {
			best, conf = i, x
		}
	}
	return best, conf
}
