// Package gesture defines the classification result shared by the
// classifier, the debouncer and the HTTP layer.
package gesture

import (
	"strings"
	"time"
)

// Sentinel labels carry no actionable gesture meaning and are never announced.
const (
	// LabelNoModel is reported when no classifier is loaded.
	LabelNoModel = "No model loaded"
	// LabelUnknown is reported when the best class is below the confidence threshold.
	LabelUnknown = "Unknown gesture"
	// LabelNoHand is reported when the landmark provider found no hand in the frame.
	LabelNoHand = "No hand detected"
)

// DefaultThreshold is the confidence a prediction must exceed to be reported.
const DefaultThreshold = 0.7

// Prediction is the classification of a single frame.
type Prediction struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// IsSentinel reports whether label is one of the reserved labels, or empty.
func IsSentinel(label string) bool {
	switch strings.TrimSpace(label) {
	case "", LabelNoModel, LabelUnknown, LabelNoHand:
		return true
	}
	return false
}
