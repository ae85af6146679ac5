package detector

import (
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"
)

// Detector finds hands in a frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds hand detection options.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig tracks a single hand.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
	}
}

// Detection is the landmark provider result for one frame.
type Detection struct {
	// Hand is the first detected hand, or nil.
	Hand *HandLandmarks
	// Annotated is a copy of the input frame with the hand drawn on it.
	// The caller owns it and must Close it.
	Annotated gocv.Mat
}

// Features returns the flattened landmark vector, or nil when no hand was found.
func (d Detection) Features() []float64 {
	return d.Hand.Features()
}

// Provider turns raw frames into Detections.
type Provider struct {
	det Detector
	log *slog.Logger
}

// NewProvider wraps det. logger defaults to slog.Default().
func NewProvider(det Detector, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{det: det, log: logger}
}

// Detect runs the detector and annotates a copy of frame. Detector errors are
// logged and reported as no hand.
func (p *Provider) Detect(frame *gocv.Mat) Detection {
	out := Detection{Annotated: frame.Clone()}

	hands, err := p.det.Detect(frame)
	if err != nil {
		p.log.Debug("hand detection failed", "error", err)
		return out
	}
	if len(hands) == 0 {
		return out
	}

	hand := hands[0]
	out.Hand = &hand
	Draw(&out.Annotated, &hand)
	return out
}

// Close closes the wrapped detector.
func (p *Provider) Close() error {
	return p.det.Close()
}

var (
	landmarkColor   = color.RGBA{G: 255, A: 255}
	connectionColor = color.RGBA{R: 255, A: 255}
)

// Draw renders the landmarks and their connections onto frame.
func Draw(frame *gocv.Mat, hand *HandLandmarks) {
	if frame == nil || frame.Empty() || hand == nil {
		return
	}
	w, h := frame.Cols(), frame.Rows()
	pt := func(i int) image.Point {
		p := hand.Points[i]
		return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}

	for _, c := range HandConnections {
		gocv.Line(frame, pt(c[0]), pt(c[1]), connectionColor, 2)
	}
	for i := 0; i < NumLandmarks; i++ {
		gocv.Circle(frame, pt(i), 2, landmarkColor, 2)
	}
}
