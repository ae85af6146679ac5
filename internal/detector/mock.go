package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns preset hands. It is safe for concurrent use.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that finds no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands ...HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many frames were passed to Detect.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the preset hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]HandLandmarks, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a right hand with all fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}

	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	h.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	fingers := []struct {
		base int
		x    [4]float64
		y    [4]float64
	}{
		{IndexMCP, [4]float64{0.55, 0.57, 0.58, 0.58}, [4]float64{0.68, 0.55, 0.45, 0.35}},
		{MiddleMCP, [4]float64{0.50, 0.50, 0.50, 0.50}, [4]float64{0.66, 0.52, 0.40, 0.28}},
		{RingMCP, [4]float64{0.45, 0.43, 0.42, 0.42}, [4]float64{0.68, 0.55, 0.45, 0.35}},
		{PinkyMCP, [4]float64{0.40, 0.37, 0.35, 0.34}, [4]float64{0.70, 0.60, 0.50, 0.42}},
	}
	for _, f := range fingers {
		for j := 0; j < 4; j++ {
			h.Points[f.base+j] = Point3D{X: f.x[j], Y: f.y[j]}
		}
	}
	return h
}

// FistLandmarks returns a right hand with all fingers curled.
func FistLandmarks() HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.93}

	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}
	for i := ThumbCMC; i < NumLandmarks; i++ {
		row := float64((i - 1) % 4)
		col := float64((i - 1) / 4)
		h.Points[i] = Point3D{
			X: 0.40 + col*0.04,
			Y: 0.70 + row*0.01,
			Z: -0.03,
		}
	}
	return h
}
