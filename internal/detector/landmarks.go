// Package detector finds hand landmarks in camera frames.
package detector

// Landmark indices follow the MediaPipe hand model.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21

	// NumFeatures is the length of the flattened landmark vector.
	NumFeatures = NumLandmarks * 3
)

// HandConnections lists the landmark pairs joined when drawing a hand.
var HandConnections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is a landmark position. X and Y are normalized to the frame size,
// Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks holds the 21 landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Features flattens the landmarks into x0,y0,z0,...,x20,y20,z20.
// A nil hand yields nil.
func (h *HandLandmarks) Features() []float64 {
	if h == nil {
		return nil
	}
	out := make([]float64, 0, NumFeatures)
	for _, p := range h.Points {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

// FromFeatures rebuilds landmarks from a flattened vector. It reports false
// when the vector has the wrong length.
func FromFeatures(v []float64) (HandLandmarks, bool) {
	var h HandLandmarks
	if len(v) != NumFeatures {
		return h, false
	}
	for i := range h.Points {
		h.Points[i] = Point3D{X: v[i*3], Y: v[i*3+1], Z: v[i*3+2]}
	}
	return h, true
}
