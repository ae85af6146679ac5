package api

import (
	"net/http"

	"github.com/ayusman/sign2text/internal/announce"
)

// SpeechState reports the speech worker state.
type SpeechState interface {
	Speaking() bool
	Pending() int
}

// CameraState reports whether a camera is available.
type CameraState interface {
	Available() bool
}

// StatusHandler serves GET /status.
type StatusHandler struct {
	speech SpeechState
	camera CameraState
}

// NewStatusHandler creates a StatusHandler. camera may be nil when the
// server runs without a camera.
func NewStatusHandler(speech SpeechState, camera CameraState) *StatusHandler {
	return &StatusHandler{speech: speech, camera: camera}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Language           string   `json:"language"`
	LastGesture        string   `json:"last_gesture"`
	CurrentGesture     string   `json:"current_gesture"`
	AvailableLanguages []string `json:"available_languages"`
	CameraStatus       string   `json:"camera_status"`
	Speaking           bool     `json:"speaking"`
	Pending            int      `json:"pending"`
}

// ServeHTTP reports the session and worker state.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	snap := sess.Snapshot()
	resp := StatusResponse{
		Language:           snap.Language.String(),
		LastGesture:        snap.LastAnnounced,
		CurrentGesture:     snap.LastGesture,
		AvailableLanguages: announce.Available(),
		CameraStatus:       "not available",
		Speaking:           h.speech.Speaking(),
		Pending:            h.speech.Pending(),
	}
	if h.camera != nil && h.camera.Available() {
		resp.CameraStatus = "available"
	}
	writeJSON(w, http.StatusOK, resp)
}
