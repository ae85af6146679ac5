package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/app"
	"github.com/ayusman/sign2text/internal/capture"
	"github.com/ayusman/sign2text/internal/session"
)

// errorBackoff is the pause after streaming an error frame.
const errorBackoff = time.Second

// StreamHandler serves the annotated MJPEG feed. Every connected stream is
// a producer for the request session.
type StreamHandler struct {
	app      *app.App
	camera   Camera
	interval time.Duration
	log      *slog.Logger
}

// NewStreamHandler creates a new StreamHandler. camera may be nil.
func NewStreamHandler(a *app.App, camera Camera, interval time.Duration, logger *slog.Logger) *StreamHandler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{app: a, camera: camera, interval: interval, log: logger}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := sessionFrom(r)
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.log.Debug("video feed opened", "session", sess.ID())
	defer h.log.Debug("video feed closed", "session", sess.ID())

	for {
		jpeg, wait, err := h.nextFrame(sess)
		if err != nil {
			h.log.Warn("failed to encode frame", "error", err)
			wait = errorBackoff
		} else {
			if err := writePart(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(wait):
		}
	}
}

// nextFrame produces one encoded frame and the delay before the next one.
func (h *StreamHandler) nextFrame(sess *session.Session) ([]byte, time.Duration, error) {
	frame, err := h.read()
	if err != nil {
		h.log.Warn("error generating frame", "error", err)
		ef := capture.ErrorFrame(err)
		defer ef.Close()
		buf, encErr := encode(&ef)
		return buf, errorBackoff, encErr
	}
	defer frame.Close()

	sess.Touch(time.Now())
	res := h.app.Process(sess, frame)
	defer res.Frame.Close()

	buf, err := encode(&res.Frame)
	return buf, h.interval, err
}

// read returns the next camera frame, or the placeholder when no camera is
// available. The caller must Close the result.
func (h *StreamHandler) read() (*gocv.Mat, error) {
	if h.camera == nil {
		p := capture.PlaceholderFrame()
		return &p, nil
	}
	frame, err := h.camera.ReadFrame()
	var acqErr *capture.AcquireError
	if errors.As(err, &acqErr) {
		p := capture.PlaceholderFrame()
		return &p, nil
	}
	return frame, err
}

func encode(m *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *m)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// writePart writes one multipart section.
func writePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
