package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DefaultCandidates is the order in which device indices are tried.
var DefaultCandidates = []int{0, 1, 2, -1}

// Opener opens the camera at a device index.
type Opener func(index int) (Camera, error)

// Attempt records one failed open.
type Attempt struct {
	Index int
	Err   error
}

// AcquireError lists every device index that was tried.
type AcquireError struct {
	Attempts []Attempt
}

func (e *AcquireError) Error() string {
	if len(e.Attempts) == 0 {
		return "no camera candidates configured"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("index %d: %v", a.Index, a.Err)
	}
	return "no camera available (" + strings.Join(parts, "; ") + ")"
}

// Unwrap exposes the per-index errors to errors.Is and errors.As.
func (e *AcquireError) Unwrap() []error {
	out := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Err
	}
	return out
}

// Acquire returns the first camera in candidates that opens, and its index.
// When none does the error is an *AcquireError.
func Acquire(candidates []int, open Opener) (Camera, int, error) {
	if open == nil {
		open = OpenDevice
	}
	failed := &AcquireError{}
	for _, idx := range candidates {
		cam, err := open(idx)
		if err == nil && cam != nil {
			return cam, idx, nil
		}
		if err == nil {
			err = ErrCameraNotOpen
		}
		failed.Attempts = append(failed.Attempts, Attempt{Index: idx, Err: err})
	}
	return nil, -1, failed
}

// DefaultRetryBackoff is how long a Source waits after a failed acquisition.
const DefaultRetryBackoff = 5 * time.Second

// Source acquires a camera on first use and shares it between readers.
// A failed acquisition is retried after a backoff; a failed read releases
// the camera so the next read acquires again.
type Source struct {
	candidates []int
	open       Opener
	backoff    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	cam      Camera
	index    int
	lastErr  error
	failedAt time.Time
}

// NewSource creates a Source. Nil candidates select DefaultCandidates and a
// nil opener selects OpenDevice.
func NewSource(candidates []int, open Opener, backoff time.Duration) *Source {
	if candidates == nil {
		candidates = DefaultCandidates
	}
	if open == nil {
		open = OpenDevice
	}
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Source{
		candidates: candidates,
		open:       open,
		backoff:    backoff,
		now:        time.Now,
		index:      -1,
	}
}

// Camera returns the shared camera, acquiring it if needed.
func (s *Source) Camera() (Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquireLocked()
}

func (s *Source) acquireLocked() (Camera, error) {
	if s.cam != nil {
		return s.cam, nil
	}
	if s.lastErr != nil && s.now().Sub(s.failedAt) < s.backoff {
		return nil, s.lastErr
	}

	cam, idx, err := Acquire(s.candidates, s.open)
	if err != nil {
		s.lastErr = err
		s.failedAt = s.now()
		return nil, err
	}
	s.cam = cam
	s.index = idx
	s.lastErr = nil
	return cam, nil
}

// ReadFrame reads from the shared camera.
func (s *Source) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	cam, err := s.acquireLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		s.release(cam)
		return nil, err
	}
	return frame, nil
}

// release closes cam if it is still the shared camera.
func (s *Source) release(cam Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam != cam {
		return
	}
	s.cam.Close()
	s.cam = nil
	s.index = -1
}

// Available reports whether a camera is currently held.
func (s *Source) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam != nil
}

// Index returns the device index in use, or -1.
func (s *Source) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Close releases the camera.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam == nil {
		return nil
	}
	err := s.cam.Close()
	s.cam = nil
	s.index = -1
	return err
}
