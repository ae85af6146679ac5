// Package speech serializes announcements onto a single speech output.
package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

// Sink renders text as speech. Deliver blocks until the text has been spoken
// or ctx is done.
type Sink interface {
	Deliver(ctx context.Context, text string, lang announce.Language) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, text string, lang announce.Language) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, text string, lang announce.Language) error {
	return f(ctx, text, lang)
}

// DefaultSpeakDuration is how long LogSink pretends to speak.
const DefaultSpeakDuration = time.Second

// LogSink prints announcements instead of speaking them.
type LogSink struct {
	w        io.Writer
	duration time.Duration
}

// NewLogSink creates a LogSink writing to w (stdout when nil). A negative
// duration disables the simulated speaking time; zero selects DefaultSpeakDuration.
func NewLogSink(w io.Writer, duration time.Duration) *LogSink {
	if w == nil {
		w = os.Stdout
	}
	if duration == 0 {
		duration = DefaultSpeakDuration
	}
	if duration < 0 {
		duration = 0
	}
	return &LogSink{w: w, duration: duration}
}

// Deliver prints the text and waits for the simulated speaking time.
func (s *LogSink) Deliver(ctx context.Context, text string, lang announce.Language) error {
	if _, err := fmt.Fprintf(s.w, "🔊 Speaking in %s: %s\n", lang.DisplayName(), text); err != nil {
		return fmt.Errorf("write announcement: %w", err)
	}
	if s.duration == 0 {
		return nil
	}

	timer := time.NewTimer(s.duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Sink = (*LogSink)(nil)
