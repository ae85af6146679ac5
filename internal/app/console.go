package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/session"
)

// DefaultInterval is the console frame cadence.
const DefaultInterval = 100 * time.Millisecond

// FrameSource produces frames. Both capture.Camera and capture.Source satisfy it.
type FrameSource interface {
	ReadFrame() (*gocv.Mat, error)
}

// ConsoleOptions configures RunConsole.
type ConsoleOptions struct {
	// Interval between frames. Zero selects DefaultInterval.
	Interval time.Duration
	// Input carries commands, one per line: "en" or "hi" switch the
	// language, "l" toggles it and "q" quits. Optional.
	Input io.Reader
	// Show is called with every annotated frame. Returning false quits. Optional.
	Show func(frame *gocv.Mat) bool
}

// RunConsole processes frames from src for sess until ctx is done, the user
// quits, or a frame cannot be read. It returns nil on a requested stop.
func (a *App) RunConsole(ctx context.Context, sess *session.Session, src FrameSource, opts ConsoleOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	commands := make(chan string)
	if opts.Input != nil {
		go readCommands(ctx, opts.Input, commands)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	a.log.Info("console loop started", "session", sess.ID(), "language", sess.Language().String())
	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if a.handleCommand(sess, cmd) {
				a.log.Info("quit requested")
				return nil
			}

		case <-ticker.C:
			frame, err := src.ReadFrame()
			if err != nil {
				return fmt.Errorf("failed to grab frame: %w", err)
			}
			res := a.Process(sess, frame)
			frame.Close()

			keep := true
			if opts.Show != nil {
				keep = opts.Show(&res.Frame)
			}
			res.Frame.Close()
			if !keep {
				return nil
			}
		}
	}
}

// handleCommand applies one console command and reports whether to quit.
func (a *App) handleCommand(sess *session.Session, cmd string) bool {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	switch cmd {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "l":
		a.ToggleLanguage(sess)
		return false
	}
	lang, err := announce.ParseLanguage(cmd)
	if err != nil {
		a.log.Warn("unknown command", "command", cmd)
		return false
	}
	a.SetLanguage(sess, lang)
	return false
}

func readCommands(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
