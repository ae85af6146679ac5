package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

// DefaultCommandTimeout bounds a single invocation of the TTS executable.
const DefaultCommandTimeout = 10 * time.Second

// CommandConfig configures a CommandSink.
type CommandConfig struct {
	// Executable is the TTS program, espeak-ng by default.
	Executable string
	// Args are passed before the text. "{voice}" is replaced by the voice for
	// the announcement language. Defaults to ["-v", "{voice}"].
	Args []string
	// Voices maps each language to a voice name. Defaults to en and hi.
	Voices  map[announce.Language]string
	Timeout time.Duration
}

// CommandSink speaks through an external TTS executable.
type CommandSink struct {
	exe     string
	args    []string
	voices  map[announce.Language]string
	timeout time.Duration
}

// NewCommandSink creates a CommandSink with defaults filled in.
func NewCommandSink(cfg CommandConfig) *CommandSink {
	if cfg.Executable == "" {
		cfg.Executable = "espeak-ng"
	}
	if cfg.Args == nil {
		cfg.Args = []string{"-v", "{voice}"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCommandTimeout
	}
	voices := map[announce.Language]string{
		announce.English: "en",
		announce.Hindi:   "hi",
	}
	for lang, v := range cfg.Voices {
		voices[lang] = v
	}
	return &CommandSink{
		exe:     cfg.Executable,
		args:    cfg.Args,
		voices:  voices,
		timeout: cfg.Timeout,
	}
}

// Available reports whether the executable can be found on PATH.
func (s *CommandSink) Available() bool {
	_, err := exec.LookPath(s.exe)
	return err == nil
}

func (s *CommandSink) argv(text string, lang announce.Language) []string {
	voice := s.voices[lang]
	out := make([]string, 0, len(s.args)+1)
	for _, a := range s.args {
		out = append(out, strings.ReplaceAll(a, "{voice}", voice))
	}
	return append(out, text)
}

// Deliver runs the executable and waits for it to exit.
func (s *CommandSink) Deliver(ctx context.Context, text string, lang announce.Language) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.exe, s.argv(text, lang)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", s.exe, s.timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w, stderr: %s", s.exe, err, msg)
		}
		return fmt.Errorf("%s failed: %w", s.exe, err)
	}
	return nil
}

var _ Sink = (*CommandSink)(nil)
