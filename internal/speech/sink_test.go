package speech

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

func TestLogSink_Deliver(t *testing.T) {
	tests := []struct {
		lang announce.Language
		text string
		want string
	}{
		{announce.English, "This is hello", "🔊 Speaking in English: This is hello\n"},
		{announce.Hindi, "This is नमस्ते", "🔊 Speaking in Hindi: This is नमस्ते\n"},
	}

	for _, tt := range tests {
		t.Run(tt.lang.String(), func(t *testing.T) {
			var buf bytes.Buffer
			s := NewLogSink(&buf, -1)
			if err := s.Deliver(context.Background(), tt.text, tt.lang); err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLogSink_SimulatesDuration(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(&buf, 50*time.Millisecond)

	start := time.Now()
	if err := s.Deliver(context.Background(), "x", announce.English); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Deliver returned after %v, want at least 50ms", elapsed)
	}
}

func TestLogSink_Cancelled(t *testing.T) {
	s := NewLogSink(&bytes.Buffer{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Deliver(ctx, "x", announce.English); !errors.Is(err, context.Canceled) {
		t.Errorf("Deliver = %v, want context.Canceled", err)
	}
}

func TestCommandSink_Argv(t *testing.T) {
	s := NewCommandSink(CommandConfig{})

	got := s.argv("This is hello", announce.English)
	want := []string{"-v", "en", "This is hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}

	got = s.argv("This is नमस्ते", announce.Hindi)
	want = []string{"-v", "hi", "This is नमस्ते"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestCommandSink_CustomVoices(t *testing.T) {
	s := NewCommandSink(CommandConfig{
		Executable: "say",
		Args:       []string{"--voice={voice}", "--rate", "180"},
		Voices:     map[announce.Language]string{announce.Hindi: "Lekha"},
	})

	got := s.argv("hi there", announce.Hindi)
	want := []string{"--voice=Lekha", "--rate", "180", "hi there"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
	if got := s.argv("x", announce.English)[0]; got != "--voice=en" {
		t.Errorf("English voice should keep the default, got %q", got)
	}
}

func TestCommandSink_Deliver(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	s := NewCommandSink(CommandConfig{Executable: "true"})
	if !s.Available() {
		t.Fatal("Available() = false for true")
	}
	if err := s.Deliver(context.Background(), "This is A", announce.English); err != nil {
		t.Errorf("Deliver: %v", err)
	}
}

func TestCommandSink_Failure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s := NewCommandSink(CommandConfig{
		Executable: "sh",
		Args:       []string{"-c", "echo broken voice >&2; exit 3", "--"},
	})
	err := s.Deliver(context.Background(), "x", announce.English)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "broken voice") {
		t.Errorf("error %q should include stderr", err)
	}
}

func TestCommandSink_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	s := NewCommandSink(CommandConfig{
		Executable: "sleep",
		Args:       []string{},
		Timeout:    50 * time.Millisecond,
	})
	err := s.Deliver(context.Background(), "5", announce.English)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Deliver = %v, want timeout", err)
	}
}

func TestCommandSink_Missing(t *testing.T) {
	s := NewCommandSink(CommandConfig{Executable: "sign2text-no-such-tts"})
	if s.Available() {
		t.Error("Available() = true for missing executable")
	}
	if err := s.Deliver(context.Background(), "x", announce.English); err == nil {
		t.Error("expected error for missing executable")
	}
}
