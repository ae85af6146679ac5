// Package config loads sign2text settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/speech"
)

// Speech sink names.
const (
	SinkMock    = "mock"
	SinkCommand = "command"
	SinkVoice   = "voice"
)

// Config holds every runtime setting. Load fills it from SIGN2TEXT_* variables.
type Config struct {
	Addr      string
	StaticDir string
	Tray      bool

	CameraIndices []int
	FPS           int
	CameraBackoff time.Duration

	Cooldown  time.Duration
	Threshold float64
	Language  string

	ModelPath   string
	LabelsPath  string
	ONNXLibrary string
	WatchModel  bool

	HandScript string
	PythonPath string

	Speech         string
	SpeechCommand  string
	VoiceDirs      map[string]string
	SpeakDuration  time.Duration
	ShutdownPolicy string

	DBPath      string
	Retention   time.Duration
	SessionIdle time.Duration

	LogLevel string
}

// DataDir returns ~/.sign2text, or .sign2text when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sign2text"
	}
	return filepath.Join(home, ".sign2text")
}

// Load reads the configuration from the environment.
func Load() *Config {
	data := DataDir()
	return &Config{
		Addr:      getEnv("SIGN2TEXT_ADDR", ":5000"),
		StaticDir: getEnv("SIGN2TEXT_STATIC_DIR", ""),
		Tray:      getEnvBool("SIGN2TEXT_TRAY", false),

		CameraIndices: getEnvInts("SIGN2TEXT_CAMERAS", []int{0, 1, 2, -1}),
		FPS:           getEnvInt("SIGN2TEXT_FPS", 10),
		CameraBackoff: getEnvDuration("SIGN2TEXT_CAMERA_BACKOFF", 5*time.Second),

		Cooldown:  getEnvDuration("SIGN2TEXT_COOLDOWN", announce.DefaultCooldown),
		Threshold: getEnvFloat("SIGN2TEXT_THRESHOLD", 0.7),
		Language:  getEnv("SIGN2TEXT_LANGUAGE", "english"),

		ModelPath:   getEnv("SIGN2TEXT_MODEL", filepath.Join(data, "models", "gesture_model.json")),
		LabelsPath:  getEnv("SIGN2TEXT_LABELS", filepath.Join(data, "models", "gesture_labels.json")),
		ONNXLibrary: getEnv("SIGN2TEXT_ONNX_LIB", ""),
		WatchModel:  getEnvBool("SIGN2TEXT_WATCH_MODEL", true),

		HandScript: getEnv("SIGN2TEXT_HAND_SCRIPT", ""),
		PythonPath: getEnv("SIGN2TEXT_PYTHON", ""),

		Speech:        getEnv("SIGN2TEXT_SPEECH", SinkMock),
		SpeechCommand: getEnv("SIGN2TEXT_SPEECH_COMMAND", "espeak-ng"),
		VoiceDirs: map[string]string{
			"en": getEnv("SIGN2TEXT_VOICE_EN", filepath.Join(data, "voices", "en")),
			"hi": getEnv("SIGN2TEXT_VOICE_HI", filepath.Join(data, "voices", "hi")),
		},
		SpeakDuration:  getEnvDuration("SIGN2TEXT_SPEAK_DURATION", speech.DefaultSpeakDuration),
		ShutdownPolicy: getEnv("SIGN2TEXT_SHUTDOWN", "drain"),

		DBPath:      getEnv("SIGN2TEXT_DB", filepath.Join(data, "sign2text.db")),
		Retention:   getEnvDuration("SIGN2TEXT_RETENTION", 30*24*time.Hour),
		SessionIdle: getEnvDuration("SIGN2TEXT_SESSION_IDLE", 30*time.Minute),

		LogLevel: getEnv("SIGN2TEXT_LOG_LEVEL", "info"),
	}
}

// Validate returns a list of problems, empty when the configuration is usable.
func (c *Config) Validate() []string {
	var errs []string

	if c.Addr == "" {
		errs = append(errs, "addr must not be empty")
	}
	if len(c.CameraIndices) == 0 {
		errs = append(errs, "at least one camera index is required")
	}
	if c.FPS < 1 || c.FPS > 60 {
		errs = append(errs, fmt.Sprintf("fps must be between 1 and 60, got %d", c.FPS))
	}
	if c.Cooldown <= 0 {
		errs = append(errs, "cooldown must be positive")
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Sprintf("threshold must be in (0, 1), got %g", c.Threshold))
	}
	if _, err := announce.ParseLanguage(c.Language); err != nil {
		errs = append(errs, fmt.Sprintf("language: %v", err))
	}
	switch c.Speech {
	case SinkMock, SinkCommand, SinkVoice:
	default:
		errs = append(errs, fmt.Sprintf("speech must be one of mock, command, voice; got %q", c.Speech))
	}
	if c.Speech == SinkCommand && c.SpeechCommand == "" {
		errs = append(errs, "speech command must not be empty")
	}
	if _, err := speech.ParseShutdownPolicy(c.ShutdownPolicy); err != nil {
		errs = append(errs, err.Error())
	}
	if c.DBPath == "" {
		errs = append(errs, "database path must not be empty")
	}
	if c.Retention < 0 || c.SessionIdle < 0 {
		errs = append(errs, "retention and session idle must not be negative")
	}

	return errs
}

// FrameInterval is the time between frames at the configured FPS.
func (c *Config) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Second / time.Duration(c.FPS)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvInts parses a comma separated list such as "0,1,2,-1".
func getEnvInts(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ints, err := ParseInts(value)
	if err != nil {
		return defaultValue
	}
	return ints
}

// ParseInts parses a comma separated list of integers.
func ParseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, i)
	}
	return out, nil
}
