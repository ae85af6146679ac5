package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/ayusman/sign2text/internal/announce"
)

// ErrNoVoice is returned when no voice model is configured for a language.
var ErrNoVoice = errors.New("no voice model for language")

// VoiceModel locates a VITS model directory. The directory holds model.onnx,
// tokens.txt and optionally lexicon.txt and an espeak-ng-data directory.
type VoiceModel struct {
	Dir     string
	Speaker int
	Speed   float32
}

func (m VoiceModel) config(threads int) *sherpa.OfflineTtsConfig {
	cfg := &sherpa.OfflineTtsConfig{}
	cfg.Model.Vits.Model = filepath.Join(m.Dir, "model.onnx")
	cfg.Model.Vits.Tokens = filepath.Join(m.Dir, "tokens.txt")
	if lex := filepath.Join(m.Dir, "lexicon.txt"); fileExists(lex) {
		cfg.Model.Vits.Lexicon = lex
	}
	if data := filepath.Join(m.Dir, "espeak-ng-data"); fileExists(data) {
		cfg.Model.Vits.DataDir = data
	}
	cfg.Model.Vits.NoiseScale = 0.667
	cfg.Model.Vits.NoiseScaleW = 0.8
	cfg.Model.Vits.LengthScale = 1.0
	cfg.Model.NumThreads = threads
	cfg.Model.Provider = "cpu"
	cfg.MaxNumSentences = 1
	return cfg
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Player plays rendered PCM.
type Player interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
}

// VoiceConfig configures a VoiceSink.
type VoiceConfig struct {
	Models     map[announce.Language]VoiceModel
	NumThreads int
	Logger     *slog.Logger
}

// VoiceSink synthesizes speech offline with sherpa-onnx and plays it.
type VoiceSink struct {
	player Player
	models map[announce.Language]VoiceModel
	log    *slog.Logger

	mu      sync.Mutex
	engines map[announce.Language]*sherpa.OfflineTts
}

// NewVoiceSink loads a TTS engine for every configured language.
func NewVoiceSink(cfg VoiceConfig, player Player) (*VoiceSink, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("voice sink: %w", ErrNoVoice)
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &VoiceSink{
		player:  player,
		models:  cfg.Models,
		log:     logger.With("component", "voice"),
		engines: make(map[announce.Language]*sherpa.OfflineTts),
	}

	for lang, m := range cfg.Models {
		if !fileExists(filepath.Join(m.Dir, "model.onnx")) {
			s.Close()
			return nil, fmt.Errorf("voice model for %s not found in %s", lang, m.Dir)
		}
		tts := sherpa.NewOfflineTts(m.config(cfg.NumThreads))
		if tts == nil {
			s.Close()
			return nil, fmt.Errorf("failed to load voice model for %s from %s", lang, m.Dir)
		}
		s.engines[lang] = tts
		s.log.Info("voice model loaded", "language", lang.String(), "dir", m.Dir)
	}
	return s, nil
}

// Deliver synthesizes text in lang and plays it.
func (s *VoiceSink) Deliver(ctx context.Context, text string, lang announce.Language) error {
	s.mu.Lock()
	tts, ok := s.engines[lang]
	model := s.models[lang]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoVoice, lang)
	}

	speed := model.Speed
	if speed <= 0 {
		speed = 1.0
	}

	audio := tts.Generate(text, model.Speaker, speed)
	if audio == nil || len(audio.Samples) == 0 {
		return fmt.Errorf("voice synthesis produced no audio for %q", text)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.player.Play(ctx, audio.Samples, audio.SampleRate)
}

// Close releases the TTS engines.
func (s *VoiceSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for lang, tts := range s.engines {
		sherpa.DeleteOfflineTts(tts)
		delete(s.engines, lang)
	}
}

var _ Sink = (*VoiceSink)(nil)
