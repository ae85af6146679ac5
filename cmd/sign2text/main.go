// Command sign2text recognizes hand gestures from a webcam and announces them
// by voice, either in a console loop or behind a web interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/app"
	"github.com/ayusman/sign2text/internal/audio"
	"github.com/ayusman/sign2text/internal/capture"
	"github.com/ayusman/sign2text/internal/classifier"
	"github.com/ayusman/sign2text/internal/config"
	"github.com/ayusman/sign2text/internal/detector"
	applog "github.com/ayusman/sign2text/internal/log"
	"github.com/ayusman/sign2text/internal/server"
	"github.com/ayusman/sign2text/internal/speech"
	"github.com/ayusman/sign2text/internal/store"
	"github.com/ayusman/sign2text/internal/tray"
)

const usage = `Usage: sign2text [flags] [serve|console]

Modes:
  serve    run the web interface (default)
  console  run the recognition loop on this terminal

Flags:
`

func main() {
	cfg := config.Load()

	fs := flag.NewFlagSet("sign2text", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	cameras := fs.String("cameras", joinInts(cfg.CameraIndices), "camera indices to try, in order")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "frames per second")
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "minimum time between repeats of a gesture")
	fs.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "minimum classifier confidence")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "announcement language (english, hindi)")
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "gesture model file (.json or .onnx)")
	fs.StringVar(&cfg.LabelsPath, "labels", cfg.LabelsPath, "gesture labels file")
	fs.StringVar(&cfg.ONNXLibrary, "onnx-lib", cfg.ONNXLibrary, "path to the onnxruntime shared library")
	fs.StringVar(&cfg.Speech, "speech", cfg.Speech, "speech output (mock, command, voice)")
	fs.StringVar(&cfg.SpeechCommand, "speech-command", cfg.SpeechCommand, "TTS executable for -speech command")
	fs.StringVar(&cfg.ShutdownPolicy, "shutdown", cfg.ShutdownPolicy, "pending announcements at exit (drain, discard)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "history database path")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "serve the web page from this directory")
	fs.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show a system tray menu (serve mode)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	window := fs.Bool("window", false, "show the annotated camera feed in a window (console mode)")
	fs.Parse(os.Args[1:])

	languageSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "language" {
			languageSet = true
		}
	})

	mode := "serve"
	if fs.NArg() > 0 {
		mode = fs.Arg(0)
	}

	if ints, err := config.ParseInts(*cameras); err == nil {
		cfg.CameraIndices = ints
	} else {
		fmt.Fprintf(os.Stderr, "invalid -cameras: %v\n", err)
		os.Exit(2)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n  %s\n", strings.Join(errs, "\n  "))
		os.Exit(2)
	}

	logger := applog.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch mode {
	case "serve":
		err = runServe(ctx, stop, cfg, languageSet, logger)
	case "console":
		err = runConsole(ctx, cfg, languageSet, *window, logger)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("sign2text failed", "error", err)
		os.Exit(1)
	}
}

// components holds everything both modes share.
type components struct {
	app     *app.App
	store   *store.Store
	watcher *classifier.Watcher
	closers []func()
}

func (c *components) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.app.Stop(ctx); err != nil {
		logger.Warn("speech queue did not drain", "error", err)
	}
	// The speech worker has exited; native TTS and audio state can go.
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.store.Close()
}

func build(ctx context.Context, cfg *config.Config, languageSet bool, logger *slog.Logger) (*components, error) {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	c := &components{store: st}

	if cfg.ONNXLibrary != "" {
		classifier.SetRuntimeLibrary(cfg.ONNXLibrary)
	}
	rec := classifier.NewRecognizer(cfg.Threshold)
	c.watcher = classifier.NewWatcher(rec, cfg.ModelPath, cfg.LabelsPath, logger)
	if err := c.watcher.Reload(); err != nil && !errors.Is(err, classifier.ErrNoModel) {
		logger.Warn("gesture model not loaded", "error", err)
	}
	if cfg.WatchModel {
		go func() {
			if err := c.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("model watcher stopped", "error", err)
			}
		}()
	}

	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), cfg.HandScript, cfg.PythonPath); err == nil {
		det = mp
		logger.Info("using MediaPipe hand detection")
	} else {
		logger.Warn("MediaPipe not available, no hands will be detected", "error", err)
		det = detector.NewMockDetector()
	}

	sink := buildSink(cfg, c, logger)
	policy, _ := speech.ParseShutdownPolicy(cfg.ShutdownPolicy)
	lang, _ := announce.ParseLanguage(cfg.Language)

	c.app = app.New(app.Config{
		Detector:   det,
		Recognizer: rec,
		Sink:       sink,
		Store:      st,
		Cooldown:   cfg.Cooldown,
		Language:   lang,
		Policy:     policy,
		Logger:     logger,
	})
	if languageSet {
		c.app.SetDefaultLanguage(lang)
	}
	c.app.Start(ctx)
	return c, nil
}

// buildSink selects the speech output, falling back to printing.
func buildSink(cfg *config.Config, c *components, logger *slog.Logger) speech.Sink {
	fallback := speech.NewLogSink(os.Stdout, cfg.SpeakDuration)

	switch cfg.Speech {
	case config.SinkCommand:
		cs := speech.NewCommandSink(speech.CommandConfig{Executable: cfg.SpeechCommand})
		if cs.Available() {
			logger.Info("speaking through command", "command", cfg.SpeechCommand)
			return cs
		}
		logger.Warn("speech command not found, printing announcements", "command", cfg.SpeechCommand)

	case config.SinkVoice:
		player, err := audio.NewPlayer()
		if err != nil {
			logger.Warn("audio output not available, printing announcements", "error", err)
			break
		}
		models := make(map[announce.Language]speech.VoiceModel)
		for _, lang := range []announce.Language{announce.English, announce.Hindi} {
			if dir := cfg.VoiceDirs[lang.Code()]; dir != "" {
				models[lang] = speech.VoiceModel{Dir: dir, Speed: 1}
			}
		}
		vs, err := speech.NewVoiceSink(speech.VoiceConfig{Models: models, Logger: logger}, player)
		if err != nil {
			player.Close()
			logger.Warn("voice models not available, printing announcements", "error", err)
			break
		}
		c.closers = append(c.closers, func() { player.Close() }, vs.Close)
		return vs
	}
	return fallback
}

func runServe(ctx context.Context, stop context.CancelFunc, cfg *config.Config, languageSet bool, logger *slog.Logger) error {
	c, err := build(ctx, cfg, languageSet, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	src := capture.NewSource(cfg.CameraIndices, nil, cfg.CameraBackoff)
	defer src.Close()

	go c.app.RunJanitor(ctx, app.JanitorOptions{SessionIdle: cfg.SessionIdle, Retention: cfg.Retention})

	srv := server.New(server.Config{
		App:           c.app,
		Camera:        src,
		StaticDir:     cfg.StaticDir,
		FrameInterval: cfg.FrameInterval(),
		Logger:        logger,
	})
	url := "http://localhost" + cfg.Addr
	if !strings.HasPrefix(cfg.Addr, ":") {
		url = "http://" + cfg.Addr
	}
	fmt.Printf("Open your browser and go to: %s\n", url)

	if !cfg.Tray {
		return srv.ListenAndServe(ctx, cfg.Addr)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, cfg.Addr) }()

	t := tray.New(c.app.Sessions().DefaultLanguage())
	t.OnLanguage(c.app.SetDefaultLanguage)
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	})
	t.OnQuit(stop)
	c.app.Subscribe(func(e app.Event) {
		if e.Type == app.EventDelivered {
			t.SetLastGesture(e.Label)
		}
	})
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	// systray owns the main thread until Quit.
	t.Run()
	stop()
	return <-errCh
}

func runConsole(ctx context.Context, cfg *config.Config, languageSet bool, window bool, logger *slog.Logger) error {
	src := capture.NewSource(cfg.CameraIndices, nil, cfg.CameraBackoff)
	defer src.Close()
	if _, err := src.Camera(); err != nil {
		return fmt.Errorf("could not open any camera: %w", err)
	}
	logger.Info("camera opened", "index", src.Index())

	c, err := build(ctx, cfg, languageSet, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	sess := c.app.Sessions().Create()
	fmt.Println("Sign2Text console. Type 'en' or 'hi' to switch language, 'l' to toggle, 'q' to quit.")

	opts := app.ConsoleOptions{Interval: cfg.FrameInterval(), Input: os.Stdin}
	if window {
		w := gocv.NewWindow("Sign2Text")
		defer w.Close()
		opts.Show = func(frame *gocv.Mat) bool {
			w.IMShow(*frame)
			key := w.WaitKey(1)
			switch key {
			case 'q':
				return false
			case 'e':
				c.app.SetLanguage(sess, announce.English)
			case 'h':
				c.app.SetLanguage(sess, announce.Hindi)
			case 'l':
				c.app.ToggleLanguage(sess)
			}
			return true
		}
	}

	return c.app.RunConsole(ctx, sess, src, opts)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
