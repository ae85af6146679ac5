// Package server provides the HTTP server for the sign2text web interface.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sign2text/internal/app"
	"github.com/ayusman/sign2text/internal/server/api"
	"github.com/ayusman/sign2text/internal/session"
)

// SessionCookie names the cookie that carries the session id.
const SessionCookie = "sign2text_session"

// DefaultFrameInterval is the /video_feed cadence.
const DefaultFrameInterval = 100 * time.Millisecond

//go:embed static
var staticFiles embed.FS

// Camera is the frame source shared by all video feeds.
type Camera interface {
	ReadFrame() (*gocv.Mat, error)
	Available() bool
}

// Config holds the server configuration.
type Config struct {
	// App runs recognition for every stream. Required.
	App *app.App
	// Camera is optional; without one the feed shows a placeholder.
	Camera Camera
	// StaticDir, when set, serves the web page from disk instead of the embedded copy.
	StaticDir string
	// FrameInterval is the video feed cadence. Zero selects DefaultFrameInterval.
	FrameInterval time.Duration
	Logger        *slog.Logger
}

// Server represents the HTTP server for the sign2text application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *slog.Logger
	hub    *AnnouncementHub
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	a := s.config.App

	s.mux.HandleFunc("/api/health", s.handleHealth)

	var camState api.CameraState
	if s.config.Camera != nil {
		camState = s.config.Camera
	}

	s.mux.Handle("/set_language", s.withSession(api.NewLanguageHandler(a)))
	s.mux.Handle("/status", s.withSession(api.NewStatusHandler(a.Queue(), camState)))
	s.mux.Handle("/api/announcements", s.withSession(api.NewAnnouncementsHandler(a.Store())))
	s.mux.Handle("/video_feed", s.withSession(NewStreamHandler(a, s.config.Camera, s.config.FrameInterval, s.log)))

	s.hub = NewAnnouncementHub(s.log)
	s.hub.Attach(a)
	s.mux.Handle("/ws/announcements", s.withSession(s.hub))

	var files http.Handler
	if s.config.StaticDir != "" {
		files = http.FileServer(http.Dir(s.config.StaticDir))
	} else {
		sub, _ := fs.Sub(staticFiles, "static")
		files = http.FileServer(http.FS(sub))
	}
	s.mux.Handle("/", s.withSession(files))
}

// withSession resolves the session cookie, creating a session for new viewers.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		sess, created := s.config.App.Sessions().GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID(),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.log.Debug("session created", "session", sess.ID())
		}
		sess.Touch(time.Now())

		next.ServeHTTP(w, r.WithContext(api.WithSession(r.Context(), sess)))
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := s.config.App.Queue()
	delivered, failed := q.Stats()
	worker := map[string]any{
		"speaking": q.Speaking(),
		"pending":  q.Pending(),
	}
	if last := q.LastPoll(); !last.IsZero() {
		worker["last_poll"] = last.UTC().Format(time.RFC3339Nano)
	}
	response := map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.start).String(),
		"sessions":  s.config.App.Sessions().Len(),
		"delivered": delivered,
		"failed":    failed,
		"speech":    worker,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close disconnects websocket clients and stops listening for events.
func (s *Server) Close() {
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// sessionFrom is a shorthand for handlers in this package.
func sessionFrom(r *http.Request) (*session.Session, bool) {
	return api.SessionFrom(r.Context())
}
