package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/gesture"
	"github.com/ayusman/sign2text/internal/session"
	"github.com/ayusman/sign2text/internal/store"
)

type setterFunc func(*session.Session, announce.Language)

func (f setterFunc) SetLanguage(s *session.Session, l announce.Language) { f(s, l) }

type fakeSpeech struct {
	speaking bool
	pending  int
}

func (f fakeSpeech) Speaking() bool { return f.speaking }
func (f fakeSpeech) Pending() int   { return f.pending }

type fakeCamera bool

func (c fakeCamera) Available() bool { return bool(c) }

func predHello() gesture.Prediction {
	return gesture.Prediction{Label: "hello", Confidence: 0.95, At: time.Now()}
}

func withSession(sess *session.Session, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestLanguageHandler(t *testing.T) {
	directSet := setterFunc(func(s *session.Session, l announce.Language) { s.SetLanguage(l) })

	tests := []struct {
		name     string
		method   string
		body     string
		wantCode int
		wantLang announce.Language
		wantOK   bool
	}{
		{"hindi", http.MethodPost, `{"language":"hindi"}`, http.StatusOK, announce.Hindi, true},
		{"case insensitive", http.MethodPost, `{"language":"ENGLISH"}`, http.StatusOK, announce.English, true},
		{"unknown language", http.MethodPost, `{"language":"klingon"}`, http.StatusBadRequest, announce.Hindi, false},
		{"missing language defaults to english", http.MethodPost, `{}`, http.StatusOK, announce.English, true},
		{"empty language", http.MethodPost, `{"language":""}`, http.StatusBadRequest, announce.Hindi, false},
		{"malformed body", http.MethodPost, `{"language":`, http.StatusBadRequest, announce.Hindi, false},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed, announce.Hindi, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := session.New(time.Second, announce.Hindi)
			h := withSession(sess, NewLanguageHandler(directSet))

			req := httptest.NewRequest(tt.method, "/set_language", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp map[string]any
			decode(t, rec, &resp)
			if resp["success"] != tt.wantOK {
				t.Errorf("success = %v, want %v", resp["success"], tt.wantOK)
			}
			if !tt.wantOK {
				if _, ok := resp["error"].(string); !ok {
					t.Error("failed responses must carry an error message")
				}
			} else if resp["language"] != tt.wantLang.String() {
				t.Errorf("language = %v", resp["language"])
			}
			if sess.Language() != tt.wantLang {
				t.Errorf("session language = %v, want %v", sess.Language(), tt.wantLang)
			}
		})
	}
}

func TestStatusHandler(t *testing.T) {
	sess := session.New(time.Second, announce.English)

	t.Run("fresh session", func(t *testing.T) {
		h := withSession(sess, NewStatusHandler(fakeSpeech{}, nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp StatusResponse
		decode(t, rec, &resp)
		if resp.Language != "english" || resp.LastGesture != "" || resp.CameraStatus != "not available" {
			t.Errorf("unexpected status %+v", resp)
		}
		if len(resp.AvailableLanguages) != 2 || resp.AvailableLanguages[0] != "English" || resp.AvailableLanguages[1] != "Hindi" {
			t.Errorf("available languages = %v", resp.AvailableLanguages)
		}
	})

	t.Run("after announcement", func(t *testing.T) {
		sess.Observe(predHello())
		sess.SetLanguage(announce.Hindi)

		h := withSession(sess, NewStatusHandler(fakeSpeech{speaking: true, pending: 3}, fakeCamera(true)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		var resp StatusResponse
		decode(t, rec, &resp)
		if resp.Language != "hindi" || resp.LastGesture != "hello" || resp.CurrentGesture != "hello" {
			t.Errorf("unexpected status %+v", resp)
		}
		if resp.CameraStatus != "available" || !resp.Speaking || resp.Pending != 3 {
			t.Errorf("unexpected worker state %+v", resp)
		}
	})

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewStatusHandler(fakeSpeech{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestAnnouncementsHandler(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	mine := session.New(time.Second, announce.English)
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i, label := range []string{"hello", "please", "yes"} {
		s.Announcements().Create(&store.Announcement{
			ID: label, SessionID: mine.ID(), Label: label, Text: "This is " + label,
			Language: "english", CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	s.Announcements().Create(&store.Announcement{
		ID: "other", SessionID: "someone-else", Label: "no", Text: "This is no", Language: "english",
	})

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"all", "", http.StatusOK, []string{"yes", "please", "hello"}},
		{"limited", "?limit=1", http.StatusOK, []string{"yes"}},
		{"bad limit", "?limit=abc", http.StatusBadRequest, nil},
		{"negative limit", "?limit=-2", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := withSession(mine, NewAnnouncementsHandler(s))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/announcements"+tt.query, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantIDs == nil {
				return
			}
			var resp announcementsResponse
			decode(t, rec, &resp)
			if len(resp.Announcements) != len(tt.wantIDs) {
				t.Fatalf("got %d announcements, want %d", len(resp.Announcements), len(tt.wantIDs))
			}
			for i, a := range resp.Announcements {
				if a.ID != tt.wantIDs[i] {
					t.Errorf("announcement %d = %s, want %s", i, a.ID, tt.wantIDs[i])
				}
			}
		})
	}

	t.Run("without store", func(t *testing.T) {
		h := withSession(mine, NewAnnouncementsHandler(nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/announcements", nil))

		var resp map[string]any
		decode(t, rec, &resp)
		list, ok := resp["announcements"].([]any)
		if !ok || len(list) != 0 {
			t.Errorf("announcements = %v, want empty list", resp["announcements"])
		}
	})
}
