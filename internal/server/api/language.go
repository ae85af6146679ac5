package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/session"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 10

// LanguageSetter applies a language change for a session.
type LanguageSetter interface {
	SetLanguage(sess *session.Session, lang announce.Language)
}

// LanguageHandler serves POST /set_language.
type LanguageHandler struct {
	setter LanguageSetter
}

// NewLanguageHandler creates a LanguageHandler.
func NewLanguageHandler(setter LanguageSetter) *LanguageHandler {
	return &LanguageHandler{setter: setter}
}

// setLanguageRequest defaults to English when the language key is absent.
type setLanguageRequest struct {
	Language *string `json:"language"`
}

type setLanguageResponse struct {
	Success  bool   `json:"success"`
	Language string `json:"language"`
}

// ServeHTTP switches the session language. The session is left unchanged on error.
func (h *LanguageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req setLanguageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := announce.English.String()
	if req.Language != nil {
		name = *req.Language
	}
	lang, err := announce.ParseLanguage(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid language")
		return
	}

	h.setter.SetLanguage(sess, lang)
	writeJSON(w, http.StatusOK, setLanguageResponse{Success: true, Language: lang.String()})
}
