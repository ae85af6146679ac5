package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/sign2text/internal/store"
)

// AnnouncementsHandler serves GET /api/announcements, the request session's
// announcement history, newest first.
type AnnouncementsHandler struct {
	store *store.Store
}

// NewAnnouncementsHandler creates an AnnouncementsHandler. s may be nil, in
// which case the history is always empty.
func NewAnnouncementsHandler(s *store.Store) *AnnouncementsHandler {
	return &AnnouncementsHandler{store: s}
}

type announcementsResponse struct {
	SessionID     string                `json:"session_id"`
	Announcements []*store.Announcement `json:"announcements"`
}

// ServeHTTP lists announcements. The optional limit query parameter caps the result.
func (h *AnnouncementsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	resp := announcementsResponse{SessionID: sess.ID(), Announcements: []*store.Announcement{}}
	if h.store != nil {
		list, err := h.store.Announcements().ListBySession(sess.ID(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list announcements")
			return
		}
		if list != nil {
			resp.Announcements = list
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
