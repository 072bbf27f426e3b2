package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/regwhelp/internal/api/response"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
)

// SessionHandler handles live session endpoints
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, _ *http.Request) {
	snaps := h.sessions.Snapshots()
	out := response.SessionList{Sessions: make([]response.Session, len(snaps))}
	for i, snap := range snaps {
		out.Sessions[i] = response.SessionFromSnapshot(snap)
	}
	response.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/sessions/{player_id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.sessions.Lookup(mux.Vars(r)["player_id"])
	if !ok {
		WriteError(w, model.ErrPlayerNotFound)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromSnapshot(st.Snapshot()))
}
