package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/arcadeops/ledarcade/internal/domain"
	"github.com/arcadeops/ledarcade/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateSession registers a new budget-limited client session. The client ID
// is generated here and is the handle for everything that follows.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientName string `json:"client_name"`
		Game       int    `json:"game"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ClientName == "" {
		Error(w, http.StatusBadRequest, "client_name required")
		return
	}

	clientID := uuid.NewString()
	sess, err := h.sessions.Create(clientID, req.ClientName, domain.GameMode(req.Game))
	if err != nil {
		if errors.Is(err, session.ErrMenuSession) || errors.Is(err, session.ErrUnknownGame) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	JSON(w, http.StatusCreated, sess)
}

// GetSession returns the session record plus derived status for a client.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	sess := h.sessions.Get(clientID)
	if sess == nil {
		Error(w, http.StatusNotFound, "no session for client")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":            sess,
		"status":             h.sessions.StatusString(clientID),
		"remaining_rounds":   sess.RemainingRounds(),
		"can_play":           h.sessions.CanPlay(clientID),
		"should_end":         h.sessions.ShouldEnd(clientID),
		"blocked_by_timeout": h.sessions.IsBlockedByTimeout(clientID),
	})
}

// SessionSummary returns errors committed per game for end-of-session
// reporting.
func (h *Handler) SessionSummary(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if h.sessions.Get(clientID) == nil {
		Error(w, http.StatusNotFound, "no session for client")
		return
	}
	JSON(w, http.StatusOK, h.sessions.GameSummary(clientID))
}

// EndSession marks the client's session inactive (logout / explicit end).
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if h.sessions.Get(clientID) == nil {
		Error(w, http.StatusNotFound, "no session for client")
		return
	}
	h.sessions.EndSession(clientID)
	JSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// Scores returns the leaderboard, best first.
func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.repo.TopScores(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load scores")
		return
	}
	if records == nil {
		records = []*domain.ScoreRecord{}
	}
	JSON(w, http.StatusOK, records)
}
