// Package api exposes the operator HTTP surface: board connection control,
// game and input commands, session inspection and the leaderboard.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/arcadeops/ledarcade/internal/game"
	"github.com/arcadeops/ledarcade/internal/link"
	"github.com/arcadeops/ledarcade/internal/session"
	"github.com/arcadeops/ledarcade/internal/store"
)

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	transport  *link.Transport
	dispatcher *game.Dispatcher
	sessions   *session.Controller
	repo       store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(transport *link.Transport, dispatcher *game.Dispatcher, sessions *session.Controller, repo store.Repository) *Handler {
	return &Handler{
		transport:  transport,
		dispatcher: dispatcher,
		sessions:   sessions,
		repo:       repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
