package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arcadeops/ledarcade/internal/domain"
	"github.com/arcadeops/ledarcade/internal/link"
	"github.com/arcadeops/ledarcade/internal/protocol"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all operator endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/ports", h.ListPorts)
		r.Post("/connect", h.Connect)
		r.Post("/disconnect", h.Disconnect)

		r.Post("/game/start", h.StartGame)
		r.Post("/game/stop", h.StopGame)
		r.Post("/game/reset-score", h.ResetScore)
		r.Post("/board/status", h.BoardStatus)

		r.Post("/input/key", h.Key)
		r.Post("/input/move", h.MoveCmd)
		r.Post("/input/action", h.ActionCmd)

		r.Post("/effects", h.Effect)
		r.Post("/effects/stop", h.StopEffects)

		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/{clientID}", h.GetSession)
		r.Get("/sessions/{clientID}/summary", h.SessionSummary)
		r.Post("/sessions/{clientID}/end", h.EndSession)

		r.Get("/scores", h.Scores)
	})
}

// ListPorts enumerates the host's serial ports.
func (h *Handler) ListPorts(w http.ResponseWriter, r *http.Request) {
	ports, err := h.transport.ListPorts()
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list ports")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"ports":     ports,
		"connected": h.transport.Connected(),
		"active":    h.transport.PortName(),
	})
}

// Connect opens a serial port, or auto-connects when no port is named.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port string `json:"port"`
		Baud int    `json:"baud"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Baud <= 0 {
		req.Baud = 115200
	}

	var (
		port = req.Port
		err  error
	)
	if port == "" {
		port, err = h.transport.AutoConnect(req.Baud)
	} else {
		err = h.transport.Connect(port, req.Baud)
	}
	if err != nil {
		slog.Warn("Board connect failed", "port", req.Port, "error", err)
		Error(w, http.StatusBadGateway, "no device")
		return
	}

	if err := h.transport.Send(protocol.CmdInit); err != nil {
		slog.Warn("INIT after connect failed", "error", err)
	}
	JSON(w, http.StatusOK, map[string]string{"port": port})
}

// Disconnect closes the serial connection. Safe when not connected.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.transport.Disconnect()
	JSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// StartGame starts a round. With a client_id the game is the session's
// selected game and the budget rule applies; without one the operator plays
// the requested mode with no budget.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
		Mode     int    `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}

	mode := domain.GameMode(req.Mode)
	clientName := ""

	if req.ClientID != "" {
		sess := h.sessions.Get(req.ClientID)
		if sess == nil {
			Error(w, http.StatusNotFound, "no session for client")
			return
		}
		if !h.sessions.CanPlay(req.ClientID) {
			Error(w, http.StatusForbidden, "session cannot play")
			return
		}
		// The game is fixed at session creation and never changes.
		mode = sess.SelectedGame
		clientName = sess.ClientName
	}

	if !mode.Valid() || mode == domain.ModeMenu {
		Error(w, http.StatusBadRequest, "invalid game mode")
		return
	}

	if err := h.transport.Send(protocol.StartGame(int(mode))); err != nil {
		Error(w, http.StatusBadGateway, "board not connected")
		return
	}

	h.dispatcher.SetPlayer(req.ClientID, clientName)
	h.dispatcher.StartGame(mode)
	JSON(w, http.StatusOK, map[string]interface{}{
		"mode":      int(mode),
		"game":      mode.String(),
		"remaining": h.sessions.RemainingRounds(req.ClientID),
	})
}

// StopGame stops the current round on the board and locally.
func (h *Handler) StopGame(w http.ResponseWriter, r *http.Request) {
	if err := h.transport.Send(protocol.CmdStopGame); err != nil {
		slog.Warn("STOP_GAME send failed", "error", err)
	}
	h.dispatcher.StopGame()
	JSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Key forwards a key press or release to the board.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index   int  `json:"index"`
		Pressed bool `json:"pressed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index < 0 {
		Error(w, http.StatusBadRequest, "invalid key index")
		return
	}

	cmd := protocol.KeyRelease(req.Index)
	if req.Pressed {
		cmd = protocol.KeyPress(req.Index)
	}
	h.sendCommand(w, cmd)
}

// MoveCmd forwards a directional move to the board.
func (h *Handler) MoveCmd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decode(w, r, &req) {
		return
	}

	dir := protocol.Direction(req.Direction)
	switch dir {
	case protocol.DirUp, protocol.DirDown, protocol.DirLeft, protocol.DirRight:
	default:
		Error(w, http.StatusBadRequest, "invalid direction")
		return
	}
	h.sendCommand(w, protocol.Move(dir))
}

// ActionCmd forwards a confirm/cancel action to the board.
func (h *Handler) ActionCmd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}

	act := protocol.Action(req.Action)
	switch act {
	case protocol.ActionConfirm, protocol.ActionCancel:
	default:
		Error(w, http.StatusBadRequest, "invalid action")
		return
	}
	h.sendCommand(w, protocol.Act(act))
}

// Effect triggers a named visual effect on the board.
func (h *Handler) Effect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "effect name required")
		return
	}
	h.sendCommand(w, protocol.Effect(req.Name))
}

// StopEffects stops all running board effects.
func (h *Handler) StopEffects(w http.ResponseWriter, r *http.Request) {
	h.sendCommand(w, protocol.CmdStopEffects)
}

// ResetScore zeroes the score on the board and in the local runtime state.
func (h *Handler) ResetScore(w http.ResponseWriter, r *http.Request) {
	if err := h.transport.Send(protocol.CmdResetScore); err != nil {
		Error(w, http.StatusBadGateway, "board not connected")
		return
	}
	h.dispatcher.ResetScore()
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// BoardStatus asks the board to report its status. The reply arrives on the
// serial line and is broadcast to observers like any other event.
func (h *Handler) BoardStatus(w http.ResponseWriter, r *http.Request) {
	h.sendCommand(w, protocol.CmdGetStatus)
}

func (h *Handler) sendCommand(w http.ResponseWriter, cmd string) {
	if err := h.transport.Send(cmd); err != nil {
		if errors.Is(err, link.ErrNotConnected) {
			Error(w, http.StatusBadGateway, "board not connected")
			return
		}
		Error(w, http.StatusBadGateway, "board write failed")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"sent": cmd})
}
