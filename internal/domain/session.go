package domain

import (
	"time"
)

// TerminationReason records how a session stopped being active.
type TerminationReason string

const (
	// TerminationNone marks a session that is still active.
	TerminationNone TerminationReason = ""
	// TerminationEnded marks an ordinary end (logout or budget exhaustion).
	TerminationEnded TerminationReason = "ended"
	// TerminationTimeout marks a forced close by a hard business rule,
	// e.g. the cat-and-mouse play-time limit.
	TerminationTimeout TerminationReason = "timeout"
)

// Session is the durable record of a client's single-game play allowance,
// from login to termination. It is owned by the session controller; other
// packages read it through the controller's accessors.
type Session struct {
	ClientID        string            `json:"client_id"`
	ClientName      string            `json:"client_name"`
	SelectedGame    GameMode          `json:"selected_game"`
	SessionStart    time.Time         `json:"session_start"`
	MaxErrors       int               `json:"max_errors"`
	ErrorsCommitted int               `json:"errors_committed"`
	IsActive        bool              `json:"is_active"`
	Termination     TerminationReason `json:"termination,omitempty"`
}

// RemainingRounds returns how many loss events the session can still absorb.
// Never negative.
func (s *Session) RemainingRounds() int {
	remaining := s.MaxErrors - s.ErrorsCommitted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanPlay reports whether the session may start or continue a round.
// A menu session is never playable.
func (s *Session) CanPlay() bool {
	return s.IsActive && s.SelectedGame != ModeMenu && s.RemainingRounds() > 0
}

// Age returns how long ago the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.SessionStart)
}
