// Package session owns the per-client play-budget sessions and is the only
// mutation point for them. Reads take a shared lock; every mutation is
// followed by a write-through persist of the full table so the budget rule
// survives a crash immediately after the mutating call returns.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arcadeops/ledarcade/internal/domain"
	"github.com/arcadeops/ledarcade/internal/store"
)

var (
	// ErrMenuSession is returned when a session is created for the menu,
	// which is never a playable game.
	ErrMenuSession = errors.New("menu is not a playable game")
	// ErrUnknownGame is returned for a game mode outside the supported set.
	ErrUnknownGame = errors.New("unknown game mode")
)

const persistTimeout = 5 * time.Second

// Controller owns the session table. All operations are safe for concurrent
// callers. The table lock and the persistence lock are distinct so slow disk
// I/O never stalls concurrent reads of in-memory state.
type Controller struct {
	mu          sync.RWMutex
	sessions    map[string]*domain.Session
	snapshotSeq uint64 // guarded by mu; advances with every snapshot taken

	repo store.Repository

	// persistMu serializes writes to storage. persistedSeq is the sequence
	// of the snapshot currently on disk; a snapshot that lost the race to a
	// newer one is discarded, never written, so the stored table can only
	// move forward.
	persistMu    sync.Mutex
	persistedSeq uint64

	// completionMu guards the single-flight completion flags, separate from
	// the table lock so completion checks never contend with gameplay reads.
	completionMu sync.Mutex
	completing   map[string]bool

	logger *slog.Logger
}

// NewController creates a controller and loads the persisted session table.
// A load failure degrades to an empty table; the process must come up even
// with contended or missing storage.
func NewController(ctx context.Context, repo store.Repository, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		logger.Error("Failed to load sessions, starting with empty table", "error", err)
		sessions = make(map[string]*domain.Session)
	}

	return &Controller{
		sessions:   sessions,
		repo:       repo,
		completing: make(map[string]bool),
		logger:     logger,
	}
}

// Create registers a new session for a budget-limited client. The error
// budget is fixed from the per-game table at creation and never changes. An
// existing session for the same client is replaced, and its single-flight
// completion flag cleared.
func (c *Controller) Create(clientID, clientName string, game domain.GameMode) (*domain.Session, error) {
	if game == domain.ModeMenu {
		return nil, ErrMenuSession
	}
	if !game.Valid() {
		return nil, ErrUnknownGame
	}

	sess := &domain.Session{
		ClientID:     clientID,
		ClientName:   clientName,
		SelectedGame: game,
		SessionStart: time.Now(),
		MaxErrors:    domain.MaxErrorsFor(game),
		IsActive:     true,
	}

	c.mu.Lock()
	c.sessions[clientID] = sess
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.completionMu.Lock()
	delete(c.completing, clientID)
	c.completionMu.Unlock()

	c.persist(snapshot, seq)
	c.logger.Info("Session created",
		"client_id", clientID, "game", game.String(), "max_errors", sess.MaxErrors)
	copied := *sess
	return &copied, nil
}

// Get returns a copy of the session for a client, or nil if none exists.
func (c *Controller) Get(clientID string) *domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[clientID]
	if !ok {
		return nil
	}
	copied := *sess
	return &copied
}

// RecordError counts one loss event against the client's budget. Recording
// against a client without a session is a no-op, not an error.
func (c *Controller) RecordError(clientID string) {
	c.mu.Lock()
	sess, ok := c.sessions[clientID]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("RecordError for unknown client ignored", "client_id", clientID)
		return
	}
	sess.ErrorsCommitted++
	remaining := sess.RemainingRounds()
	errs := sess.ErrorsCommitted
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snapshot, seq)
	c.logger.Info("Round lost",
		"client_id", clientID, "errors", errs, "remaining", remaining)
}

// CanPlay reports whether the client's session is active, bound to a real
// game, and still has rounds left.
func (c *Controller) CanPlay(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[clientID]
	return ok && sess.CanPlay()
}

// RemainingRounds returns how many loss events the client can still absorb.
// Zero when no session exists.
func (c *Controller) RemainingRounds(clientID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if sess, ok := c.sessions[clientID]; ok {
		return sess.RemainingRounds()
	}
	return 0
}

// ShouldEnd reports whether the client's error budget is exhausted. This is
// the budget rule only; the timeout rule goes through EndSessionByTimeout.
func (c *Controller) ShouldEnd(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[clientID]
	return ok && sess.ErrorsCommitted >= sess.MaxErrors
}

// EndSession marks the session inactive. Counters are left untouched.
func (c *Controller) EndSession(clientID string) {
	c.mu.Lock()
	sess, ok := c.sessions[clientID]
	if !ok {
		c.mu.Unlock()
		return
	}
	sess.IsActive = false
	if sess.Termination == domain.TerminationNone {
		sess.Termination = domain.TerminationEnded
	}
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snapshot, seq)
	c.logger.Info("Session ended", "client_id", clientID)
}

// EndSessionByTimeout forces the session permanently closed by a hard
// business rule, regardless of remaining budget. The error counter is
// clamped to the maximum so persisted counters alone show a spent budget.
func (c *Controller) EndSessionByTimeout(clientID, reason string) {
	c.mu.Lock()
	sess, ok := c.sessions[clientID]
	if !ok {
		c.mu.Unlock()
		return
	}
	sess.IsActive = false
	sess.ErrorsCommitted = sess.MaxErrors
	sess.Termination = domain.TerminationTimeout
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snapshot, seq)
	c.logger.Info("Session closed by timeout rule", "client_id", clientID, "reason", reason)
}

// IsBlockedByTimeout reports whether the session was closed by a hard
// business rule rather than ordinary budget exhaustion.
func (c *Controller) IsBlockedByTimeout(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[clientID]
	return ok && !sess.IsActive && sess.Termination == domain.TerminationTimeout &&
		sess.ErrorsCommitted >= sess.MaxErrors
}

// BeginCompletion claims the single end-of-session flow for a client. It
// returns true exactly once per session even when a GAME_OVER check and an
// error-recording check race; the loser of the race must do nothing.
func (c *Controller) BeginCompletion(clientID string) bool {
	c.completionMu.Lock()
	defer c.completionMu.Unlock()
	if c.completing[clientID] {
		return false
	}
	c.completing[clientID] = true
	return true
}

// StatusString returns a human-readable session summary for UI/debug panes.
func (c *Controller) StatusString(clientID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[clientID]
	if !ok {
		return "no session"
	}
	state := "active"
	if !sess.IsActive {
		state = "closed"
		if sess.Termination == domain.TerminationTimeout {
			state = "closed (time limit)"
		}
	}
	return fmt.Sprintf("%s playing %s: %d/%d errors, %d chances left, %s",
		sess.ClientName, sess.SelectedGame, sess.ErrorsCommitted, sess.MaxErrors,
		sess.RemainingRounds(), state)
}

// GameSummary returns errors committed per game for end-of-session reports.
func (c *Controller) GameSummary(clientID string) map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	summary := make(map[string]int)
	if sess, ok := c.sessions[clientID]; ok {
		summary[sess.SelectedGame.String()] = sess.ErrorsCommitted
	}
	return summary
}

// snapshotLocked copies the table for persistence and stamps it with the
// next sequence number. Caller holds mu, so a snapshot with a higher
// sequence always contains every mutation of a lower one.
func (c *Controller) snapshotLocked() (map[string]*domain.Session, uint64) {
	snapshot := make(map[string]*domain.Session, len(c.sessions))
	for id, sess := range c.sessions {
		copied := *sess
		snapshot[id] = &copied
	}
	c.snapshotSeq++
	return snapshot, c.snapshotSeq
}

// persist writes the full table through to storage. Snapshots are full-table
// and sequence-ordered, so one that arrives after a newer snapshot has been
// written is dropped; writing it would roll the stored counters back. When a
// mutating call returns, its effect is on disk either through its own
// snapshot or through a newer one. Failures are logged, never propagated:
// the in-memory table stays authoritative for the rest of the process
// lifetime.
func (c *Controller) persist(snapshot map[string]*domain.Session, seq uint64) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if seq <= c.persistedSeq {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.repo.SaveSessions(ctx, snapshot); err != nil {
		c.logger.Error("Failed to persist sessions, in-memory table remains authoritative",
			"error", err)
		return
	}
	c.persistedSeq = seq
}
