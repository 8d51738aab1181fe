// Package game interprets board events into authoritative score/level state
// and session-budget verdicts. The dispatcher is a table-driven interpreter:
// every event name has its own update rule, looked up in a handler table
// built once at construction.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arcadeops/ledarcade/internal/domain"
	"github.com/arcadeops/ledarcade/internal/protocol"
	"github.com/arcadeops/ledarcade/internal/session"
	"github.com/arcadeops/ledarcade/internal/store"
)

// Inbound event names, case-sensitive per the wire protocol.
const (
	EvtScore   = "SCORE"
	EvtHit     = "HIT"
	EvtNoteHit = "NOTE_HIT"

	EvtLevel   = "LEVEL"
	EvtLevelUp = "LEVEL_UP"

	EvtMiss           = "MISS"
	EvtWrongKey       = "WRONG_KEY"
	EvtMeteorHit      = "METEOR_HIT"
	EvtNoteMiss       = "NOTE_MISS"
	EvtRoletaExplode  = "ROLETA_EXPLODE"
	EvtLightningWrong = "LIGHTNING_WRONG"
	EvtSniperMiss     = "SNIPER_MISS"
	EvtSniperTimeout  = "SNIPER_TIMEOUT"
	EvtTargetMissed   = "TARGET_MISSED"

	EvtGameOver        = "GAME_OVER"
	EvtGatoRatoTimeout = "GATO_RATO_TIMEOUT"

	EvtLEDOn      = "LED_ON"
	EvtLEDOff     = "LED_OFF"
	EvtPlayerMove = "PLAYER_MOVE"
	EvtCombo      = "COMBO"
	EvtPerfect    = "PERFECT"
	EvtStatus     = "STATUS"
)

// highlightDuration is how long an LED highlight lasts before auto-clearing,
// unless re-triggered for the same index.
const highlightDuration = 200 * time.Millisecond

const scoreSaveTimeout = 5 * time.Second

// RuntimeState is the transient per-connection game state. The board is the
// authority on score: an absolute total in an event overwrites the local
// accumulation at any time.
type RuntimeState struct {
	Mode      domain.GameMode
	Active    bool
	Score     int
	Level     int
	StartedAt time.Time
}

type handlerFunc func(msg protocol.Message)

// Dispatcher owns the runtime state and routes every inbound event through
// one mutex, so event application is single-threaded even though delivery
// comes from the serial reader, timers and input handlers concurrently.
type Dispatcher struct {
	mu         sync.Mutex
	state      RuntimeState
	clientID   string // active budget-limited client; "" means operator play
	clientName string

	sessions *session.Controller
	repo     store.Repository
	notifier Notifier
	logger   *slog.Logger

	handlers map[string]handlerFunc

	hlMu       sync.Mutex
	highlights map[int]*time.Timer
}

// NewDispatcher builds a dispatcher with its handler table.
func NewDispatcher(sessions *session.Controller, repo store.Repository, notifier Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	d := &Dispatcher{
		sessions:   sessions,
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		highlights: make(map[int]*time.Timer),
	}

	d.handlers = map[string]handlerFunc{
		EvtScore:   d.handleScore,
		EvtHit:     d.handleScore,
		EvtNoteHit: d.handleScore,

		EvtLevel:   d.handleLevel,
		EvtLevelUp: d.handleLevelUp,

		EvtMiss:           d.handleLoss,
		EvtWrongKey:       d.handleLoss,
		EvtMeteorHit:      d.handleLoss,
		EvtNoteMiss:       d.handleLoss,
		EvtRoletaExplode:  d.handleLoss,
		EvtLightningWrong: d.handleLoss,
		EvtSniperMiss:     d.handleLoss,
		EvtSniperTimeout:  d.handleLoss,
		EvtTargetMissed:   d.handleLoss,

		EvtGameOver:        d.handleGameOver,
		EvtGatoRatoTimeout: d.handleHardTimeout,

		EvtLEDOn:      d.handleLEDOn,
		EvtLEDOff:     d.handleLEDOff,
		EvtPlayerMove: d.handleLEDOn,
		EvtCombo:      d.handlePraise,
		EvtPerfect:    d.handlePraise,
		EvtStatus:     d.handleStatus,
	}

	return d
}

// SetPlayer binds the active budget-limited client. An empty ID means the
// operator is playing and no budget applies.
func (d *Dispatcher) SetPlayer(clientID, clientName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clientID = clientID
	d.clientName = clientName
}

// StartGame resets the runtime state for a new round of the given mode.
func (d *Dispatcher) StartGame(mode domain.GameMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = RuntimeState{
		Mode:      mode,
		Active:    true,
		Level:     1,
		StartedAt: time.Now(),
	}
	d.logger.Info("Game started", "mode", mode.String())
}

// StopGame marks the runtime inactive without touching the session.
func (d *Dispatcher) StopGame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Active = false
}

// ResetScore zeroes the local score so it stays in sync with the board
// after a RESET_SCORE command.
func (d *Dispatcher) ResetScore() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Score = 0
	d.notifier.Notify(Notification{Type: NotifScore, Score: 0})
}

// State returns a copy of the runtime state.
func (d *Dispatcher) State() RuntimeState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// HandleLine is the transport's line consumer. Every inbound line, however
// malformed, is handled without error: protocol noise degrades to a log line.
func (d *Dispatcher) HandleLine(line string) {
	msg := protocol.Parse(line)

	switch msg.Kind {
	case protocol.KindReady:
		d.logger.Info("Board ready")
		d.notifier.Notify(Notification{Type: NotifStatus, Text: "board ready"})
	case protocol.KindAllOff:
		d.clearAllHighlights()
	case protocol.KindEvent:
		d.apply(msg)
	}
}

// Tick is the 1-second UI refresh entry point. It goes through the same
// sequencing mutex as board events.
func (d *Dispatcher) Tick(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.Active {
		return
	}
	elapsed := now.Sub(d.state.StartedAt).Round(time.Second)
	d.notifier.Notify(Notification{
		Type:  NotifStatus,
		Text:  fmt.Sprintf("%s: score %d, level %d, %s elapsed", d.state.Mode, d.state.Score, d.state.Level, elapsed),
		Score: d.state.Score,
		Level: d.state.Level,
	})
}

func (d *Dispatcher) apply(msg protocol.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handler, ok := d.handlers[msg.Name]
	if !ok {
		d.logger.Debug("Unknown event ignored", "name", msg.Name, "raw", msg.Raw)
		return
	}
	handler(msg)
}

// handleScore applies a score event. Field 0 is a delta; an optional field 1
// is the board's absolute running total, which overwrites the local score.
// "Points earned" is display-only: the difference against the prior local
// score when an absolute is present, the delta otherwise.
func (d *Dispatcher) handleScore(msg protocol.Message) {
	delta, hasDelta := msg.Int(0)
	abs, hasAbs := msg.Int(1)

	var earned int
	switch {
	case hasAbs:
		earned = abs - d.state.Score
		d.state.Score = abs
	case hasDelta:
		earned = delta
		d.state.Score += delta
	default:
		d.logger.Debug("Score event without numeric fields skipped", "raw", msg.Raw)
		return
	}

	d.notifier.Notify(Notification{Type: NotifAudio, Cue: "score"})
	d.notifier.Notify(Notification{
		Type:   NotifScore,
		Score:  d.state.Score,
		Earned: earned,
		Level:  d.state.Level,
	})
}

func (d *Dispatcher) handleLevel(msg protocol.Message) {
	lvl, ok := msg.Int(0)
	if !ok {
		d.logger.Debug("Level event without numeric level skipped", "raw", msg.Raw)
		return
	}
	d.state.Level = lvl
	d.notifier.Notify(Notification{Type: NotifScore, Score: d.state.Score, Level: lvl})
}

// handleLevelUp sets the level and applies an optional synchronized score
// from field 1, with the same overwrite rule as score events.
func (d *Dispatcher) handleLevelUp(msg protocol.Message) {
	if lvl, ok := msg.Int(0); ok {
		d.state.Level = lvl
	} else {
		d.state.Level++
	}
	if abs, ok := msg.Int(1); ok {
		d.state.Score = abs
	}
	d.notifier.Notify(Notification{Type: NotifAudio, Cue: "level_up"})
	d.notifier.Notify(Notification{Type: NotifEffect, Effect: "LEVEL_UP"})
	d.notifier.Notify(Notification{Type: NotifScore, Score: d.state.Score, Level: d.state.Level})
}

// handleLoss records exactly one round loss against the active client's
// budget per event occurrence. Operator play has no budget to spend.
func (d *Dispatcher) handleLoss(msg protocol.Message) {
	d.notifier.Notify(Notification{Type: NotifAudio, Cue: "miss"})

	if d.clientID == "" {
		return
	}

	d.sessions.RecordError(d.clientID)

	if d.sessions.ShouldEnd(d.clientID) {
		d.completeSession("error budget exhausted")
		return
	}

	remaining := d.sessions.RemainingRounds(d.clientID)
	d.notifier.Notify(Notification{
		Type:      NotifRemaining,
		ClientID:  d.clientID,
		Remaining: remaining,
		Text:      fmt.Sprintf("%d chances left", remaining),
	})
}

// handleGameOver is idempotent under concurrent delivery: once the runtime
// is inactive the event is logged and dropped.
func (d *Dispatcher) handleGameOver(msg protocol.Message) {
	if !d.state.Active {
		d.logger.Debug("GAME_OVER on inactive runtime ignored", "raw", msg.Raw)
		return
	}
	d.state.Active = false

	if final, ok := msg.Int(0); ok {
		d.state.Score = final
	}

	d.saveScore()

	d.notifier.Notify(Notification{Type: NotifAudio, Cue: "game_over"})
	d.notifier.Notify(Notification{
		Type:  NotifStatus,
		Text:  fmt.Sprintf("game over: score %d", d.state.Score),
		Score: d.state.Score,
		Level: d.state.Level,
	})

	if d.clientID != "" && d.sessions.RemainingRounds(d.clientID) == 0 {
		d.completeSession("error budget exhausted")
	}
}

// handleHardTimeout forces the session closed regardless of remaining
// budget. This is the play-time business rule, distinct from ordinary
// budget exhaustion.
func (d *Dispatcher) handleHardTimeout(msg protocol.Message) {
	d.state.Active = false

	if d.clientID == "" {
		return
	}

	d.sessions.EndSessionByTimeout(d.clientID, "play time limit reached")
	d.completeSession("play time limit reached")
}

// completeSession schedules the single end-of-session notification. The
// single-flight guard lives in the controller, under its own lock, distinct
// from the game-active flag.
func (d *Dispatcher) completeSession(reason string) {
	if !d.sessions.BeginCompletion(d.clientID) {
		d.logger.Debug("Session completion already scheduled", "client_id", d.clientID)
		return
	}
	d.notifier.Notify(Notification{
		Type:     NotifSessionEnded,
		ClientID: d.clientID,
		Reason:   reason,
		Text:     d.sessions.StatusString(d.clientID),
	})
	d.logger.Info("Session completion scheduled", "client_id", d.clientID, "reason", reason)
}

// saveScore persists the finished game for the leaderboard. Fire-and-forget:
// slow storage must not stall event application.
func (d *Dispatcher) saveScore() {
	rec := &domain.ScoreRecord{
		ClientID:   d.clientID,
		ClientName: d.clientName,
		Game:       d.state.Mode,
		Score:      d.state.Score,
		Level:      d.state.Level,
		PlayedAt:   time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scoreSaveTimeout)
		defer cancel()
		if err := d.repo.SaveScore(ctx, rec); err != nil {
			d.logger.Error("Failed to save score record", "error", err)
		}
	}()
}

func (d *Dispatcher) handleLEDOn(msg protocol.Message) {
	idx, ok := msg.Int(0)
	if !ok {
		return
	}
	d.highlight(idx)
}

func (d *Dispatcher) handleLEDOff(msg protocol.Message) {
	idx, ok := msg.Int(0)
	if !ok {
		return
	}
	d.clearHighlight(idx)
}

func (d *Dispatcher) handlePraise(msg protocol.Message) {
	d.notifier.Notify(Notification{Type: NotifAudio, Cue: "praise"})
	d.notifier.Notify(Notification{Type: NotifEffect, Effect: msg.Name})
}

func (d *Dispatcher) handleStatus(msg protocol.Message) {
	d.notifier.Notify(Notification{Type: NotifStatus, Text: msg.Field(0)})
}

// highlight lights an LED and schedules its auto-clear. Re-triggering the
// same index cancels and replaces that index's timer only.
func (d *Dispatcher) highlight(idx int) {
	d.hlMu.Lock()
	if tmr, ok := d.highlights[idx]; ok {
		tmr.Stop()
	}
	d.highlights[idx] = time.AfterFunc(highlightDuration, func() {
		d.hlMu.Lock()
		delete(d.highlights, idx)
		d.hlMu.Unlock()
		d.notifier.Notify(Notification{Type: NotifLEDOff, LED: idx})
	})
	d.hlMu.Unlock()

	d.notifier.Notify(Notification{Type: NotifLEDOn, LED: idx})
}

func (d *Dispatcher) clearHighlight(idx int) {
	d.hlMu.Lock()
	if tmr, ok := d.highlights[idx]; ok {
		tmr.Stop()
		delete(d.highlights, idx)
	}
	d.hlMu.Unlock()

	d.notifier.Notify(Notification{Type: NotifLEDOff, LED: idx})
}

func (d *Dispatcher) clearAllHighlights() {
	d.hlMu.Lock()
	for idx, tmr := range d.highlights {
		tmr.Stop()
		delete(d.highlights, idx)
	}
	d.hlMu.Unlock()

	d.notifier.Notify(Notification{Type: NotifStatus, Text: "all LEDs off"})
}

// Close cancels all pending highlight timers. Part of component teardown.
func (d *Dispatcher) Close() {
	d.hlMu.Lock()
	for idx, tmr := range d.highlights {
		tmr.Stop()
		delete(d.highlights, idx)
	}
	d.hlMu.Unlock()
}
