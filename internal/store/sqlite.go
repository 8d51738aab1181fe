package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arcadeops/ledarcade/internal/domain"
	"github.com/arcadeops/ledarcade/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serializes full-table session writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		client_id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		selected_game TEXT NOT NULL,
		session_start INTEGER NOT NULL,
		max_errors INTEGER NOT NULL,
		errors_committed INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		termination TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(session_start);

	CREATE TABLE IF NOT EXISTS scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL,
		client_name TEXT NOT NULL,
		game TEXT NOT NULL,
		score INTEGER NOT NULL,
		level INTEGER NOT NULL,
		played_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadSessions retrieves the full session table keyed by client ID.
func (s *SQLiteStore) LoadSessions(ctx context.Context) (map[string]*domain.Session, error) {
	query := `
		SELECT client_id, client_name, selected_game, session_start,
		       max_errors, errors_committed, is_active, termination
		FROM sessions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	sessions := make(map[string]*domain.Session)
	for rows.Next() {
		var sess domain.Session
		var game, termination string
		var start int64
		var active int

		if err := rows.Scan(
			&sess.ClientID, &sess.ClientName, &game, &start,
			&sess.MaxErrors, &sess.ErrorsCommitted, &active, &termination,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		sess.SelectedGame = gameModeFromName(game)
		sess.SessionStart = time.Unix(start, 0)
		sess.IsActive = active != 0
		sess.Termination = domain.TerminationReason(termination)
		sessions[sess.ClientID] = &sess
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// SaveSessions persists the full session table, replacing the stored one.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveSessions(ctx context.Context, sessions map[string]*domain.Session) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.saveSessionsOnce(ctx, sessions)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("SaveSessions failed with SQLITE_BUSY, retrying",
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		// Non-retryable error or max retries exceeded
		return fmt.Errorf("failed to save sessions after %d attempts: %w", maxRetries, err)
	}

	return nil
}

// saveSessionsOnce performs a single full-table write in one transaction.
func (s *SQLiteStore) saveSessionsOnce(ctx context.Context, sessions map[string]*domain.Session) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	query := `
		INSERT INTO sessions (
			client_id, client_name, selected_game, session_start,
			max_errors, errors_committed, is_active, termination
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, sess := range sessions {
		active := 0
		if sess.IsActive {
			active = 1
		}
		if _, err := tx.ExecContext(ctx, query,
			sess.ClientID, sess.ClientName, sess.SelectedGame.String(),
			sess.SessionStart.Unix(), sess.MaxErrors, sess.ErrorsCommitted,
			active, string(sess.Termination),
		); err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ClientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session save: %w", err)
	}
	return nil
}

// DeleteSessionsBefore removes sessions created before the cutoff.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_start < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete old sessions: %w", err)
	}
	return result.RowsAffected()
}

// SaveScore appends a completed game's score record.
func (s *SQLiteStore) SaveScore(ctx context.Context, rec *domain.ScoreRecord) error {
	query := `
		INSERT INTO scores (client_id, client_name, game, score, level, played_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ClientID, rec.ClientName, rec.Game.String(),
		rec.Score, rec.Level, rec.PlayedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// TopScores returns up to limit score records, best first.
func (s *SQLiteStore) TopScores(ctx context.Context, limit int) ([]*domain.ScoreRecord, error) {
	query := `
		SELECT client_id, client_name, game, score, level, played_at
		FROM scores ORDER BY score DESC, played_at ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close score rows", "error", closeErr)
		}
	}()

	var records []*domain.ScoreRecord
	for rows.Next() {
		var rec domain.ScoreRecord
		var game string
		var playedAt int64

		if err := rows.Scan(
			&rec.ClientID, &rec.ClientName, &game,
			&rec.Score, &rec.Level, &playedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}

		rec.Game = gameModeFromName(game)
		rec.PlayedAt = time.Unix(playedAt, 0)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// gameModeFromName maps a stored game name back to its mode. Unknown names
// come back as the menu mode, which is never playable.
func gameModeFromName(name string) domain.GameMode {
	for mode := domain.ModeMenu; mode <= domain.ModeTarget; mode++ {
		if mode.String() == name {
			return mode
		}
	}
	return domain.ModeMenu
}
