package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcadeops/ledarcade/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "arcade.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestSaveAndLoadSessions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	start := time.Now().Truncate(time.Second)
	sessions := map[string]*domain.Session{
		"client-1": {
			ClientID:        "client-1",
			ClientName:      "Alice",
			SelectedGame:    domain.ModeMeteor,
			SessionStart:    start,
			MaxErrors:       3,
			ErrorsCommitted: 1,
			IsActive:        true,
		},
		"client-2": {
			ClientID:        "client-2",
			ClientName:      "Bob",
			SelectedGame:    domain.ModeGatoRato,
			SessionStart:    start.Add(-time.Hour),
			MaxErrors:       3,
			ErrorsCommitted: 3,
			IsActive:        false,
			Termination:     domain.TerminationTimeout,
		},
	}

	if err := repo.SaveSessions(ctx, sessions); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	loaded, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d sessions, want 2", len(loaded))
	}

	got := loaded["client-2"]
	if got == nil {
		t.Fatal("client-2 missing after reload")
	}
	if got.SelectedGame != domain.ModeGatoRato {
		t.Errorf("selected game = %v, want %v", got.SelectedGame, domain.ModeGatoRato)
	}
	if got.ErrorsCommitted != 3 || got.IsActive {
		t.Errorf("errors=%d active=%v, want 3/false", got.ErrorsCommitted, got.IsActive)
	}
	if got.Termination != domain.TerminationTimeout {
		t.Errorf("termination = %q, want %q", got.Termination, domain.TerminationTimeout)
	}
	if !got.SessionStart.Equal(start.Add(-time.Hour)) {
		t.Errorf("session start = %v, want %v", got.SessionStart, start.Add(-time.Hour))
	}
}

func TestSaveSessionsReplacesTable(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first := map[string]*domain.Session{
		"gone": {ClientID: "gone", ClientName: "Gone", SelectedGame: domain.ModePiano,
			SessionStart: time.Now(), MaxErrors: 3, IsActive: true},
	}
	if err := repo.SaveSessions(ctx, first); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	second := map[string]*domain.Session{
		"kept": {ClientID: "kept", ClientName: "Kept", SelectedGame: domain.ModeSniper,
			SessionStart: time.Now(), MaxErrors: 3, IsActive: true},
	}
	if err := repo.SaveSessions(ctx, second); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	loaded, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(loaded) != 1 || loaded["kept"] == nil {
		t.Fatalf("loaded = %v, want only 'kept'", loaded)
	}
}

func TestDeleteSessionsBefore(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	sessions := map[string]*domain.Session{
		"old": {ClientID: "old", ClientName: "Old", SelectedGame: domain.ModeMeteor,
			SessionStart: now.Add(-48 * time.Hour), MaxErrors: 3},
		"new": {ClientID: "new", ClientName: "New", SelectedGame: domain.ModeMeteor,
			SessionStart: now, MaxErrors: 3, IsActive: true},
	}
	if err := repo.SaveSessions(ctx, sessions); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	deleted, err := repo.DeleteSessionsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSessionsBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	loaded, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(loaded) != 1 || loaded["new"] == nil {
		t.Errorf("loaded = %v, want only 'new'", loaded)
	}
}

func TestScores(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	records := []*domain.ScoreRecord{
		{ClientID: "a", ClientName: "Alice", Game: domain.ModePiano, Score: 90, Level: 2, PlayedAt: time.Now()},
		{ClientID: "b", ClientName: "Bob", Game: domain.ModeMeteor, Score: 250, Level: 5, PlayedAt: time.Now()},
		{ClientID: "c", ClientName: "Cid", Game: domain.ModeSniper, Score: 120, Level: 3, PlayedAt: time.Now()},
	}
	for _, rec := range records {
		if err := repo.SaveScore(ctx, rec); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}
	}

	top, err := repo.TopScores(ctx, 2)
	if err != nil {
		t.Fatalf("TopScores: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d records, want 2", len(top))
	}
	if top[0].Score != 250 || top[1].Score != 120 {
		t.Errorf("scores = %d,%d; want 250,120", top[0].Score, top[1].Score)
	}
	if top[0].Game != domain.ModeMeteor {
		t.Errorf("top game = %v, want %v", top[0].Game, domain.ModeMeteor)
	}
}
