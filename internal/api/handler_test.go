package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arcadeops/ledarcade/internal/game"
	"github.com/arcadeops/ledarcade/internal/link"
	"github.com/arcadeops/ledarcade/internal/session"
	"github.com/arcadeops/ledarcade/internal/store"
	"github.com/go-chi/chi/v5"
)

// newTestServer wires real components around a disconnected transport.
func newTestServer(t *testing.T) (*httptest.Server, *session.Controller) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "arcade.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	transport := link.NewTransport(nil)
	sessions := session.NewController(context.Background(), repo, nil)
	dispatcher := game.NewDispatcher(sessions, repo, game.NopNotifier{}, nil)
	t.Cleanup(dispatcher.Close)

	r := chi.NewRouter()
	NewHandler(transport, dispatcher, sessions, repo).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sessions
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCreateSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"client_name": "Alice", "game": 1})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if body["client_id"] == "" {
		t.Error("missing generated client_id")
	}
	if body["max_errors"] != float64(3) {
		t.Errorf("max_errors = %v, want 3", body["max_errors"])
	}
	if body["is_active"] != true {
		t.Errorf("is_active = %v, want true", body["is_active"])
	}
}

func TestCreateSessionRejectsMenu(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"client_name": "Alice", "game": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for menu game", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"game": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing name", resp.StatusCode)
	}
}

func TestGetSession(t *testing.T) {
	srv, sessions := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"client_name": "Alice", "game": 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	clientID := body["client_id"].(string)

	sessions.RecordError(clientID)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+clientID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["remaining_rounds"] != float64(2) {
		t.Errorf("remaining_rounds = %v, want 2", body["remaining_rounds"])
	}
	if body["can_play"] != true {
		t.Errorf("can_play = %v, want true", body["can_play"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nobody", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown client", resp.StatusCode)
	}
}

func TestEndSession(t *testing.T) {
	srv, sessions := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"client_name": "Alice", "game": 3})
	clientID := body["client_id"].(string)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+clientID+"/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if sessions.CanPlay(clientID) {
		t.Error("session still playable after end")
	}
}

func TestStartGameRequiresBoard(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		map[string]interface{}{"client_name": "Alice", "game": 1})
	clientID := body["client_id"].(string)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/game/start",
		map[string]interface{}{"client_id": clientID})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 with no board connected", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/game/start",
		map[string]interface{}{"client_id": "ghost"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown client", resp.StatusCode)
	}
}

func TestInputValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/input/move",
		map[string]interface{}{"direction": "SIDEWAYS"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad direction", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/input/move",
		map[string]interface{}{"direction": "LEFT"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 with no board connected", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/input/key",
		map[string]interface{}{"index": -1, "pressed": true})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for negative key index", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/input/action",
		map[string]interface{}{"action": "MAYBE"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad action", resp.StatusCode)
	}
}

func TestScoresEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/scores", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET scores: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var records []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want empty", records)
	}

	resp2, _ := doJSON(t, http.MethodGet, srv.URL+"/api/scores?limit=0", nil)
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid limit", resp2.StatusCode)
	}
}
