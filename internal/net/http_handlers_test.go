package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"redoubt/server"
	"redoubt/server/internal/content"
	"redoubt/server/internal/sim"
)

func testHub(t *testing.T) *server.Hub {
	t.Helper()
	library, err := content.NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	hub := server.NewHub(library, server.DefaultHubConfig())
	t.Cleanup(hub.Close)
	return hub
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	return NewHTTPHandler(testHub(t), HTTPHandlerConfig{
		TickRate:  sim.DefaultTickRate,
		Heartbeat: 2 * time.Second,
	})
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	if recorder.Code != http.StatusOK || recorder.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestJoinRequiresPost(t *testing.T) {
	handler := testHandler(t)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/join", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /join returned %d", recorder.Code)
	}
}

func TestJoinSeatsTwoPlayersIntoOneRoom(t *testing.T) {
	handler := testHandler(t)

	join := func() map[string]any {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/join", nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("POST /join returned %d: %s", recorder.Code, recorder.Body.String())
		}
		var payload map[string]any
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode join response: %v", err)
		}
		return payload
	}

	first := join()
	second := join()

	if first["playerId"] == "" || first["playerId"] == second["playerId"] {
		t.Fatalf("player ids not distinct: %v vs %v", first["playerId"], second["playerId"])
	}
	if first["roomId"] != second["roomId"] {
		t.Fatalf("players not matched into the same room: %v vs %v", first["roomId"], second["roomId"])
	}
	if first["team"] == second["team"] {
		t.Fatalf("both players on team %v", first["team"])
	}
	if first["catalogHash"] == "" || first["catalogHash"] != second["catalogHash"] {
		t.Fatalf("catalog hash mismatch: %v vs %v", first["catalogHash"], second["catalogHash"])
	}
	if _, ok := first["config"].(map[string]any); !ok {
		t.Fatalf("join response missing room config: %v", first["config"])
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	hub := testHub(t)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{TickRate: 20, Heartbeat: 2 * time.Second})

	if _, err := hub.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("diagnostics returned %d", recorder.Code)
	}
	var payload struct {
		Status   string `json:"status"`
		TickRate int    `json:"tickRate"`
		Rooms    []struct {
			ID    string `json:"id"`
			Seats int    `json:"seats"`
		} `json:"rooms"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.TickRate != 20 {
		t.Fatalf("unexpected diagnostics payload: %+v", payload)
	}
	if len(payload.Rooms) != 1 || payload.Rooms[0].Seats != 1 {
		t.Fatalf("room summary wrong: %+v", payload.Rooms)
	}
}
