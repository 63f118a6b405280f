package server

import (
	"testing"
	"time"

	"redoubt/server/internal/content"
	"redoubt/server/internal/sim"
)

func testLibrary(t *testing.T) *content.Library {
	t.Helper()
	library, err := content.NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return library
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	room, err := NewRoom("room-1", testLibrary(t), RoomOptions{})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return room
}

// advance drives one tick synchronously, the way Run does on its ticker.
func advance(room *Room, tick uint64) sim.LoopStepResult {
	return room.Loop().Advance(sim.LoopTickContext{Tick: tick, Now: time.Now(), Delta: 0.05})
}

func TestRoomSeatsTwoPlayersOnOpposingTeams(t *testing.T) {
	room := newTestRoom(t)

	first, err := room.Join("alice")
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	second, err := room.Join("bob")
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if first.Team == second.Team {
		t.Fatalf("both players seated on team %v", first.Team)
	}
	if first.CatalogHash == "" || first.CatalogHash != second.CatalogHash {
		t.Fatalf("catalog hash mismatch: %q vs %q", first.CatalogHash, second.CatalogHash)
	}
	if !first.Resync {
		t.Fatalf("join response not flagged for resync")
	}

	if _, err := room.Join("carol"); err != ErrRoomFull {
		t.Fatalf("third join returned %v", err)
	}

	// Seat registration reaches the simulation on the next tick.
	result := advance(room, 1)
	if len(result.Snapshot.Players) != 2 {
		t.Fatalf("players not registered in simulation: %+v", result.Snapshot.Players)
	}
}

func TestRoomAppliesStagedCommandsOnTick(t *testing.T) {
	room := newTestRoom(t)
	join, err := room.Join("alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	advance(room, 1)

	footman, ok := room.library.UnitByName("footman")
	if !ok {
		t.Fatalf("footman missing from catalog")
	}
	row := 10
	if join.Team == sim.TeamSouth {
		row = 13
	}
	ok, reason := room.Loop().Enqueue(sim.Command{
		Seq:      1,
		PlayerID: "alice",
		Type:     sim.CommandSubmitPlacement,
		Placement: &sim.PlacementCommand{
			UnitType:  footman,
			OriginCol: 2,
			OriginRow: row,
		},
	})
	if !ok {
		t.Fatalf("enqueue rejected: %s", reason)
	}

	result := advance(room, 2)
	if len(result.Results) != 1 || !result.Results[0].Err.OK() {
		t.Fatalf("placement not applied: %+v", result.Results)
	}
	if len(result.Snapshot.Units) != 4 {
		t.Fatalf("squad not spawned: %d units", len(result.Snapshot.Units))
	}
}

func TestRoomDisconnectRemovesPlayerFromSimulation(t *testing.T) {
	room := newTestRoom(t)
	if _, err := room.Join("alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := room.Join("bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	advance(room, 1)

	if !room.Disconnect("alice") {
		t.Fatalf("disconnect did not find the seat")
	}
	if room.HasPlayer("alice") {
		t.Fatalf("seat survived disconnect")
	}

	result := advance(room, 2)
	if len(result.Snapshot.Players) != 1 {
		t.Fatalf("player not removed from simulation: %+v", result.Snapshot.Players)
	}
}

func TestRoomHeartbeatUpdatesSeatAndSimulation(t *testing.T) {
	room := newTestRoom(t)
	if _, err := room.Join("alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	advance(room, 1)

	sent := time.Now().Add(-40 * time.Millisecond)
	rtt, ok := room.UpdateHeartbeat("alice", time.Now(), sent.UnixMilli())
	if !ok {
		t.Fatalf("heartbeat rejected")
	}
	if rtt <= 0 {
		t.Fatalf("rtt not measured: %v", rtt)
	}

	result := advance(room, 2)
	if len(result.Snapshot.Players) != 1 || result.Snapshot.Players[0].RTTMillis <= 0 {
		t.Fatalf("heartbeat did not reach the simulation: %+v", result.Snapshot.Players)
	}
}

func TestRoomKeyframeRequestServesStoredFrame(t *testing.T) {
	room := newTestRoom(t)
	if _, err := room.Join("alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	advance(room, 1)

	frame, _ := room.Loop().RecordKeyframe()
	data, err := room.HandleKeyframeRequest("alice", frame.Sequence)
	if err != nil {
		t.Fatalf("keyframe request: %v", err)
	}
	if string(data) == "" || room.TelemetrySnapshot().KeyframeRequests != 1 {
		t.Fatalf("keyframe request not served or counted")
	}

	nack, err := room.HandleKeyframeRequest("alice", frame.Sequence+100)
	if err != nil {
		t.Fatalf("keyframe nack: %v", err)
	}
	if room.TelemetrySnapshot().KeyframeNacksExpired != 1 {
		t.Fatalf("missing frame not counted as expired: %s", nack)
	}
}
