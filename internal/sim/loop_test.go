package sim

import (
	"testing"
	"time"
)

func newTestLoop(t *testing.T, cfg LoopConfig) *Loop {
	t.Helper()
	core := NewCore(DefaultRoomConfig(), testLibrary(t), Deps{}, true)
	core.AddPlayer("north", TeamNorth)
	core.AddPlayer("south", TeamSouth)
	loop := NewLoop(core, cfg, LoopHooks{})
	if loop == nil {
		t.Fatalf("NewLoop returned nil")
	}
	return loop
}

func TestLoopPerPlayerThrottle(t *testing.T) {
	var dropped []Command
	core := NewCore(DefaultRoomConfig(), testLibrary(t), Deps{}, true)
	core.AddPlayer("north", TeamNorth)
	loop := NewLoop(core, LoopConfig{
		CommandCapacity: 16,
		PerPlayerLimit:  2,
	}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			if reason != CommandRejectQueueLimit {
				t.Fatalf("unexpected drop reason %q", reason)
			}
			dropped = append(dropped, cmd)
		},
	})

	for seq := uint64(1); seq <= 2; seq++ {
		ok, reason := loop.Enqueue(Command{Seq: seq, PlayerID: "north", Type: CommandHeartbeat})
		if !ok {
			t.Fatalf("enqueue %d rejected: %s", seq, reason)
		}
	}
	ok, reason := loop.Enqueue(Command{Seq: 3, PlayerID: "north", Type: CommandHeartbeat})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue_limit rejection, got ok=%v reason=%q", ok, reason)
	}
	if len(dropped) != 1 || dropped[0].Seq != 3 {
		t.Fatalf("drop hook saw %+v", dropped)
	}

	// Draining resets the per-player window.
	result := loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 0.05})
	if len(result.Commands) != 2 {
		t.Fatalf("expected 2 staged commands, got %d", len(result.Commands))
	}
	if ok, _ := loop.Enqueue(Command{Seq: 4, PlayerID: "north", Type: CommandHeartbeat}); !ok {
		t.Fatalf("throttle window did not reset after drain")
	}
}

func TestLoopQueueFull(t *testing.T) {
	loop := newTestLoop(t, LoopConfig{CommandCapacity: 1})
	if ok, _ := loop.Enqueue(Command{Seq: 1, PlayerID: "north", Type: CommandHeartbeat}); !ok {
		t.Fatalf("first enqueue rejected")
	}
	ok, reason := loop.Enqueue(Command{Seq: 1, PlayerID: "south", Type: CommandHeartbeat})
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full rejection, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopAdvanceCarriesTickOutput(t *testing.T) {
	loop := newTestLoop(t, LoopConfig{CommandCapacity: 16})
	footman, ok := testLibrary(t).UnitByName("footman")
	if !ok {
		t.Fatalf("footman missing from catalog")
	}
	if ok, _ := loop.Enqueue(placeCmd("north", footman, 2, 10, 1)); !ok {
		t.Fatalf("enqueue failed")
	}

	result := loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 0.05})
	if len(result.Results) != 1 || !result.Results[0].Err.OK() {
		t.Fatalf("expected one accepted result, got %+v", result.Results)
	}
	if len(result.Patches) == 0 {
		t.Fatalf("placement produced no patches")
	}
	if len(result.Snapshot.Units) != 4 {
		t.Fatalf("snapshot missing spawned squad: %d units", len(result.Snapshot.Units))
	}
	if loop.Pending() != 0 {
		t.Fatalf("commands left staged after advance")
	}
}

func TestLoopKeyframeRecording(t *testing.T) {
	loop := newTestLoop(t, LoopConfig{CommandCapacity: 4})
	frame, record := loop.RecordKeyframe()
	if frame.Sequence != 1 || record.Size != 1 {
		t.Fatalf("unexpected keyframe record: frame=%+v record=%+v", frame, record)
	}
	stored, ok := loop.KeyframeBySequence(frame.Sequence)
	if !ok || stored.Tick != frame.Tick {
		t.Fatalf("keyframe lookup failed")
	}
	size, oldest, newest := loop.KeyframeWindow()
	if size != 1 || oldest != 1 || newest != 1 {
		t.Fatalf("unexpected window: %d %d %d", size, oldest, newest)
	}
}
