package reconcile

import (
	"strconv"
	"testing"

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

// harness pairs an authoritative core with a predicting reconciler, both
// seeded identically the way a room and a connecting client are.
type harness struct {
	server *sim.Core
	rec    *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := sim.DefaultRoomConfig()
	cfg.Seed = "reconcile-harness"
	server := sim.NewCore(cfg, testLibrary(t), sim.Deps{}, true)
	mirror := sim.NewCore(cfg, testLibrary(t), sim.Deps{}, false)
	for _, core := range []*sim.Core{server, mirror} {
		core.AddPlayer("north", sim.TeamNorth)
		core.AddPlayer("south", sim.TeamSouth)
	}
	return &harness{server: server, rec: New("north", mirror)}
}

func (h *harness) placeCmd(t *testing.T, player string, unit string, col, row int) sim.Command {
	t.Helper()
	id, ok := h.server.Library().UnitByName(unit)
	if !ok {
		t.Fatalf("unknown unit %q", unit)
	}
	return sim.Command{
		PlayerID: player,
		Type:     sim.CommandSubmitPlacement,
		Placement: &sim.PlacementCommand{
			UnitType:  id,
			OriginCol: col,
			OriginRow: row,
		},
	}
}

func TestAcknowledgedInputDropsWithoutCorrection(t *testing.T) {
	h := newHarness(t)

	cmd := h.placeCmd(t, "north", "footman", 2, 10)
	result := h.rec.Predict(cmd)
	if !result.Err.OK() {
		t.Fatalf("prediction rejected: %s", result.Error)
	}
	echoed := cmd.Clone()
	echoed.Seq = result.Seq
	if server := h.server.ApplyCommand(echoed); server.Err != result.Err {
		t.Fatalf("server disagreed: %v vs %v", server.Err, result.Err)
	}
	if got := len(h.rec.Pending()); got != 1 {
		t.Fatalf("expected 1 pending input, got %d", got)
	}

	report := h.rec.Reconcile(h.server.Snapshot())
	if report.AckedSeq != result.Seq {
		t.Fatalf("ack not observed: %+v", report)
	}
	if report.DroppedCount != 1 || len(h.rec.Pending()) != 0 {
		t.Fatalf("acked input not dropped: %+v", report)
	}
	if len(report.Corrections) != 0 {
		t.Fatalf("identical state produced corrections: %+v", report.Corrections)
	}
	if report.NeedsResync {
		t.Fatalf("unexpected resync flag")
	}
}

func TestOwnUnitsCorrectOnlyPastEpsilon(t *testing.T) {
	h := newHarness(t)

	cmd := h.placeCmd(t, "north", "footman", 2, 10)
	result := h.rec.Predict(cmd)
	echoed := cmd.Clone()
	echoed.Seq = result.Seq
	h.server.ApplyCommand(echoed)

	snap := h.server.Snapshot()
	if len(snap.Units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(snap.Units))
	}

	// A sub-epsilon offset on one own unit must be tolerated.
	snap.Units[0].Pos.X += 0.3
	report := h.rec.Reconcile(snap)
	if len(report.Corrections) != 0 {
		t.Fatalf("sub-epsilon drift corrected: %+v", report.Corrections)
	}

	// Past the epsilon the authoritative position wins.
	snap = h.server.Snapshot()
	drifted := snap.Units[1]
	drifted.Pos.X += 1.5
	snap.Units[1] = drifted
	report = h.rec.Reconcile(snap)
	if len(report.Corrections) != 1 || report.Corrections[0].UnitID != drifted.ID {
		t.Fatalf("epsilon breach not corrected: %+v", report.Corrections)
	}
	pos, ok := h.rec.Mirror().UnitPosition(drifted.ID)
	if !ok || pos.X != drifted.Pos.X {
		t.Fatalf("correction did not land: %+v ok=%v", pos, ok)
	}
}

func TestOpponentUnitsAdoptVerbatim(t *testing.T) {
	h := newHarness(t)

	cmd := h.placeCmd(t, "south", "footman", 3, 13)
	// South is a remote player: the command arrives only via the server.
	serverResult := h.server.ApplyCommand(cmd)
	if !serverResult.Err.OK() {
		t.Fatalf("server rejected: %s", serverResult.Error)
	}
	// The mirror replays the broadcast remote command.
	if mirror := h.rec.Mirror().ApplyCommand(cmd); mirror.Err != serverResult.Err {
		t.Fatalf("mirror replay disagreed: %v", mirror.Err)
	}

	snap := h.server.Snapshot()
	opponent := snap.Units[0]
	opponent.Pos.X += 0.01
	opponent.Health -= 5
	snap.Units[0] = opponent

	report := h.rec.Reconcile(snap)
	if report.AdoptedUnits != len(snap.Units) {
		t.Fatalf("expected all opponent units adopted, got %d of %d",
			report.AdoptedUnits, len(snap.Units))
	}
	pos, _ := h.rec.Mirror().UnitPosition(opponent.ID)
	if pos.X != opponent.Pos.X {
		t.Fatalf("verbatim adoption skipped a sub-epsilon delta")
	}
}

func TestReconcileAdoptsAuthoritativeRound(t *testing.T) {
	h := newHarness(t)

	// Both players ready up on the server; the battle opens there. The
	// mirror replays the same commands but, being non-authoritative, holds
	// its placement phase until the snapshot carries the transition over.
	for seq, player := range []string{"north", "south"} {
		cmd := sim.Command{
			Seq:      uint64(seq + 1),
			PlayerID: player,
			Type:     sim.CommandReadyForBattle,
			Ready:    &sim.ReadyCommand{Ready: true},
		}
		if result := h.server.ApplyCommand(cmd.Clone()); !result.Err.OK() {
			t.Fatalf("server rejected ready: %s", result.Error)
		}
		if result := h.rec.Mirror().ApplyCommand(cmd); !result.Err.OK() {
			t.Fatalf("mirror rejected ready: %s", result.Error)
		}
	}
	if h.server.Phase() != sim.PhaseBattle {
		t.Fatalf("server did not open the battle")
	}
	if h.rec.Mirror().Phase() != sim.PhasePlacement {
		t.Fatalf("mirror opened the battle without the server")
	}

	h.rec.Reconcile(h.server.Snapshot())
	if h.rec.Mirror().Phase() != sim.PhaseBattle {
		t.Fatalf("reconcile did not adopt the round, mirror at %v", h.rec.Mirror().Phase())
	}
	if h.rec.Mirror().Round() != h.server.Round() {
		t.Fatalf("round numbers disagree: %d vs %d", h.rec.Mirror().Round(), h.server.Round())
	}
}

func TestUnknownAuthoritativeUnitFlagsResync(t *testing.T) {
	h := newHarness(t)

	// Server processes a remote command the mirror never saw.
	if result := h.server.ApplyCommand(h.placeCmd(t, "south", "footman", 3, 13)); !result.Err.OK() {
		t.Fatalf("server rejected: %s", result.Error)
	}

	report := h.rec.Reconcile(h.server.Snapshot())
	if !report.NeedsResync {
		t.Fatalf("structural divergence went unflagged: %+v", report)
	}
}

func TestServerRemovedUnitsAreDropped(t *testing.T) {
	h := newHarness(t)

	cmd := h.placeCmd(t, "north", "footman", 2, 10)
	result := h.rec.Predict(cmd)
	if !result.Err.OK() {
		t.Fatalf("prediction rejected: %s", result.Error)
	}
	// The server never accepted the placement; its snapshot has no units.
	report := h.rec.Reconcile(h.server.Snapshot())
	if report.RemovedUnits != 4 {
		t.Fatalf("expected 4 predicted units dropped, got %d", report.RemovedUnits)
	}
	if len(h.rec.Mirror().Snapshot().Units) != 0 {
		t.Fatalf("mirror still holds dropped units")
	}
}

func TestRollbackRejectedCompensatesPlacement(t *testing.T) {
	h := newHarness(t)

	cmd := h.placeCmd(t, "north", "footman", 2, 10)
	result := h.rec.Predict(cmd)
	if !result.Err.OK() {
		t.Fatalf("prediction rejected: %s", result.Error)
	}
	if len(h.rec.Mirror().Snapshot().Units) != 4 {
		t.Fatalf("prediction did not spawn units")
	}

	if !h.rec.RollbackRejected(result.Seq) {
		t.Fatalf("rollback did not find pending seq %d", result.Seq)
	}
	if len(h.rec.Mirror().Snapshot().Units) != 0 {
		t.Fatalf("compensating cancel did not remove predicted units")
	}
	if len(h.rec.Pending()) != 0 {
		t.Fatalf("rolled-back input still pending")
	}
}

func TestUndoStackIssuesCompensatingCancels(t *testing.T) {
	stack := NewUndoStack("north")
	if _, ok := stack.Pop(); ok {
		t.Fatalf("empty stack produced a command")
	}

	for i := 1; i <= UndoDepth+2; i++ {
		stack.Push("p" + strconv.Itoa(i))
	}
	if stack.Depth() != UndoDepth {
		t.Fatalf("stack exceeded depth cap: %d", stack.Depth())
	}

	stack = NewUndoStack("north")
	stack.Push("p1")
	stack.Push("p2")
	cmd, ok := stack.Pop()
	if !ok || cmd.Type != sim.CommandCancelBuilding || cmd.Cancel.PlacementID != "p2" {
		t.Fatalf("unexpected undo command: %+v", cmd)
	}
	if cmd.PlayerID != "north" {
		t.Fatalf("undo command missing player id")
	}

	stack.Forget("p1")
	if _, ok := stack.Pop(); ok {
		t.Fatalf("forgotten placement still poppable")
	}

	stack.Push("p3")
	stack.Reset()
	if stack.Depth() != 0 {
		t.Fatalf("reset left entries behind")
	}
}
