package sim

import (
	"testing"

	"redoubt/server/internal/content"
)

func testLibrary(t *testing.T) *content.Library {
	t.Helper()
	library, err := content.NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return library
}

func newTestCore(t *testing.T, cfg RoomConfig) *Core {
	t.Helper()
	core := NewCore(cfg, testLibrary(t), Deps{}, true)
	core.AddPlayer("north", TeamNorth)
	core.AddPlayer("south", TeamSouth)
	return core
}

func unitID(t *testing.T, core *Core, name string) content.UnitTypeID {
	t.Helper()
	id, ok := core.Library().UnitByName(name)
	if !ok {
		t.Fatalf("unknown unit %q", name)
	}
	return id
}

func upgradeID(t *testing.T, core *Core, name string) content.UpgradeID {
	t.Helper()
	id, ok := core.Library().UpgradeByName(name)
	if !ok {
		t.Fatalf("unknown upgrade %q", name)
	}
	return id
}

func placeCmd(player string, unit content.UnitTypeID, col, row int, seq uint64) Command {
	return Command{
		Seq:      seq,
		PlayerID: player,
		Type:     CommandSubmitPlacement,
		Placement: &PlacementCommand{
			UnitType:  unit,
			OriginCol: col,
			OriginRow: row,
		},
	}
}

func readyCmd(player string, seq uint64) Command {
	return Command{
		Seq:      seq,
		PlayerID: player,
		Type:     CommandReadyForBattle,
		Ready:    &ReadyCommand{Ready: true},
	}
}

func mustApply(t *testing.T, core *Core, cmd Command) CommandResult {
	t.Helper()
	result := core.ApplyCommand(cmd)
	if !result.Err.OK() {
		t.Fatalf("command %s rejected: %s", cmd.Type, result.Error)
	}
	return result
}

func TestSubmitPlacementSpawnsSquad(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")

	result := mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	if result.Effect == nil || result.Effect.PlacementID != "p1" {
		t.Fatalf("expected placement id p1, got %+v", result.Effect)
	}
	if len(result.Effect.SquadUnits) != 4 {
		t.Fatalf("expected 4 squad units, got %d", len(result.Effect.SquadUnits))
	}
	for _, unit := range result.Effect.SquadUnits {
		if unit.PlacementID != "p1" {
			t.Fatalf("squad unit not linked to placement: %+v", unit)
		}
		if unit.Health != unit.MaxHealth || unit.Health != 120 {
			t.Fatalf("unexpected spawn health: %+v", unit)
		}
	}

	pool := core.round.resources(TeamNorth)
	if pool.Gold != 300 || pool.Supply != 8 {
		t.Fatalf("resources not deducted: gold=%d supply=%d", pool.Gold, pool.Supply)
	}
	placement, ok := core.Placement("p1")
	if !ok || len(placement.Cells) != 4 {
		t.Fatalf("placement not registered: %+v", placement)
	}
	if !core.grid.Free([]Cell{{Col: 0, Row: 0}}) {
		t.Fatalf("unrelated cell reported occupied")
	}
	if core.grid.Free(placement.Cells) {
		t.Fatalf("placement cells not reserved")
	}
}

func TestSubmitPlacementRejectsOccupiedCells(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")

	mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	goldBefore := core.round.resources(TeamNorth).Gold

	result := core.ApplyCommand(placeCmd("north", footman, 2, 10, 2))
	if result.Err != ErrCellsOccupied {
		t.Fatalf("expected ErrCellsOccupied, got %v (%s)", result.Err, result.Error)
	}
	if core.round.resources(TeamNorth).Gold != goldBefore {
		t.Fatalf("rejected placement charged gold")
	}
	if core.PlacementCount() != 1 {
		t.Fatalf("rejected placement registered")
	}
}

func TestSubmitPlacementRejectsOutOfBounds(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	result := core.ApplyCommand(placeCmd("north", footman, 17, 10, 1))
	if result.Err != ErrCellsOutOfBounds {
		t.Fatalf("expected ErrCellsOutOfBounds, got %v", result.Err)
	}
}

func TestSubmitPlacementRejectsOpponentSide(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	result := core.ApplyCommand(placeCmd("north", footman, 2, 13, 1))
	if result.Err != ErrWrongSide {
		t.Fatalf("expected ErrWrongSide, got %v", result.Err)
	}
}

func TestSubmitPlacementRejectsUnknownUnit(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	result := core.ApplyCommand(placeCmd("north", content.UnitTypeID(99), 2, 10, 1))
	if result.Err != ErrUnknownUnitType {
		t.Fatalf("expected ErrUnknownUnitType, got %v", result.Err)
	}
}

func TestSubmitPlacementRejectsInsufficientGold(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.StartingGold = 50
	core := newTestCore(t, cfg)
	footman := unitID(t, core, "footman")
	result := core.ApplyCommand(placeCmd("north", footman, 2, 10, 1))
	if result.Err != ErrInsufficientGold {
		t.Fatalf("expected ErrInsufficientGold, got %v", result.Err)
	}
}

func TestSubmitPlacementRejectsInsufficientSupply(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.StartingSupply = 1
	core := newTestCore(t, cfg)
	footman := unitID(t, core, "footman")
	result := core.ApplyCommand(placeCmd("north", footman, 2, 10, 1))
	if result.Err != ErrInsufficientSupply {
		t.Fatalf("expected ErrInsufficientSupply, got %v", result.Err)
	}
}

func TestSubmitPlacementRejectedDuringBattle(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	mustApply(t, core, placeCmd("south", footman, 2, 13, 1))
	mustApply(t, core, readyCmd("north", 2))
	mustApply(t, core, readyCmd("south", 2))
	if core.Phase() != PhaseBattle {
		t.Fatalf("expected battle phase after both ready, got %v", core.Phase())
	}

	result := core.ApplyCommand(placeCmd("north", footman, 6, 10, 3))
	if result.Err != ErrNotPlacementPhase {
		t.Fatalf("expected ErrNotPlacementPhase, got %v", result.Err)
	}
	if result.Error != "Not in placement phase" {
		t.Fatalf("unexpected error message %q", result.Error)
	}
	if core.PlacementCount() != 2 {
		t.Fatalf("battle-phase placement mutated state")
	}
}

func TestSubmitPlacementRollsBackOnApplyFailure(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")

	for _, step := range []int{1, 2, 3} {
		core.failApplyStep = step
		result := core.ApplyCommand(placeCmd("north", footman, 2, 10, uint64(step)))
		if result.Err != ErrApplyFailed {
			t.Fatalf("step %d: expected ErrApplyFailed, got %v", step, result.Err)
		}
		pool := core.round.resources(TeamNorth)
		if pool.Gold != 400 || pool.Supply != 10 {
			t.Fatalf("step %d: rollback left resources at gold=%d supply=%d", step, pool.Gold, pool.Supply)
		}
		if core.PlacementCount() != 0 {
			t.Fatalf("step %d: rollback left a placement behind", step)
		}
		if core.store.EntityCount() != 0 {
			t.Fatalf("step %d: rollback left entities behind", step)
		}
	}

	core.failApplyStep = 0
	result := mustApply(t, core, placeCmd("north", footman, 2, 10, 4))
	if result.Effect.PlacementID != "p1" {
		t.Fatalf("failed applies consumed placement ids: got %s", result.Effect.PlacementID)
	}
	if core.grid.Free(core.placements["p1"].Cells) {
		t.Fatalf("cells not reserved after rollback recovery")
	}
}

func TestCancelBuildingRefunds(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	tower := unitID(t, core, "watchtower")

	placed := mustApply(t, core, placeCmd("north", tower, 4, 8, 1))
	placementID := placed.Effect.PlacementID

	result := mustApply(t, core, Command{
		Seq:      2,
		PlayerID: "north",
		Type:     CommandCancelBuilding,
		Cancel:   &CancelBuildingCommand{PlacementID: placementID},
	})
	if result.Effect == nil || result.Effect.RefundGold != 220 {
		t.Fatalf("expected 220 gold refund, got %+v", result.Effect)
	}
	pool := core.round.resources(TeamNorth)
	if pool.Gold != 400 || pool.Supply != 10 {
		t.Fatalf("cancel did not restore resources: gold=%d supply=%d", pool.Gold, pool.Supply)
	}
	if core.PlacementCount() != 0 || core.store.EntityCount() != 0 {
		t.Fatalf("cancel left placement or entities behind")
	}

	var cancelled bool
	for _, event := range core.DrainEvents() {
		if event.Kind == EventPlacementCancelled && event.PlacementID == placementID {
			cancelled = true
		}
	}
	if !cancelled {
		t.Fatalf("cancel did not emit a notification event")
	}
}

func TestCancelBuildingRejectsForeignPlacement(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	placed := mustApply(t, core, placeCmd("north", footman, 2, 10, 1))

	result := core.ApplyCommand(Command{
		Seq:      1,
		PlayerID: "south",
		Type:     CommandCancelBuilding,
		Cancel:   &CancelBuildingCommand{PlacementID: placed.Effect.PlacementID},
	})
	if result.Err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", result.Err)
	}
	if core.PlacementCount() != 1 {
		t.Fatalf("foreign cancel removed the placement")
	}
}

func TestCancelBuildingUnknownPlacement(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	result := core.ApplyCommand(Command{
		Seq:      1,
		PlayerID: "north",
		Type:     CommandCancelBuilding,
		Cancel:   &CancelBuildingCommand{PlacementID: "p404"},
	})
	if result.Err != ErrPlacementNotFound {
		t.Fatalf("expected ErrPlacementNotFound, got %v", result.Err)
	}
}

func TestPurchaseUpgrade(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	blades := upgradeID(t, core, "sharpened-blades")

	result := mustApply(t, core, Command{
		Seq:      1,
		PlayerID: "north",
		Type:     CommandPurchaseUpgrade,
		Upgrade:  &UpgradeCommand{Upgrade: blades},
	})
	if result.Effect == nil || result.Effect.Upgrade == nil || result.Effect.Upgrade.Gold != 220 {
		t.Fatalf("unexpected purchase effect: %+v", result.Effect)
	}
	if !core.round.hasUpgrade(TeamNorth, blades) {
		t.Fatalf("upgrade not recorded")
	}

	again := core.ApplyCommand(Command{
		Seq:      2,
		PlayerID: "north",
		Type:     CommandPurchaseUpgrade,
		Upgrade:  &UpgradeCommand{Upgrade: blades},
	})
	if again.Err != ErrUpgradeOwned {
		t.Fatalf("expected ErrUpgradeOwned, got %v", again.Err)
	}
}

func TestSupplyCacheRaisesCap(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	cache := upgradeID(t, core, "supply-cache")

	mustApply(t, core, Command{
		Seq:      1,
		PlayerID: "south",
		Type:     CommandPurchaseUpgrade,
		Upgrade:  &UpgradeCommand{Upgrade: cache},
	})
	pool := core.round.resources(TeamSouth)
	if pool.SupplyCap != 14 || pool.Supply != 14 {
		t.Fatalf("supply cache not applied: %+v", pool)
	}
}

func TestSquadTargetRequiresBattlePhase(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	placed := mustApply(t, core, placeCmd("north", footman, 2, 10, 1))

	result := core.ApplyCommand(Command{
		Seq:      2,
		PlayerID: "north",
		Type:     CommandSetSquadTarget,
		Target:   &SquadTargetCommand{PlacementID: placed.Effect.PlacementID, Target: Vec3{X: 10, Z: 30}},
	})
	if result.Err != ErrNotBattlePhase {
		t.Fatalf("expected ErrNotBattlePhase, got %v", result.Err)
	}
}

func TestSquadTargetSetsFormationGoals(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	placed := mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	mustApply(t, core, placeCmd("south", footman, 2, 13, 1))
	mustApply(t, core, readyCmd("north", 2))
	mustApply(t, core, readyCmd("south", 2))

	mustApply(t, core, Command{
		Seq:      3,
		PlayerID: "north",
		Type:     CommandSetSquadTarget,
		Target:   &SquadTargetCommand{PlacementID: placed.Effect.PlacementID, Target: Vec3{X: 18, Z: 20}},
	})

	placement, _ := core.Placement(placed.Effect.PlacementID)
	goals := make(map[Vec3]bool)
	for _, entity := range placement.Squad {
		ai, ok := core.comps.AIStates.Get(entity)
		if !ok || !ai.HasGoal {
			t.Fatalf("squad member missing goal after order")
		}
		goals[ai.Goal] = true
	}
	if len(goals) != len(placement.Squad) {
		t.Fatalf("formation goals collapsed: %d distinct for %d members", len(goals), len(placement.Squad))
	}
}

func TestReadyTogglesAndTriggersBattle(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())

	mustApply(t, core, readyCmd("north", 1))
	if core.Phase() != PhasePlacement {
		t.Fatalf("battle started before all players ready")
	}

	events := core.DrainEvents()
	if len(events) != 1 || events[0].Kind != EventReadyUpdate || events[0].AllReady {
		t.Fatalf("unexpected ready events: %+v", events)
	}

	mustApply(t, core, readyCmd("south", 1))
	if core.Phase() != PhaseBattle {
		t.Fatalf("battle did not start once all players were ready")
	}
	var sawStart bool
	for _, event := range core.DrainEvents() {
		if event.Kind == EventBattleStarted {
			sawStart = true
		}
	}
	if !sawStart {
		t.Fatalf("battle start event missing")
	}
}

func TestApplyTracksLastProcessedSeq(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")

	err := core.Apply([]Command{
		placeCmd("north", footman, 2, 10, 1),
		placeCmd("north", footman, 2, 10, 2), // rejected: occupied
		{Seq: 3, PlayerID: "north", Type: CommandHeartbeat, Heartbeat: &HeartbeatCommand{}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	player, _ := core.Player("north")
	if player.LastProcessedSeq != 3 {
		t.Fatalf("expected lastProcessedSeq 3, got %d", player.LastProcessedSeq)
	}
	results := core.DrainResults()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != ErrNone || results[1].Err != ErrCellsOccupied || results[2].Err != ErrNone {
		t.Fatalf("unexpected result errors: %+v", results)
	}
}
