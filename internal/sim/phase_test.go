package sim

import "testing"

func stepUntil(t *testing.T, core *Core, maxTicks int, done func() bool) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if done() {
			return
		}
		core.Step()
	}
	if !done() {
		t.Fatalf("condition not reached within %d ticks (phase=%v tick=%d)", maxTicks, core.Phase(), core.Tick())
	}
}

func TestPlacementTimeoutStartsBattle(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.PlacementSeconds = 0.5
	core := newTestCore(t, cfg)
	footman := unitID(t, core, "footman")
	mustApply(t, core, placeCmd("north", footman, 2, 10, 1))

	stepUntil(t, core, 60, func() bool { return core.Phase() != PhasePlacement })

	var sawStart, sawEnd bool
	for _, event := range core.DrainEvents() {
		switch event.Kind {
		case EventBattleStarted:
			sawStart = true
		case EventRoundEnded:
			sawEnd = true
			if !event.HasWinner || event.Winner != TeamNorth {
				t.Fatalf("expected north to win by forfeit, got %+v", event)
			}
		}
	}
	if !sawStart {
		t.Fatalf("timeout did not start the battle")
	}
	// South fielded nothing, so the battle resolves on its first tick.
	if !sawEnd {
		t.Fatalf("one-sided battle did not resolve")
	}
}

func TestMirrorCoreHoldsPhaseUntilAdoption(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.PlacementSeconds = 0.5
	mirror := NewCore(cfg, testLibrary(t), Deps{}, false)
	mirror.AddPlayer("north", TeamNorth)
	mirror.AddPlayer("south", TeamSouth)
	footman := unitID(t, mirror, "footman")

	mustApply(t, mirror, placeCmd("north", footman, 2, 10, 1))
	mustApply(t, mirror, placeCmd("south", footman, 4, 13, 1))
	mustApply(t, mirror, readyCmd("north", 2))
	mustApply(t, mirror, readyCmd("south", 2))
	if mirror.Phase() != PhasePlacement {
		t.Fatalf("mirror opened the battle on predicted ready flags")
	}

	// Well past the placement deadline the mirror still holds its phase.
	for i := 0; i < 60; i++ {
		mirror.Step()
	}
	if mirror.Phase() != PhasePlacement {
		t.Fatalf("mirror forced a transition on its own clock: %v", mirror.Phase())
	}
	for _, event := range mirror.DrainEvents() {
		if event.Kind == EventBattleStarted || event.Kind == EventRoundEnded {
			t.Fatalf("mirror emitted a lifecycle event: %+v", event)
		}
	}

	// The same script on an authoritative core opens the battle on all-ready,
	// and its round record carries the mirror across.
	auth := newTestCore(t, cfg)
	mustApply(t, auth, placeCmd("north", footman, 2, 10, 1))
	mustApply(t, auth, placeCmd("south", footman, 4, 13, 1))
	mustApply(t, auth, readyCmd("north", 2))
	mustApply(t, auth, readyCmd("south", 2))
	if auth.Phase() != PhaseBattle {
		t.Fatalf("authoritative core did not open the battle on all-ready")
	}
	mirror.AdoptRound(auth.Snapshot().Round)
	if mirror.Phase() != PhaseBattle {
		t.Fatalf("adopted round record did not move the mirror, got %v", mirror.Phase())
	}

	// Even a fight that resolves locally stays open until the authoritative
	// round_ended arrives.
	for i := 0; i < 600; i++ {
		mirror.Step()
	}
	if mirror.Phase() != PhaseBattle {
		t.Fatalf("mirror called the round on its own: %v", mirror.Phase())
	}
}

func TestBattleResolvesAndNextRoundOpens(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")

	mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	mustApply(t, core, placeCmd("north", footman, 6, 10, 2))
	mustApply(t, core, placeCmd("south", footman, 4, 13, 1))
	mustApply(t, core, readyCmd("north", 3))
	mustApply(t, core, readyCmd("south", 2))
	if core.Phase() != PhaseBattle {
		t.Fatalf("expected battle phase")
	}

	stepUntil(t, core, 5000, func() bool { return core.Phase() == PhaseRoundEnd })
	if !core.round.HasWinner || core.round.Winner != TeamNorth {
		t.Fatalf("expected north to win 2v1, got winner=%v hasWinner=%v", core.round.Winner, core.round.HasWinner)
	}

	stepUntil(t, core, 5000, func() bool { return core.Phase() == PhasePlacement })
	if core.round.Round != 2 {
		t.Fatalf("expected round 2, got %d", core.round.Round)
	}

	// Income granted to both teams.
	north := core.round.resources(TeamNorth)
	south := core.round.resources(TeamSouth)
	if north.Gold != 400-200+core.cfg.RoundIncomeGold {
		t.Fatalf("unexpected north gold %d", north.Gold)
	}
	if south.Gold != 400-100+core.cfg.RoundIncomeGold {
		t.Fatalf("unexpected south gold %d", south.Gold)
	}

	// The losing side's destroyed placement frees its supply again.
	if south.Supply != 10 {
		t.Fatalf("south supply not restored, got %d", south.Supply)
	}

	// South's placement is gone, north's survivors are healed at home.
	if _, ok := core.Placement("p3"); ok {
		t.Fatalf("destroyed placement still registered")
	}
	survivors := 0
	for _, placementID := range core.placementOrder {
		placement := core.placements[placementID]
		if placement.Team != TeamNorth {
			continue
		}
		for slot, entity := range placement.Squad {
			if !core.store.Alive(entity) {
				continue
			}
			survivors++
			health, _ := core.comps.Healths.Get(entity)
			if health.Current != health.Max {
				t.Fatalf("survivor not healed between rounds: %+v", health)
			}
			pos, _ := core.comps.Transforms.Get(entity)
			wantPos, _ := core.spawnPose(placement, slot)
			if distSq(pos.Pos, wantPos) > 1e-9 {
				t.Fatalf("survivor not repositioned: at %+v want %+v", pos.Pos, wantPos)
			}
		}
	}
	if survivors == 0 {
		t.Fatalf("winning side has no survivors")
	}

	// Ready flags reset for the new placement phase.
	for _, id := range []string{"north", "south"} {
		player, _ := core.Player(id)
		if player.Ready {
			t.Fatalf("player %s still ready after round reset", id)
		}
	}
}

func TestBattleCapResolvesByRemainingHealth(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.BattleCapSeconds = 1.0
	core := newTestCore(t, cfg)
	tower := unitID(t, core, "watchtower")

	// Towers on the back rows never reach each other; the cap decides.
	mustApply(t, core, placeCmd("north", tower, 2, 0, 1))
	mustApply(t, core, placeCmd("north", tower, 6, 0, 2))
	mustApply(t, core, placeCmd("south", tower, 4, 23, 1))
	mustApply(t, core, readyCmd("north", 3))
	mustApply(t, core, readyCmd("south", 2))

	stepUntil(t, core, 200, func() bool { return core.Phase() == PhaseRoundEnd })
	if !core.round.HasWinner || core.round.Winner != TeamNorth {
		t.Fatalf("expected north to win on pooled health, got %+v", core.round)
	}
}

func TestConstructionCompletesOnSchedule(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	tower := unitID(t, core, "watchtower")
	placed := mustApply(t, core, placeCmd("north", tower, 4, 8, 1))
	placementID := placed.Effect.PlacementID

	placement, _ := core.Placement(placementID)
	if placement.State != ConstructionInProgress {
		t.Fatalf("new building not under construction")
	}
	entity := placement.Squad[0]
	if !core.comps.Constructions.Has(entity) {
		t.Fatalf("building entity missing construction component")
	}

	// Watchtower takes 6 simulation seconds.
	stepUntil(t, core, 119, func() bool { return core.SimTime() >= 5.95 })
	if placement.State != ConstructionInProgress {
		t.Fatalf("construction completed early at %v", core.SimTime())
	}
	core.Step()
	core.Step()
	if placement.State != ConstructionComplete {
		t.Fatalf("construction not complete at %v", core.SimTime())
	}
	if core.comps.Constructions.Has(entity) {
		t.Fatalf("construction component not removed on completion")
	}
}

func TestCancelledConstructionNeverCompletes(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	tower := unitID(t, core, "watchtower")
	placed := mustApply(t, core, placeCmd("north", tower, 4, 8, 1))

	mustApply(t, core, Command{
		Seq:      2,
		PlayerID: "north",
		Type:     CommandCancelBuilding,
		Cancel:   &CancelBuildingCommand{PlacementID: placed.Effect.PlacementID},
	})

	// The scheduled completion's owner entity is dead; advancing past the
	// trigger must not resurrect the placement.
	for i := 0; i < 140; i++ {
		core.Step()
	}
	if core.PlacementCount() != 0 {
		t.Fatalf("cancelled construction came back")
	}
}

func TestRemovePlayerDropsTheirPlacements(t *testing.T) {
	core := newTestCore(t, DefaultRoomConfig())
	footman := unitID(t, core, "footman")
	placed := mustApply(t, core, placeCmd("north", footman, 2, 10, 1))
	cells := append([]Cell(nil), core.placements[placed.Effect.PlacementID].Cells...)

	if !core.RemovePlayer("north") {
		t.Fatalf("RemovePlayer failed")
	}
	if core.PlacementCount() != 0 || core.store.EntityCount() != 0 {
		t.Fatalf("player removal left placements or entities")
	}
	if !core.grid.Free(cells) {
		t.Fatalf("player removal left cells reserved")
	}
	removed := core.RemovedPlayers()
	if len(removed) != 1 || removed[0] != "north" {
		t.Fatalf("unexpected removed players: %v", removed)
	}
	if core.RemovedPlayers() != nil {
		t.Fatalf("RemovedPlayers did not drain")
	}
}
