package sim

import (
	"math"

	"redoubt/server/internal/content"
	"redoubt/server/internal/ecs"
)

// applyCommand routes one command through validation and, on success, the
// matching apply step. The pipeline is uniform: every command type validates
// against current state first and mutates nothing when validation fails.
func (c *Core) applyCommand(cmd Command) CommandResult {
	result := CommandResult{Seq: cmd.Seq, PlayerID: cmd.PlayerID, Type: cmd.Type}

	var (
		kind   ErrorKind
		effect *CommandEffect
	)
	switch cmd.Type {
	case CommandSubmitPlacement:
		kind, effect = c.applyPlacement(cmd)
	case CommandSetSquadTarget:
		kind = c.applySquadTarget(cmd.PlayerID, cmd.Target)
	case CommandSetSquadTargets:
		kind = c.applySquadTargets(cmd)
	case CommandReadyForBattle:
		kind = c.applyReady(cmd)
	case CommandPurchaseUpgrade:
		kind, effect = c.applyUpgrade(cmd)
	case CommandCancelBuilding:
		kind, effect = c.applyCancel(cmd)
	case CommandHeartbeat:
		kind = c.applyHeartbeat(cmd)
	default:
		kind = ErrApplyFailed
	}

	result.Err = kind
	result.Error = kind.Message()
	result.Effect = effect
	return result
}

// --- placement ---

func (c *Core) validatePlacement(cmd Command) (content.UnitDefinition, []Cell, ErrorKind) {
	var def content.UnitDefinition
	if cmd.Placement == nil {
		return def, nil, ErrApplyFailed
	}
	if c.round.Phase != PhasePlacement {
		return def, nil, ErrNotPlacementPhase
	}
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return def, nil, ErrPlayerNotFound
	}
	def, ok = c.library.Unit(cmd.Placement.UnitType)
	if !ok {
		return def, nil, ErrUnknownUnitType
	}
	origin := Cell{Col: cmd.Placement.OriginCol, Row: cmd.Placement.OriginRow}
	cells := c.grid.CellsFor(origin, def.CellsWide, def.CellsDeep, player.Team)
	for _, cell := range cells {
		if !c.grid.InBounds(cell) {
			return def, nil, ErrCellsOutOfBounds
		}
		if c.grid.SideOf(cell) != player.Team {
			return def, nil, ErrWrongSide
		}
	}
	if !c.grid.Free(cells) {
		return def, nil, ErrCellsOccupied
	}
	pool := c.round.resources(player.Team)
	if pool.Gold < def.GoldCost {
		return def, nil, ErrInsufficientGold
	}
	if pool.Supply < def.SupplyCost {
		return def, nil, ErrInsufficientSupply
	}
	return def, cells, ErrNone
}

// applyPlacement reserves cells, deducts resources, and spawns the squad as
// one atomic operation. A failure at any step unwinds the previous ones, so
// a rejected placement leaves no partial reservation or charge behind.
func (c *Core) applyPlacement(cmd Command) (ErrorKind, *CommandEffect) {
	def, cells, kind := c.validatePlacement(cmd)
	if !kind.OK() {
		return kind, nil
	}
	player := c.players[cmd.PlayerID]
	pool := c.round.resources(player.Team)
	placementID := c.mintPlacementID()

	// Step 1: reserve cells.
	if c.failApplyStep == 1 || !c.grid.Reserve(cells, placementID) {
		c.placementSeq--
		return ErrApplyFailed, nil
	}

	// Step 2: deduct resources.
	if c.failApplyStep == 2 {
		c.grid.Release(cells, placementID)
		c.placementSeq--
		return ErrApplyFailed, nil
	}
	pool.Gold -= def.GoldCost
	pool.Supply -= def.SupplyCost

	// Step 3: spawn the squad.
	placement := &Placement{
		ID:       placementID,
		PlayerID: player.ID,
		Team:     player.Team,
		UnitType: cmd.Placement.UnitType,
		Cells:    cells,
		State:    ConstructionComplete,
		Round:    c.round.Round,
	}
	if def.Building {
		placement.State = ConstructionInProgress
	}
	if c.failApplyStep == 3 {
		pool.Gold += def.GoldCost
		pool.Supply += def.SupplyCost
		c.grid.Release(cells, placementID)
		c.placementSeq--
		return ErrApplyFailed, nil
	}
	for slot := 0; slot < def.SquadSize; slot++ {
		placement.Squad = append(placement.Squad, c.spawnSquadMember(placement, def, slot))
	}

	c.placements[placementID] = placement
	c.placementOrder = append(c.placementOrder, placementID)
	c.appendResourcePatch(player.Team)

	effect := &CommandEffect{PlacementID: placementID}
	for _, entity := range placement.Squad {
		effect.SquadUnits = append(effect.SquadUnits, c.unitSnapshot(entity))
	}
	c.logPlacementAccepted(cmd.PlayerID, placementID, def.ID)
	return ErrNone, effect
}

// spawnPose computes a squad member's home position and facing. Members fill
// footprint cells round-robin; overflow members in the same cell step aside
// laterally so squads of any size form deterministically.
func (c *Core) spawnPose(placement *Placement, slot int) (Vec3, float64) {
	cell := placement.Cells[slot%len(placement.Cells)]
	pos := c.grid.CellCenter(cell)
	layer := slot / len(placement.Cells)
	if layer > 0 {
		pos.X += float64(layer) * 0.4
	}
	rot := 0.0
	if placement.Team == TeamSouth {
		rot = math.Pi
	}
	return pos, rot
}

func (c *Core) spawnSquadMember(placement *Placement, def content.UnitDefinition, slot int) ecs.EntityID {
	entity := c.store.CreateEntity()
	pos, rot := c.spawnPose(placement, slot)

	maxHealth := def.MaxHealth + c.teamHealthBonus(placement.Team)
	c.comps.Transforms.Add(entity, Transform{Pos: pos, Rot: rot, Scale: 1})
	c.comps.Healths.Add(entity, Health{Current: maxHealth, Max: maxHealth})
	c.comps.Teams.Add(entity, Team{Team: placement.Team})
	c.comps.Owners.Add(entity, Owner{PlayerID: placement.PlayerID})
	c.comps.SquadMembers.Add(entity, SquadMember{
		PlacementID: placement.ID,
		Slot:        slot,
		UnitType:    placement.UnitType,
	})
	if def.Damage > 0 || def.MoveSpeed > 0 {
		c.comps.Combats.Add(entity, Combat{
			Damage:         def.Damage,
			Range:          def.Range,
			AttackInterval: def.AttackInterval,
			MoveSpeed:      def.MoveSpeed,
		})
	}
	if def.MoveSpeed > 0 {
		c.comps.AIStates.Add(entity, AIState{Mode: AIModeAdvance})
	}
	if def.Building {
		completesAt := c.clock.Seconds() + def.ConstructionSeconds
		c.comps.Constructions.Add(entity, Construction{
			PlacementID: placement.ID,
			CompletesAt: completesAt,
		})
		placementID := placement.ID
		c.sched.Schedule(func() {
			c.completeConstruction(placementID, entity)
		}, def.ConstructionSeconds, entity)
	}
	return entity
}

func (c *Core) teamHealthBonus(team TeamID) float64 {
	bonus := 0.0
	for id := range c.round.Upgrades[team] {
		if def, ok := c.library.Upgrade(id); ok {
			bonus += def.MaxHealthBonus
		}
	}
	return bonus
}

func (c *Core) teamDamageBonus(team TeamID) float64 {
	bonus := 0.0
	for id := range c.round.Upgrades[team] {
		if def, ok := c.library.Upgrade(id); ok {
			bonus += def.DamageBonus
		}
	}
	return bonus
}

// --- squad orders ---

func (c *Core) applySquadTarget(playerID string, order *SquadTargetCommand) ErrorKind {
	if order == nil {
		return ErrApplyFailed
	}
	if c.round.Phase != PhaseBattle {
		return ErrNotBattlePhase
	}
	player, ok := c.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	placement, ok := c.placements[order.PlacementID]
	if !ok {
		return ErrPlacementNotFound
	}
	if placement.Team != player.Team {
		return ErrUnauthorized
	}

	mode := AIModeMoveTo
	if order.Aggressive {
		mode = AIModeEngage
	}
	spread := order.Spread
	if spread <= 0 {
		spread = 1.0
	}
	size := len(placement.Squad)
	for _, entity := range placement.Squad {
		if !c.store.Alive(entity) {
			continue
		}
		ai := c.comps.AIStates.Ptr(entity)
		if ai == nil {
			continue
		}
		member, _ := c.comps.SquadMembers.Get(entity)
		ai.Mode = mode
		ai.Goal = formationGoal(order.Target, member.Slot, size, spread)
		ai.HasGoal = true
	}
	return ErrNone
}

func (c *Core) applySquadTargets(cmd Command) ErrorKind {
	if len(cmd.Targets) == 0 {
		return ErrApplyFailed
	}
	// All-or-nothing is deliberately not attempted here: each order validates
	// independently and the first failure reports, matching single-order
	// semantics for mixed batches.
	for i := range cmd.Targets {
		if kind := c.applySquadTarget(cmd.PlayerID, &cmd.Targets[i]); !kind.OK() {
			return kind
		}
	}
	return ErrNone
}

// formationGoal spreads squad members on a ring around the ordered point.
// Slot-indexed trigonometry, no randomness: both cores compute identical
// goals.
func formationGoal(target Vec3, slot, size int, spread float64) Vec3 {
	if size <= 1 {
		return target
	}
	angle := 2 * math.Pi * float64(slot) / float64(size)
	return Vec3{
		X: target.X + math.Cos(angle)*spread,
		Y: target.Y,
		Z: target.Z + math.Sin(angle)*spread,
	}
}

// --- ready / upgrades / cancel / heartbeat ---

func (c *Core) applyReady(cmd Command) ErrorKind {
	if c.round.Phase != PhasePlacement {
		return ErrNotPlacementPhase
	}
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return ErrPlayerNotFound
	}
	ready := true
	if cmd.Ready != nil {
		ready = cmd.Ready.Ready
	}
	player.Ready = ready

	allReady := len(c.playerOrder) > 0
	for _, id := range c.playerOrder {
		if !c.players[id].Ready {
			allReady = false
			break
		}
	}
	c.events = append(c.events, Event{
		Kind:     EventReadyUpdate,
		PlayerID: player.ID,
		Ready:    ready,
		AllReady: allReady,
		Round:    c.round.Round,
	})
	// A mirror predicting its own ready flag must not open the battle early;
	// it waits for the authoritative battle_started broadcast.
	if allReady && c.authoritative {
		c.startBattle("all_ready")
	}
	return ErrNone
}

func (c *Core) applyUpgrade(cmd Command) (ErrorKind, *CommandEffect) {
	if cmd.Upgrade == nil {
		return ErrApplyFailed, nil
	}
	if c.round.Phase != PhasePlacement {
		return ErrNotPlacementPhase, nil
	}
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return ErrPlayerNotFound, nil
	}
	def, ok := c.library.Upgrade(cmd.Upgrade.Upgrade)
	if !ok {
		return ErrUnknownUpgrade, nil
	}
	if c.round.hasUpgrade(player.Team, cmd.Upgrade.Upgrade) {
		return ErrUpgradeOwned, nil
	}
	pool := c.round.resources(player.Team)
	if pool.Gold < def.GoldCost {
		return ErrInsufficientGold, nil
	}

	pool.Gold -= def.GoldCost
	c.round.Upgrades[player.Team][cmd.Upgrade.Upgrade] = true
	if def.SupplyBonus > 0 {
		pool.SupplyCap += def.SupplyBonus
		pool.Supply += def.SupplyBonus
	}
	c.appendResourcePatch(player.Team)
	return ErrNone, &CommandEffect{
		Upgrade: &UpgradeResult{Upgrade: cmd.Upgrade.Upgrade, Gold: pool.Gold},
	}
}

func (c *Core) applyCancel(cmd Command) (ErrorKind, *CommandEffect) {
	if cmd.Cancel == nil {
		return ErrApplyFailed, nil
	}
	if c.round.Phase != PhasePlacement {
		return ErrNotPlacementPhase, nil
	}
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return ErrPlayerNotFound, nil
	}
	placement, ok := c.placements[cmd.Cancel.PlacementID]
	if !ok {
		return ErrPlacementNotFound, nil
	}
	if placement.PlayerID != player.ID {
		return ErrUnauthorized, nil
	}
	def, ok := c.library.Unit(placement.UnitType)
	if !ok {
		return ErrApplyFailed, nil
	}

	pool := c.round.resources(player.Team)
	pool.Gold += def.GoldCost
	pool.Supply += def.SupplyCost
	if pool.Supply > pool.SupplyCap {
		pool.Supply = pool.SupplyCap
	}
	c.removePlacement(placement, "cancelled")
	c.appendResourcePatch(player.Team)
	c.events = append(c.events, Event{
		Kind:        EventPlacementCancelled,
		PlayerID:    player.ID,
		PlacementID: placement.ID,
		Round:       c.round.Round,
	})
	return ErrNone, &CommandEffect{PlacementID: placement.ID, RefundGold: def.GoldCost}
}

func (c *Core) applyHeartbeat(cmd Command) ErrorKind {
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if cmd.Heartbeat != nil {
		player.LastHeartbeat = cmd.Heartbeat.ReceivedAt
		if cmd.Heartbeat.RTT > 0 {
			player.RTT = cmd.Heartbeat.RTT
		}
	}
	player.Connected = true
	return ErrNone
}
