package sim

import (
	"math/rand"
	"time"

	"redoubt/server/internal/content"
	"redoubt/server/internal/desync"
	"redoubt/server/internal/ecs"
)

const (
	// roundEndSeconds is how long the round-end phase lingers before the next
	// placement phase opens.
	roundEndSeconds = 5.0

	desyncWindowFrames = 128
)

// PlayerState tracks one player's per-room bookkeeping. LastProcessedSeq and
// Ready feed deterministic logic; the connectivity fields are transport
// metadata and are excluded from desync hashing.
type PlayerState struct {
	ID               string
	Team             TeamID
	Ready            bool
	LastProcessedSeq uint64
	Connected        bool
	LastHeartbeat    time.Time
	RTT              time.Duration
}

// Core owns the full simulation state for one room: the component store, the
// deterministic scheduler, the round state machine, and the command pipeline.
// It is single-threaded; the Loop serialises all access.
//
// The same Core type backs both the authoritative server room and a
// predicting client mirror. Given the same config, seed, and command stream,
// two cores stay bit-identical; the desync detector exists to prove it.
type Core struct {
	cfg           RoomConfig
	authoritative bool
	library       *content.Library

	store *ecs.Store
	comps Components
	sched *Scheduler
	clock Clock
	grid  *Grid
	round RoundState

	players     map[string]*PlayerState
	playerOrder []string

	placements     map[string]*Placement
	placementOrder []string
	placementSeq   uint64

	journal  *Journal
	detector *desync.Detector
	deps     Deps

	// combatRNG drives damage variance. Seeded from the room seed, and only
	// drawn from inside deterministic callbacks, so a mirror core consumes an
	// identical stream.
	combatRNG *rand.Rand

	events         []Event
	results        []CommandResult
	removedPlayers []string

	// failApplyStep forces the placement apply path to fail at the given
	// step (1-based) so rollback behaviour is testable. Zero in production.
	failApplyStep int
}

// NewCore constructs a simulation core. Only authoritative cores force phase
// transitions (placement timeout, all-ready, victory); a mirror core holds
// its phase until AdoptRound folds in the authoritative record.
func NewCore(cfg RoomConfig, library *content.Library, deps Deps, authoritative bool) *Core {
	cfg = cfg.normalized()
	deps = deps.normalized()
	store := ecs.NewStore()
	core := &Core{
		cfg:           cfg,
		authoritative: authoritative,
		library:       library,
		store:         store,
		comps:         NewComponents(store),
		clock:         NewClock(DefaultTickRate),
		grid:          NewGrid(cfg.GridCols, cfg.GridRows, cfg.CellSize),
		round:         newRoundState(cfg),
		players:       make(map[string]*PlayerState, 4),
		placements:    make(map[string]*Placement, 32),
		journal:       NewJournal(8, 2*time.Minute),
		detector:      desync.NewDetector(cfg.DesyncInterval, desyncWindowFrames),
		deps:          deps,
		combatRNG:     NewDeterministicRNG(cfg.Seed, "combat"),
	}
	core.sched = NewScheduler(store.Alive)
	return core
}

// Deps returns the injected infrastructure dependencies.
func (c *Core) Deps() Deps { return c.deps }

// Config returns the normalized room configuration.
func (c *Core) Config() RoomConfig { return c.cfg }

// Library returns the content library backing the pipeline.
func (c *Core) Library() *content.Library { return c.library }

// Tick returns the current tick number.
func (c *Core) Tick() uint64 { return c.clock.Tick() }

// SimTime returns the current simulation time in seconds.
func (c *Core) SimTime() float64 { return c.clock.Seconds() }

// Phase returns the current lifecycle phase.
func (c *Core) Phase() Phase { return c.round.Phase }

// Round returns the current round number.
func (c *Core) Round() int { return c.round.Round }

// Authoritative reports whether this core may force phase transitions.
func (c *Core) Authoritative() bool { return c.authoritative }

// AddPlayer registers a player on a team. Joining mid-match is allowed; the
// player starts unready with their team's shared pools.
func (c *Core) AddPlayer(id string, team TeamID) *PlayerState {
	if existing, ok := c.players[id]; ok {
		existing.Connected = true
		return existing
	}
	player := &PlayerState{ID: id, Team: team, Connected: true}
	c.players[id] = player
	c.playerOrder = append(c.playerOrder, id)
	return player
}

// Player returns the state for a player id.
func (c *Core) Player(id string) (*PlayerState, bool) {
	player, ok := c.players[id]
	return player, ok
}

// PlayerCount reports the number of registered players.
func (c *Core) PlayerCount() int { return len(c.players) }

// RemovePlayer drops a player and every placement they own. Squad entities
// are destroyed and grid cells released; team pools are untouched since they
// are shared.
func (c *Core) RemovePlayer(id string) bool {
	if _, ok := c.players[id]; !ok {
		return false
	}
	for _, placementID := range append([]string(nil), c.placementOrder...) {
		placement, ok := c.placements[placementID]
		if !ok || placement.PlayerID != id {
			continue
		}
		c.removePlacement(placement, "owner_left")
	}
	delete(c.players, id)
	for i, pid := range c.playerOrder {
		if pid == id {
			c.playerOrder = append(c.playerOrder[:i], c.playerOrder[i+1:]...)
			break
		}
	}
	c.removedPlayers = append(c.removedPlayers, id)
	return true
}

// RemovedPlayers reports and clears the ids dropped since the last call.
func (c *Core) RemovedPlayers() []string {
	if len(c.removedPlayers) == 0 {
		return nil
	}
	removed := c.removedPlayers
	c.removedPlayers = nil
	return removed
}

// Placement returns a placement by id.
func (c *Core) Placement(id string) (*Placement, bool) {
	placement, ok := c.placements[id]
	return placement, ok
}

// PlacementCount reports the number of live placements.
func (c *Core) PlacementCount() int { return len(c.placements) }

// Apply stages the tick's commands through the validation pipeline in the
// order received. Every command yields a CommandResult; failures never mutate
// state.
func (c *Core) Apply(commands []Command) error {
	for i := range commands {
		result := c.applyCommand(commands[i])
		c.results = append(c.results, result)
		c.recordProcessedSeq(commands[i])
		if !result.Err.OK() {
			c.logCommandRejected(commands[i], result.Err)
		}
	}
	return nil
}

// ApplyCommand runs one command through the pipeline immediately. Mirror
// cores use it to apply predicted local input outside the staged tick flow.
func (c *Core) ApplyCommand(cmd Command) CommandResult {
	result := c.applyCommand(cmd)
	c.recordProcessedSeq(cmd)
	return result
}

func (c *Core) recordProcessedSeq(cmd Command) {
	player, ok := c.players[cmd.PlayerID]
	if !ok {
		return
	}
	if cmd.Seq > player.LastProcessedSeq {
		player.LastProcessedSeq = cmd.Seq
	}
}

// Step advances the simulation one fixed tick: clock, phase timeouts,
// scheduled actions, battle systems, then desync sampling.
func (c *Core) Step() {
	c.clock.Advance()
	now := c.clock.Seconds()

	if c.authoritative && c.round.Phase == PhasePlacement && now >= c.round.PhaseStartedAt+c.cfg.PlacementSeconds {
		c.startBattle("timeout")
	}

	c.sched.Advance(now)

	if c.round.Phase == PhaseBattle {
		c.stepBattle(now, c.clock.DT())
	}

	c.sampleDesync(now)
}

// DrainEvents returns lifecycle notifications recorded since the last drain.
func (c *Core) DrainEvents() []Event {
	if len(c.events) == 0 {
		return nil
	}
	events := c.events
	c.events = nil
	return events
}

// DrainResults returns command outcomes recorded since the last drain.
func (c *Core) DrainResults() []CommandResult {
	if len(c.results) == 0 {
		return nil
	}
	results := c.results
	c.results = nil
	return results
}

// DrainPatches returns the tick's diff entries.
func (c *Core) DrainPatches() []Patch { return c.journal.DrainPatches() }

// SnapshotPatches copies the pending diff entries without clearing them.
func (c *Core) SnapshotPatches() []Patch { return c.journal.SnapshotPatches() }

// RestorePatches re-stages previously drained patches.
func (c *Core) RestorePatches(patches []Patch) { c.journal.RestorePatches(patches) }

// RecordKeyframe snapshots the full state into the journal ring.
func (c *Core) RecordKeyframe() (Keyframe, KeyframeRecordResult) {
	frame := Keyframe{
		Tick:        c.clock.Tick(),
		Snapshot:    c.Snapshot(),
		Config:      c.cfg,
		RecordedAt:  c.deps.Clock.Now(),
		CatalogHash: c.library.Hash(),
	}
	return c.journal.RecordKeyframe(frame)
}

// KeyframeBySequence returns a stored keyframe.
func (c *Core) KeyframeBySequence(sequence uint64) (Keyframe, bool) {
	return c.journal.KeyframeBySequence(sequence)
}

// LatestKeyframe returns the newest stored keyframe.
func (c *Core) LatestKeyframe() (Keyframe, bool) { return c.journal.Latest() }

// KeyframeWindow reports journal occupancy and sequence bounds.
func (c *Core) KeyframeWindow() (int, uint64, uint64) { return c.journal.KeyframeWindow() }

// Snapshot builds the externally visible state. All slices follow stable
// deterministic orders.
func (c *Core) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:    c.clock.Tick(),
		SimTime: c.clock.Seconds(),
		Round:   roundSnapshot(&c.round),
	}
	for _, id := range c.playerOrder {
		player := c.players[id]
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:               player.ID,
			Team:             player.Team,
			Ready:            player.Ready,
			LastProcessedSeq: player.LastProcessedSeq,
			Connected:        player.Connected,
			RTTMillis:        player.RTT.Milliseconds(),
		})
	}
	for _, id := range c.store.EntitiesWith(CompTransform, CompHealth, CompTeam, CompSquadMember) {
		snap.Units = append(snap.Units, c.unitSnapshot(id))
	}
	for _, placementID := range c.placementOrder {
		placement := c.placements[placementID]
		units := make([]string, 0, len(placement.Squad))
		for _, entity := range placement.Squad {
			if c.store.Alive(entity) {
				units = append(units, formatEntityID(entity))
			}
		}
		snap.Placements = append(snap.Placements, PlacementSnapshot{
			ID:       placement.ID,
			PlayerID: placement.PlayerID,
			Team:     placement.Team,
			UnitType: placement.UnitType,
			Cells:    append([]Cell(nil), placement.Cells...),
			State:    placement.State,
			Round:    placement.Round,
			Units:    units,
		})
	}
	return snap
}

func (c *Core) unitSnapshot(id ecs.EntityID) UnitSnapshot {
	transform, _ := c.comps.Transforms.Get(id)
	health, _ := c.comps.Healths.Get(id)
	team, _ := c.comps.Teams.Get(id)
	member, _ := c.comps.SquadMembers.Get(id)
	def, _ := c.library.Unit(member.UnitType)
	_, constructing := c.comps.Constructions.Get(id)
	return UnitSnapshot{
		ID:                formatEntityID(id),
		PlacementID:       member.PlacementID,
		UnitType:          member.UnitType,
		Team:              team.Team,
		Pos:               transform.Pos,
		Rot:               transform.Rot,
		Health:            health.Current,
		MaxHealth:         health.Max,
		Building:          def.Building,
		UnderConstruction: constructing,
	}
}

// --- phase transitions ---

func (c *Core) startBattle(trigger string) {
	if c.round.Phase != PhasePlacement {
		return
	}
	now := c.clock.Seconds()
	c.round.Phase = PhaseBattle
	c.round.PhaseStartedAt = now
	c.round.BattleEndsAt = now + c.cfg.BattleCapSeconds
	c.round.Winner = -1
	c.round.HasWinner = false

	// Cooldowns and targets never leak between rounds.
	for _, id := range c.store.EntitiesWith(CompCombat) {
		if combat := c.comps.Combats.Ptr(id); combat != nil {
			combat.ReadyAt = 0
			combat.Target = ecs.Zero
		}
	}
	for _, id := range c.store.EntitiesWith(CompAIState) {
		if ai := c.comps.AIStates.Ptr(id); ai != nil {
			ai.Mode = AIModeAdvance
			ai.Goal = Vec3{}
			ai.HasGoal = false
		}
	}

	c.events = append(c.events, Event{Kind: EventBattleStarted, Round: c.round.Round})
	c.logBattleStarted(trigger)
}

func (c *Core) endBattle(winner TeamID, hasWinner bool) {
	if c.round.Phase != PhaseBattle {
		return
	}
	now := c.clock.Seconds()
	c.round.Phase = PhaseRoundEnd
	c.round.PhaseStartedAt = now
	c.round.Winner = winner
	c.round.HasWinner = hasWinner

	c.events = append(c.events, Event{
		Kind:      EventRoundEnded,
		Round:     c.round.Round,
		Winner:    winner,
		HasWinner: hasWinner,
	})
	c.logRoundEnded(winner, hasWinner)

	c.sched.Schedule(c.beginPlacement, roundEndSeconds, ecs.Zero)
}

// beginPlacement cleans up destroyed placements, heals and repositions the
// survivors on their home cells, grants income, and opens the next round.
func (c *Core) beginPlacement() {
	if c.round.Phase != PhaseRoundEnd {
		return
	}
	now := c.clock.Seconds()

	for _, placementID := range append([]string(nil), c.placementOrder...) {
		placement, ok := c.placements[placementID]
		if !ok {
			continue
		}
		if placement.aliveMembers(c.store) == 0 {
			c.refundSupply(placement)
			c.removePlacement(placement, "destroyed")
		}
	}

	for _, placementID := range c.placementOrder {
		placement := c.placements[placementID]
		for slot, entity := range placement.Squad {
			if !c.store.Alive(entity) {
				continue
			}
			pos, rot := c.spawnPose(placement, slot)
			if transform := c.comps.Transforms.Ptr(entity); transform != nil {
				transform.Pos = pos
				transform.Rot = rot
				c.journal.AppendPatch(Patch{
					Kind:    PatchUnitPos,
					Entity:  formatEntityID(entity),
					Payload: UnitPosPayload{Pos: pos, Rot: rot},
				})
			}
			if health := c.comps.Healths.Ptr(entity); health != nil && health.Current < health.Max {
				health.Current = health.Max
				c.journal.AppendPatch(Patch{
					Kind:    PatchUnitHealth,
					Entity:  formatEntityID(entity),
					Payload: UnitHealthPayload{Current: health.Current, Max: health.Max},
				})
			}
		}
	}

	for _, team := range []TeamID{TeamNorth, TeamSouth} {
		pool := c.round.resources(team)
		pool.Gold += c.cfg.RoundIncomeGold
		c.appendResourcePatch(team)
	}

	for _, id := range c.playerOrder {
		c.players[id].Ready = false
	}

	c.round.Round++
	c.round.Phase = PhasePlacement
	c.round.PhaseStartedAt = now
	c.round.BattleEndsAt = 0
	c.logPlacementStarted()
}

// removePlacement destroys the placement's surviving entities, releases its
// cells, and drops it from the registry.
func (c *Core) removePlacement(placement *Placement, reason string) {
	for _, entity := range placement.Squad {
		if c.store.Alive(entity) {
			c.store.DestroyEntity(entity)
			c.journal.AppendPatch(Patch{Kind: PatchUnitRemoved, Entity: formatEntityID(entity)})
		}
	}
	c.grid.Release(placement.Cells, placement.ID)
	delete(c.placements, placement.ID)
	for i, id := range c.placementOrder {
		if id == placement.ID {
			c.placementOrder = append(c.placementOrder[:i], c.placementOrder[i+1:]...)
			break
		}
	}
	c.journal.AppendPatch(Patch{
		Kind:    PatchPlacementRemoved,
		Entity:  placement.ID,
		Payload: PlacementRemovedPayload{Reason: reason},
	})
}

func (c *Core) refundSupply(placement *Placement) {
	def, ok := c.library.Unit(placement.UnitType)
	if !ok {
		return
	}
	pool := c.round.resources(placement.Team)
	pool.Supply += def.SupplyCost
	if pool.Supply > pool.SupplyCap {
		pool.Supply = pool.SupplyCap
	}
	c.appendResourcePatch(placement.Team)
}

func (c *Core) appendResourcePatch(team TeamID) {
	pool := c.round.resources(team)
	c.journal.AppendPatch(Patch{
		Kind: PatchTeamResources,
		Payload: TeamResourcesPayload{
			Team:      team,
			Gold:      pool.Gold,
			Supply:    pool.Supply,
			SupplyCap: pool.SupplyCap,
		},
	})
}

// --- desync sampling ---

func (c *Core) sampleDesync(now float64) {
	if !c.detector.Due(now) {
		return
	}
	c.detector.Sample(c.clock.Tick(), now, c.entitySamples())
}

// entitySamples builds the structural view hashed by the desync detector.
// Transport metadata (heartbeats, RTT) is deliberately absent.
func (c *Core) entitySamples() []desync.EntitySample {
	ids := c.store.EntitiesWith(CompTransform, CompHealth, CompTeam, CompSquadMember)
	samples := make([]desync.EntitySample, 0, len(ids))
	for _, id := range ids {
		transform, _ := c.comps.Transforms.Get(id)
		health, _ := c.comps.Healths.Get(id)
		team, _ := c.comps.Teams.Get(id)
		member, _ := c.comps.SquadMembers.Get(id)
		sample := desync.EntitySample{
			ID:     formatEntityID(id),
			Team:   int(team.Team),
			PosX:   transform.Pos.X,
			PosY:   transform.Pos.Y,
			PosZ:   transform.Pos.Z,
			Health: health.Current,
		}
		if def, ok := c.library.Unit(member.UnitType); ok {
			sample.Kind = def.ID
		}
		if combat, ok := c.comps.Combats.Get(id); ok && !combat.Target.IsZero() && c.store.Alive(combat.Target) {
			sample.Target = formatEntityID(combat.Target)
		}
		if ai, ok := c.comps.AIStates.Get(id); ok {
			sample.HasGoal = ai.HasGoal
		}
		samples = append(samples, sample)
	}
	return samples
}

// DesyncFrames returns the retained hash window, oldest first.
func (c *Core) DesyncFrames() []desync.Frame { return c.detector.Frames() }

// LatestDesyncFrame returns the most recent hash sample.
func (c *Core) LatestDesyncFrame() (desync.Frame, bool) { return c.detector.Latest() }

// CompareDesyncFrames checks a peer's hash stream against the local window.
func (c *Core) CompareDesyncFrames(remote []desync.Frame) (desync.Divergence, bool) {
	return c.detector.Compare(remote)
}
