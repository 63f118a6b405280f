package sim

// Mirror-side adoption hooks. A predicting client runs a non-authoritative
// Core and folds authoritative snapshot data into it: opponent units are
// adopted verbatim every snapshot, own units only when prediction drifted
// past the reconciliation epsilon.

// AdoptUnitState overwrites a unit's drifting fields (position, rotation,
// health) with authoritative values. Reports false when the entity is not
// present locally, which signals a structural divergence the caller must
// resolve with a full resync.
func (c *Core) AdoptUnitState(unit UnitSnapshot) bool {
	entity, ok := ParseEntityID(unit.ID)
	if !ok || !c.store.Alive(entity) {
		return false
	}
	if transform := c.comps.Transforms.Ptr(entity); transform != nil {
		transform.Pos = unit.Pos
		transform.Rot = unit.Rot
	}
	if health := c.comps.Healths.Ptr(entity); health != nil {
		health.Current = unit.Health
		health.Max = unit.MaxHealth
	}
	return true
}

// DropUnit removes a unit the authoritative stream no longer contains.
func (c *Core) DropUnit(id string) bool {
	entity, ok := ParseEntityID(id)
	if !ok || !c.store.Alive(entity) {
		return false
	}
	return c.store.DestroyEntity(entity)
}

// UnitPosition reads a unit's current position by wire id.
func (c *Core) UnitPosition(id string) (Vec3, bool) {
	entity, ok := ParseEntityID(id)
	if !ok || !c.store.Alive(entity) {
		return Vec3{}, false
	}
	transform, ok := c.comps.Transforms.Get(entity)
	return transform.Pos, ok
}

// AdoptRound force-syncs the round lifecycle record from an authoritative
// snapshot. Mirror cores never force transitions themselves; this is how a
// phase change, a new round, or a mid-match keyframe reaches them.
func (c *Core) AdoptRound(snap RoundSnapshot) {
	c.round.Phase = snap.Phase
	c.round.Round = snap.Round
	c.round.PhaseStartedAt = snap.PhaseStartedAt
	c.round.BattleEndsAt = snap.BattleEndsAt
	c.round.Winner = snap.Winner
	c.round.HasWinner = snap.HasWinner
	for team, pool := range snap.Resources {
		copied := pool
		c.round.Resources[team] = &copied
	}
	for team, owned := range snap.Upgrades {
		target := c.round.Upgrades[team]
		if target == nil {
			continue
		}
		for id := range target {
			delete(target, id)
		}
		for _, id := range owned {
			target[id] = true
		}
	}
}
