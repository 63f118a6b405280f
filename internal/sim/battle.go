package sim

import (
	"math"

	"redoubt/server/internal/ecs"
)

const (
	// attackImpactDelay is the lag between an attack starting and its damage
	// landing, driven through the scheduler so a dead attacker's blow never
	// lands.
	attackImpactDelay = 0.25

	// goalReachedEpsilon stops squads jittering around an ordered point.
	goalReachedEpsilon = 0.15

	// damageVarianceSpan scales the deterministic damage roll: impacts land
	// between 90% and 110% of base damage.
	damageVarianceSpan = 0.2
)

// stepBattle runs the per-tick battle systems in a fixed order: targeting,
// movement, attacks, deaths, then the victory check. System order is part of
// the determinism contract.
func (c *Core) stepBattle(now, dt float64) {
	c.targetingSystem()
	c.movementSystem(dt)
	c.attackSystem(now)
	c.deathSystem()
	c.victorySystem(now)
}

// completeConstruction flips a building placement active once its scheduled
// completion fires. The entity owner tie on the scheduled action means a
// demolished building never completes.
func (c *Core) completeConstruction(placementID string, entity ecs.EntityID) {
	c.comps.Constructions.Remove(entity)
	placement, ok := c.placements[placementID]
	if !ok {
		return
	}
	placement.State = ConstructionComplete
	c.journal.AppendPatch(Patch{
		Kind:    PatchPlacementState,
		Entity:  placementID,
		Payload: PlacementStatePayload{State: ConstructionComplete},
	})
}

// targetingSystem keeps every fighter pointed at the nearest live enemy.
// Nearest by squared distance, ties broken by creation order: the first
// strictly closer candidate wins, so iteration order decides ties the same
// way on every core.
func (c *Core) targetingSystem() {
	fighters := c.store.EntitiesWith(CompTransform, CompCombat, CompTeam)
	targets := c.store.EntitiesWith(CompTransform, CompHealth, CompTeam)

	for _, fighter := range fighters {
		if c.comps.Constructions.Has(fighter) {
			continue
		}
		combat := c.comps.Combats.Ptr(fighter)
		if combat == nil || combat.Damage <= 0 {
			continue
		}
		if !combat.Target.IsZero() && c.store.Alive(combat.Target) {
			continue
		}
		combat.Target = c.acquireTarget(fighter, targets)
	}
}

func (c *Core) acquireTarget(fighter ecs.EntityID, candidates []ecs.EntityID) ecs.EntityID {
	team, _ := c.comps.Teams.Get(fighter)
	origin, _ := c.comps.Transforms.Get(fighter)

	best := ecs.Zero
	bestDist := math.MaxFloat64
	for _, candidate := range candidates {
		if candidate == fighter {
			continue
		}
		candidateTeam, _ := c.comps.Teams.Get(candidate)
		if candidateTeam.Team == team.Team {
			continue
		}
		health, ok := c.comps.Healths.Get(candidate)
		if !ok || health.Current <= 0 {
			continue
		}
		pos, _ := c.comps.Transforms.Get(candidate)
		dist := distSq(origin.Pos, pos.Pos)
		if dist < bestDist {
			bestDist = dist
			best = candidate
		}
	}
	return best
}

// movementSystem walks every mobile fighter toward its goal or its target.
// Ordered goals take precedence; otherwise units advance on their combat
// target until it is in range.
func (c *Core) movementSystem(dt float64) {
	for _, entity := range c.store.EntitiesWith(CompTransform, CompCombat, CompAIState) {
		combat := c.comps.Combats.Ptr(entity)
		if combat == nil || combat.MoveSpeed <= 0 {
			continue
		}
		transform := c.comps.Transforms.Ptr(entity)
		ai := c.comps.AIStates.Ptr(entity)
		if transform == nil || ai == nil {
			continue
		}

		dest, moving := c.moveDestination(entity, combat, ai, transform.Pos)
		if !moving {
			continue
		}

		dx := dest.X - transform.Pos.X
		dz := dest.Z - transform.Pos.Z
		dist := math.Sqrt(dx*dx + dz*dz)
		if dist < goalReachedEpsilon {
			if ai.HasGoal && ai.Mode == AIModeMoveTo {
				ai.HasGoal = false
				ai.Mode = AIModeAdvance
			}
			continue
		}

		step := combat.MoveSpeed * c.grid.cellSize * dt
		if step > dist {
			step = dist
		}
		transform.Pos.X += dx / dist * step
		transform.Pos.Z += dz / dist * step
		transform.Rot = math.Atan2(dx, dz)
		c.journal.AppendPatch(Patch{
			Kind:    PatchUnitPos,
			Entity:  formatEntityID(entity),
			Payload: UnitPosPayload{Pos: transform.Pos, Rot: transform.Rot},
		})
	}
}

// moveDestination resolves where a unit wants to be this tick.
func (c *Core) moveDestination(entity ecs.EntityID, combat *Combat, ai *AIState, from Vec3) (Vec3, bool) {
	if ai.HasGoal {
		if ai.Mode == AIModeEngage && !combat.Target.IsZero() && c.store.Alive(combat.Target) {
			targetPos, ok := c.comps.Transforms.Get(combat.Target)
			if ok && distSq(from, targetPos.Pos) <= c.attackRangeSq(combat) {
				return Vec3{}, false
			}
		}
		return ai.Goal, true
	}
	if combat.Target.IsZero() || !c.store.Alive(combat.Target) {
		return Vec3{}, false
	}
	targetPos, ok := c.comps.Transforms.Get(combat.Target)
	if !ok {
		return Vec3{}, false
	}
	if distSq(from, targetPos.Pos) <= c.attackRangeSq(combat) {
		return Vec3{}, false
	}
	return targetPos.Pos, true
}

func (c *Core) attackRangeSq(combat *Combat) float64 {
	r := combat.Range * c.grid.cellSize
	return r * r
}

// attackSystem starts an attack for every fighter whose cooldown elapsed and
// whose target is in range. Damage lands through the scheduler after the
// impact delay, owned by the attacker, so attacks die with their attacker.
func (c *Core) attackSystem(now float64) {
	for _, attacker := range c.store.EntitiesWith(CompTransform, CompCombat, CompTeam) {
		if c.comps.Constructions.Has(attacker) {
			continue
		}
		combat := c.comps.Combats.Ptr(attacker)
		if combat == nil || combat.Damage <= 0 || now < combat.ReadyAt {
			continue
		}
		target := combat.Target
		if target.IsZero() || !c.store.Alive(target) {
			continue
		}
		origin, _ := c.comps.Transforms.Get(attacker)
		targetPos, ok := c.comps.Transforms.Get(target)
		if !ok || distSq(origin.Pos, targetPos.Pos) > c.attackRangeSq(combat) {
			continue
		}

		combat.ReadyAt = now + combat.AttackInterval
		team, _ := c.comps.Teams.Get(attacker)
		damage := combat.Damage + c.teamDamageBonus(team.Team)
		attackerID := attacker
		targetID := target
		c.sched.Schedule(func() {
			c.landAttack(attackerID, targetID, damage)
		}, attackImpactDelay, attacker)
	}
}

// landAttack applies scheduled damage. The round may have ended between the
// swing and the impact; damage outside the battle phase is discarded.
func (c *Core) landAttack(attacker, target ecs.EntityID, baseDamage float64) {
	if c.round.Phase != PhaseBattle {
		return
	}
	if !c.store.Alive(target) {
		return
	}
	health := c.comps.Healths.Ptr(target)
	if health == nil || health.Current <= 0 {
		return
	}
	roll := 1 - damageVarianceSpan/2 + c.combatRNG.Float64()*damageVarianceSpan
	damage := baseDamage * roll
	health.Current -= damage
	if health.Current < 0 {
		health.Current = 0
	}
	c.journal.AppendPatch(Patch{
		Kind:    PatchUnitHealth,
		Entity:  formatEntityID(target),
		Payload: UnitHealthPayload{Current: health.Current, Max: health.Max},
	})
	c.logAttackLanded(attacker, target, damage, health.Current)
}

// deathSystem sweeps entities whose health reached zero.
func (c *Core) deathSystem() {
	for _, entity := range c.store.EntitiesWith(CompHealth) {
		health, ok := c.comps.Healths.Get(entity)
		if !ok || health.Current > 0 {
			continue
		}
		c.store.DestroyEntity(entity)
		c.journal.AppendPatch(Patch{Kind: PatchUnitRemoved, Entity: formatEntityID(entity)})
	}
}

// victorySystem ends the battle when one side has no fighters left, or when
// the battle cap expires, in which case remaining fighter health decides.
func (c *Core) victorySystem(now float64) {
	if c.round.Phase != PhaseBattle {
		return
	}
	// Mirrors never call the round on their own view of the fight; the
	// authoritative round_ended broadcast settles it.
	if !c.authoritative {
		return
	}

	northCount, northHealth := c.fighterStrength(TeamNorth)
	southCount, southHealth := c.fighterStrength(TeamSouth)

	switch {
	case northCount == 0 && southCount == 0:
		c.endBattle(-1, false)
	case northCount == 0:
		c.endBattle(TeamSouth, true)
	case southCount == 0:
		c.endBattle(TeamNorth, true)
	case now >= c.round.BattleEndsAt:
		switch {
		case northHealth > southHealth:
			c.endBattle(TeamNorth, true)
		case southHealth > northHealth:
			c.endBattle(TeamSouth, true)
		default:
			c.endBattle(-1, false)
		}
	}
}

// fighterStrength counts a team's live damage-dealing entities and their
// pooled health. Barricades hold ground but cannot win a round on their own.
func (c *Core) fighterStrength(team TeamID) (int, float64) {
	count := 0
	totalHealth := 0.0
	for _, entity := range c.store.EntitiesWith(CompCombat, CompTeam, CompHealth) {
		combat, _ := c.comps.Combats.Get(entity)
		if combat.Damage <= 0 {
			continue
		}
		entityTeam, _ := c.comps.Teams.Get(entity)
		if entityTeam.Team != team {
			continue
		}
		health, _ := c.comps.Healths.Get(entity)
		if health.Current <= 0 {
			continue
		}
		count++
		totalHealth += health.Current
	}
	return count, totalHealth
}

func distSq(a, b Vec3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}
