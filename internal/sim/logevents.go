package sim

import (
	"context"

	"redoubt/server/internal/ecs"
	"redoubt/server/logging"
	combatlog "redoubt/server/logging/combat"
	commandlog "redoubt/server/logging/commands"
	roundlog "redoubt/server/logging/rounds"
)

func playerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}

func unitRef(id ecs.EntityID) logging.EntityRef {
	return logging.EntityRef{ID: formatEntityID(id), Kind: logging.EntityKindUnit}
}

func (c *Core) logCommandRejected(cmd Command, kind ErrorKind) {
	commandlog.Rejected(context.Background(), c.deps.Publisher, c.clock.Tick(), playerRef(cmd.PlayerID), commandlog.RejectedPayload{
		CommandType: string(cmd.Type),
		Seq:         cmd.Seq,
		Reason:      kind.Message(),
	}, nil)
}

func (c *Core) logPlacementAccepted(playerID, placementID, unitID string) {
	commandlog.Accepted(context.Background(), c.deps.Publisher, c.clock.Tick(), playerRef(playerID), commandlog.AcceptedPayload{
		CommandType: string(CommandSubmitPlacement),
		PlacementID: placementID,
	}, map[string]any{"unit": unitID})
}

func (c *Core) logBattleStarted(trigger string) {
	roundlog.BattleStarted(context.Background(), c.deps.Publisher, c.clock.Tick(), roundlog.BattleStartedPayload{
		Round:   c.round.Round,
		Trigger: trigger,
	}, nil)
}

func (c *Core) logRoundEnded(winner TeamID, hasWinner bool) {
	roundlog.RoundEnded(context.Background(), c.deps.Publisher, c.clock.Tick(), roundlog.RoundEndedPayload{
		Round:     c.round.Round,
		Winner:    int(winner),
		HasWinner: hasWinner,
	}, nil)
}

func (c *Core) logPlacementStarted() {
	roundlog.PlacementOpened(context.Background(), c.deps.Publisher, c.clock.Tick(), roundlog.PlacementOpenedPayload{
		Round: c.round.Round,
	}, nil)
}

func (c *Core) logAttackLanded(attacker, target ecs.EntityID, damage, remaining float64) {
	combatlog.Damage(context.Background(), c.deps.Publisher, c.clock.Tick(), unitRef(attacker), unitRef(target), combatlog.DamagePayload{
		Amount:       damage,
		TargetHealth: remaining,
	}, nil)
	if remaining <= 0 {
		payload := combatlog.DefeatPayload{}
		if member, ok := c.comps.SquadMembers.Get(target); ok {
			if def, defOK := c.library.Unit(member.UnitType); defOK {
				payload.UnitType = def.ID
			}
		}
		combatlog.Defeat(context.Background(), c.deps.Publisher, c.clock.Tick(), unitRef(attacker), unitRef(target), payload, nil)
	}
}
