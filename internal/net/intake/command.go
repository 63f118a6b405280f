// Package intake stages decoded client messages into a room's command
// queue. It owns the validation that is transport-shaped (payload presence,
// player membership) as opposed to the simulation-shaped validation the
// pipeline performs on the tick.
package intake

import (
	"time"

	"redoubt/server/internal/net/proto"
	"redoubt/server/internal/sim"
)

// Reject reasons produced before a command reaches the simulation queue.
const (
	RejectInvalidPayload = "invalid_payload"
	RejectUnknownPlayer  = "unknown_player"
)

// Enqueuer is the slice of the tick loop the stager needs.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

// CommandContext carries the room surface the stager needs.
type CommandContext struct {
	Engine    Enqueuer
	HasPlayer func(string) bool
	Tick      func() uint64
	Now       func() time.Time
}

// StageClientCommand validates and enqueues one client message. Returns the
// staged command on success, or a reject reason string.
func StageClientCommand(ctx CommandContext, playerID string, seq uint64, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, RejectInvalidPayload
	}

	switch command.Type {
	case sim.CommandSubmitPlacement:
		if command.Placement == nil {
			return zero, false, RejectInvalidPayload
		}
	case sim.CommandSetSquadTarget:
		if command.Target == nil || command.Target.PlacementID == "" {
			return zero, false, RejectInvalidPayload
		}
	case sim.CommandSetSquadTargets:
		if len(command.Targets) == 0 {
			return zero, false, RejectInvalidPayload
		}
		for _, target := range command.Targets {
			if target.PlacementID == "" {
				return zero, false, RejectInvalidPayload
			}
		}
	case sim.CommandReadyForBattle:
		if command.Ready == nil {
			return zero, false, RejectInvalidPayload
		}
	case sim.CommandPurchaseUpgrade:
		if command.Upgrade == nil {
			return zero, false, RejectInvalidPayload
		}
	case sim.CommandCancelBuilding:
		if command.Cancel == nil || command.Cancel.PlacementID == "" {
			return zero, false, RejectInvalidPayload
		}
	default:
		return zero, false, RejectInvalidPayload
	}

	if ctx.HasPlayer != nil && !ctx.HasPlayer(playerID) {
		return zero, false, RejectUnknownPlayer
	}

	command.PlayerID = playerID
	command.Seq = seq
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
