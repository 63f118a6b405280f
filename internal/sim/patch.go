package sim

import (
	"redoubt/server/internal/content"
	"redoubt/server/internal/ecs"
)

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	PatchUnitPos          PatchKind = "unit_pos"
	PatchUnitHealth       PatchKind = "unit_health"
	PatchUnitRemoved      PatchKind = "unit_removed"
	PatchPlacementState   PatchKind = "placement_state"
	PatchPlacementRemoved PatchKind = "placement_removed"
	PatchTeamResources    PatchKind = "team_resources"
)

// Patch is a diff entry applied on top of the last keyframe by clients that
// track incremental state.
type Patch struct {
	Kind    PatchKind `json:"kind"`
	Entity  string    `json:"entityId,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// UnitPosPayload carries the new position for a unit patch.
type UnitPosPayload struct {
	Pos Vec3    `json:"pos"`
	Rot float64 `json:"rot"`
}

// UnitHealthPayload carries the new health for a unit patch.
type UnitHealthPayload struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// PlacementStatePayload carries the construction state for a placement patch.
type PlacementStatePayload struct {
	State ConstructionState `json:"state"`
}

// PlacementRemovedPayload explains why a placement disappeared.
type PlacementRemovedPayload struct {
	Reason string `json:"reason"`
}

// TeamResourcesPayload carries the updated pools for one team.
type TeamResourcesPayload struct {
	Team      TeamID `json:"team"`
	Gold      int    `json:"gold"`
	Supply    int    `json:"supply"`
	SupplyCap int    `json:"supplyCap"`
}

// EventKind enumerates lifecycle notifications drained by the transport
// layer for broadcast after each tick.
type EventKind string

const (
	EventReadyUpdate        EventKind = "ready_update"
	EventBattleStarted      EventKind = "battle_started"
	EventRoundEnded         EventKind = "round_ended"
	EventPlacementCancelled EventKind = "placement_cancelled"
)

// Event is a room-visible notification produced during Apply or Step.
type Event struct {
	Kind        EventKind `json:"kind"`
	PlayerID    string    `json:"playerId,omitempty"`
	Ready       bool      `json:"ready,omitempty"`
	AllReady    bool      `json:"allReady,omitempty"`
	Round       int       `json:"round,omitempty"`
	Winner      TeamID    `json:"winner,omitempty"`
	HasWinner   bool      `json:"hasWinner,omitempty"`
	PlacementID string    `json:"placementId,omitempty"`
}

// CommandEffect describes the observable outcome of a successfully applied
// command, echoed back to its issuer.
type CommandEffect struct {
	PlacementID string         `json:"placementId,omitempty"`
	SquadUnits  []UnitSnapshot `json:"squadUnits,omitempty"`
	RefundGold  int            `json:"refundGold,omitempty"`
	Upgrade     *UpgradeResult `json:"upgrade,omitempty"`
}

// UpgradeResult confirms a purchase.
type UpgradeResult struct {
	Upgrade content.UpgradeID `json:"upgrade"`
	Gold    int               `json:"gold"`
}

// CommandResult pairs a staged command with its validation or apply outcome
// so the transport can ack or reject the originating session.
type CommandResult struct {
	Seq      uint64         `json:"seq"`
	PlayerID string         `json:"playerId"`
	Type     CommandType    `json:"type"`
	Err      ErrorKind      `json:"-"`
	Error    string         `json:"error,omitempty"`
	Effect   *CommandEffect `json:"effect,omitempty"`
}

// entityPatchID renders an entity id for the wire.
func entityPatchID(id ecs.EntityID) string {
	return formatEntityID(id)
}
