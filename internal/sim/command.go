package sim

import (
	"time"

	"redoubt/server/internal/content"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandSubmitPlacement CommandType = "SubmitPlacement"
	CommandSetSquadTarget  CommandType = "SetSquadTarget"
	CommandSetSquadTargets CommandType = "SetSquadTargets"
	CommandReadyForBattle  CommandType = "ReadyForBattle"
	CommandPurchaseUpgrade CommandType = "PurchaseUpgrade"
	CommandCancelBuilding  CommandType = "CancelBuilding"
	CommandHeartbeat       CommandType = "Heartbeat"
)

// PlacementCommand requests a new squad or building deployment.
type PlacementCommand struct {
	UnitType   content.UnitTypeID `json:"unitType"`
	OriginCol  int                `json:"originCol"`
	OriginRow  int                `json:"originRow"`
	FacingSide bool               `json:"facingSide,omitempty"`
}

// SquadTargetCommand orders one squad toward a position.
type SquadTargetCommand struct {
	PlacementID string  `json:"placementId"`
	Target      Vec3    `json:"target"`
	Aggressive  bool    `json:"aggressive,omitempty"`
	Spread      float64 `json:"spread,omitempty"`
}

// ReadyCommand toggles the player's ready-for-battle flag.
type ReadyCommand struct {
	Ready bool `json:"ready"`
}

// UpgradeCommand purchases a team upgrade.
type UpgradeCommand struct {
	Upgrade content.UpgradeID `json:"upgrade"`
}

// CancelBuildingCommand removes one of the caller's placements and refunds
// its cost. Also issued by the client-side undo stack as the compensating
// command.
type CancelBuildingCommand struct {
	PlacementID string `json:"placementId"`
}

// HeartbeatCommand updates connectivity metadata for a player. IssuedAt
// plumbing only; it never feeds deterministic state.
type HeartbeatCommand struct {
	ReceivedAt time.Time     `json:"receivedAt"`
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command represents a player intent captured for processing on the next
// tick. Seq is the client's monotonic input sequence, echoed back in
// snapshots so the reconciliation layer can discard acknowledged inputs.
type Command struct {
	Seq        uint64                 `json:"seq"`
	OriginTick uint64                 `json:"originTick"`
	PlayerID   string                 `json:"playerId"`
	Type       CommandType            `json:"type"`
	IssuedAt   time.Time              `json:"issuedAt"`
	Placement  *PlacementCommand      `json:"placement,omitempty"`
	Target     *SquadTargetCommand    `json:"target,omitempty"`
	Targets    []SquadTargetCommand   `json:"targets,omitempty"`
	Ready      *ReadyCommand          `json:"ready,omitempty"`
	Upgrade    *UpgradeCommand        `json:"upgrade,omitempty"`
	Cancel     *CancelBuildingCommand `json:"cancel,omitempty"`
	Heartbeat  *HeartbeatCommand      `json:"heartbeat,omitempty"`
}

// Clone returns a deep copy so staged commands cannot be mutated by callers.
func (c Command) Clone() Command {
	cloned := c
	if c.Placement != nil {
		copied := *c.Placement
		cloned.Placement = &copied
	}
	if c.Target != nil {
		copied := *c.Target
		cloned.Target = &copied
	}
	if len(c.Targets) > 0 {
		cloned.Targets = append([]SquadTargetCommand(nil), c.Targets...)
	}
	if c.Ready != nil {
		copied := *c.Ready
		cloned.Ready = &copied
	}
	if c.Upgrade != nil {
		copied := *c.Upgrade
		cloned.Upgrade = &copied
	}
	if c.Cancel != nil {
		copied := *c.Cancel
		cloned.Cancel = &copied
	}
	if c.Heartbeat != nil {
		copied := *c.Heartbeat
		cloned.Heartbeat = &copied
	}
	return cloned
}
