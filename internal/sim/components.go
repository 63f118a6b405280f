package sim

import (
	"redoubt/server/internal/content"
	"redoubt/server/internal/ecs"
)

// TeamID identifies one of the two sides of the board.
type TeamID int

const (
	TeamNorth TeamID = 0
	TeamSouth TeamID = 1
)

// Component type ids for the simulation store.
const (
	CompTransform ecs.ComponentType = iota
	CompHealth
	CompTeam
	CompCombat
	CompAIState
	CompSquadMember
	CompConstruction
	CompOwner
)

// Vec3 is a position in world units. Y is vertical and stays zero for ground
// units; it exists because the client renders in 3D and the reconciliation
// epsilon is a squared distance over all three axes.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Transform carries spatial state.
type Transform struct {
	Pos   Vec3    `json:"pos"`
	Rot   float64 `json:"rot"`
	Scale float64 `json:"scale"`
}

// Health carries the current and maximum hit points.
type Health struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Team tags an entity with its side.
type Team struct {
	Team TeamID `json:"team"`
}

// Combat carries the per-entity fighting parameters. ReadyAt is a simulation
// timestamp; it is reset on battle entry so cooldowns never leak across
// rounds.
type Combat struct {
	Damage         float64
	Range          float64
	AttackInterval float64
	MoveSpeed      float64
	ReadyAt        float64
	Target         ecs.EntityID
}

// AIMode enumerates squad behaviors during battle.
type AIMode int

const (
	AIModeAdvance AIMode = iota
	AIModeMoveTo
	AIModeEngage
)

// AIState carries per-entity battle AI scratch state.
type AIState struct {
	Mode    AIMode
	Goal    Vec3
	HasGoal bool
}

// SquadMember links a unit entity back to the placement that spawned it.
type SquadMember struct {
	PlacementID string
	Slot        int
	UnitType    content.UnitTypeID
}

// Construction marks a building entity that is not yet active. CompletesAt
// is a simulation timestamp driven by the scheduler.
type Construction struct {
	PlacementID string
	CompletesAt float64
}

// Owner tags an entity with the player that placed it.
type Owner struct {
	PlayerID string
}

// Components groups the typed tables for one store. Systems hold this by
// value and reach tables without map lookups.
type Components struct {
	Transforms    *ecs.Table[Transform]
	Healths       *ecs.Table[Health]
	Teams         *ecs.Table[Team]
	Combats       *ecs.Table[Combat]
	AIStates      *ecs.Table[AIState]
	SquadMembers  *ecs.Table[SquadMember]
	Constructions *ecs.Table[Construction]
	Owners        *ecs.Table[Owner]
}

// NewComponents registers every component table against the store.
func NewComponents(store *ecs.Store) Components {
	return Components{
		Transforms:    ecs.NewTable[Transform](store, CompTransform),
		Healths:       ecs.NewTable[Health](store, CompHealth),
		Teams:         ecs.NewTable[Team](store, CompTeam),
		Combats:       ecs.NewTable[Combat](store, CompCombat),
		AIStates:      ecs.NewTable[AIState](store, CompAIState),
		SquadMembers:  ecs.NewTable[SquadMember](store, CompSquadMember),
		Constructions: ecs.NewTable[Construction](store, CompConstruction),
		Owners:        ecs.NewTable[Owner](store, CompOwner),
	}
}
