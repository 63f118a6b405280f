package sim

import (
	"redoubt/server/internal/content"
	"redoubt/server/internal/ecs"
)

// ConstructionState tracks whether a building placement is active yet.
// Squads are born complete.
type ConstructionState int

const (
	ConstructionComplete ConstructionState = iota
	ConstructionInProgress
)

// Placement is a player's committed deployment: the grid cells it reserves
// and the squad entities it spawned. Removed when every squad member is dead
// or the placement is cancelled during the placement phase.
type Placement struct {
	ID       string             `json:"id"`
	PlayerID string             `json:"playerId"`
	Team     TeamID             `json:"team"`
	UnitType content.UnitTypeID `json:"unitType"`
	Cells    []Cell             `json:"cells"`
	Squad    []ecs.EntityID     `json:"squad"`
	State    ConstructionState  `json:"state"`
	Round    int                `json:"round"`
}

// aliveMembers counts squad entities that still exist in the store.
func (p *Placement) aliveMembers(store *ecs.Store) int {
	alive := 0
	for _, id := range p.Squad {
		if store.Alive(id) {
			alive++
		}
	}
	return alive
}
