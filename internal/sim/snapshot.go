package sim

import (
	"sort"

	"redoubt/server/internal/content"
)

// PlayerSnapshot mirrors a player's per-room state to the client.
// LastProcessedSeq is the highest command sequence the core has applied for
// that player; the client's reconciliation layer uses it to discard
// acknowledged pending inputs.
type PlayerSnapshot struct {
	ID               string `json:"id"`
	Team             TeamID `json:"team"`
	Ready            bool   `json:"ready"`
	LastProcessedSeq uint64 `json:"lastProcessedSeq"`
	Connected        bool   `json:"connected"`
	RTTMillis        int64  `json:"rttMillis,omitempty"`
}

// UnitSnapshot mirrors one spawned entity.
type UnitSnapshot struct {
	ID                string             `json:"id"`
	PlacementID       string             `json:"placementId"`
	UnitType          content.UnitTypeID `json:"unitType"`
	Team              TeamID             `json:"team"`
	Pos               Vec3               `json:"pos"`
	Rot               float64            `json:"rot"`
	Health            float64            `json:"health"`
	MaxHealth         float64            `json:"maxHealth"`
	Building          bool               `json:"building,omitempty"`
	UnderConstruction bool               `json:"underConstruction,omitempty"`
}

// PlacementSnapshot mirrors one committed deployment.
type PlacementSnapshot struct {
	ID       string             `json:"id"`
	PlayerID string             `json:"playerId"`
	Team     TeamID             `json:"team"`
	UnitType content.UnitTypeID `json:"unitType"`
	Cells    []Cell             `json:"cells"`
	State    ConstructionState  `json:"state"`
	Round    int                `json:"round"`
	Units    []string           `json:"units"`
}

// RoundSnapshot mirrors the round lifecycle record.
type RoundSnapshot struct {
	Phase          Phase                          `json:"phase"`
	PhaseName      string                         `json:"phaseName"`
	Round          int                            `json:"round"`
	PhaseStartedAt float64                        `json:"phaseStartedAt"`
	BattleEndsAt   float64                        `json:"battleEndsAt,omitempty"`
	Resources      map[TeamID]TeamResources       `json:"resources"`
	Upgrades       map[TeamID][]content.UpgradeID `json:"upgrades"`
	Winner         TeamID                         `json:"winner"`
	HasWinner      bool                           `json:"hasWinner"`
}

// Snapshot captures the state exposed to non-simulation callers. Slices are
// ordered: players by join order, units by creation order, placements by
// placement order, so serialisations of the same state are byte-identical.
type Snapshot struct {
	Tick       uint64              `json:"tick"`
	SimTime    float64             `json:"simTime"`
	Round      RoundSnapshot       `json:"round"`
	Players    []PlayerSnapshot    `json:"players,omitempty"`
	Units      []UnitSnapshot      `json:"units,omitempty"`
	Placements []PlacementSnapshot `json:"placements,omitempty"`
}

func roundSnapshot(round *RoundState) RoundSnapshot {
	snap := RoundSnapshot{
		Phase:          round.Phase,
		PhaseName:      round.Phase.String(),
		Round:          round.Round,
		PhaseStartedAt: round.PhaseStartedAt,
		BattleEndsAt:   round.BattleEndsAt,
		Resources:      make(map[TeamID]TeamResources, len(round.Resources)),
		Upgrades:       make(map[TeamID][]content.UpgradeID, len(round.Upgrades)),
		Winner:         round.Winner,
		HasWinner:      round.HasWinner,
	}
	for team, pool := range round.Resources {
		snap.Resources[team] = *pool
	}
	for team, owned := range round.Upgrades {
		ids := make([]content.UpgradeID, 0, len(owned))
		for id := range owned {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		snap.Upgrades[team] = ids
	}
	return snap
}
