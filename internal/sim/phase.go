package sim

import "redoubt/server/internal/content"

// Phase is the current stage of the round lifecycle.
type Phase int

const (
	PhasePlacement Phase = iota
	PhaseBattle
	PhaseRoundEnd
)

func (p Phase) String() string {
	switch p {
	case PhasePlacement:
		return "placement"
	case PhaseBattle:
		return "battle"
	case PhaseRoundEnd:
		return "round_end"
	default:
		return "unknown"
	}
}

// TeamResources tracks the spendable pools for one side.
type TeamResources struct {
	Gold      int `json:"gold"`
	Supply    int `json:"supply"`
	SupplyCap int `json:"supplyCap"`
}

// RoundState is the singleton round lifecycle record for one room. It is
// mutated only through phase transitions and resource-affecting commands.
type RoundState struct {
	Phase          Phase
	Round          int
	PhaseStartedAt float64
	BattleEndsAt   float64
	Resources      map[TeamID]*TeamResources
	Upgrades       map[TeamID]map[content.UpgradeID]bool
	Winner         TeamID
	HasWinner      bool
}

func newRoundState(cfg RoomConfig) RoundState {
	return RoundState{
		Phase: PhasePlacement,
		Round: 1,
		Resources: map[TeamID]*TeamResources{
			TeamNorth: {Gold: cfg.StartingGold, Supply: cfg.StartingSupply, SupplyCap: cfg.StartingSupply},
			TeamSouth: {Gold: cfg.StartingGold, Supply: cfg.StartingSupply, SupplyCap: cfg.StartingSupply},
		},
		Upgrades: map[TeamID]map[content.UpgradeID]bool{
			TeamNorth: {},
			TeamSouth: {},
		},
		Winner: -1,
	}
}

// resources returns the pool for a team, never nil.
func (r *RoundState) resources(team TeamID) *TeamResources {
	if pool, ok := r.Resources[team]; ok {
		return pool
	}
	pool := &TeamResources{}
	r.Resources[team] = pool
	return pool
}

// hasUpgrade reports whether the team owns the upgrade.
func (r *RoundState) hasUpgrade(team TeamID, id content.UpgradeID) bool {
	owned, ok := r.Upgrades[team]
	return ok && owned[id]
}
