package sim

import "strings"

// DefaultTickRate is the fixed simulation rate in ticks per second.
const DefaultTickRate = 20

// DefaultSeed seeds rooms that did not request a specific seed.
const DefaultSeed = "skirmish"

// RoomConfig captures the per-room simulation parameters. Every field feeds
// deterministic logic, so both the authoritative core and any predicting
// client core must be built from an identical config.
type RoomConfig struct {
	Seed             string  `json:"seed"`
	GridCols         int     `json:"gridCols"`
	GridRows         int     `json:"gridRows"`
	CellSize         float64 `json:"cellSize"`
	StartingGold     int     `json:"startingGold"`
	StartingSupply   int     `json:"startingSupply"`
	RoundIncomeGold  int     `json:"roundIncomeGold"`
	PlacementSeconds float64 `json:"placementSeconds"`
	BattleCapSeconds float64 `json:"battleCapSeconds"`
	DesyncInterval   float64 `json:"desyncInterval"`
}

// normalized returns a config with defaults applied.
func (cfg RoomConfig) normalized() RoomConfig {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.GridCols <= 0 {
		normalized.GridCols = 18
	}
	if normalized.GridRows <= 0 {
		normalized.GridRows = 24
	}
	if normalized.GridRows%2 != 0 {
		normalized.GridRows++
	}
	if normalized.CellSize <= 0 {
		normalized.CellSize = 2.0
	}
	if normalized.StartingGold <= 0 {
		normalized.StartingGold = 400
	}
	if normalized.StartingSupply <= 0 {
		normalized.StartingSupply = 10
	}
	if normalized.RoundIncomeGold <= 0 {
		normalized.RoundIncomeGold = 250
	}
	if normalized.PlacementSeconds <= 0 {
		normalized.PlacementSeconds = 60
	}
	if normalized.BattleCapSeconds <= 0 {
		normalized.BattleCapSeconds = 90
	}
	if normalized.DesyncInterval <= 0 {
		normalized.DesyncInterval = 1.0
	}
	return normalized
}

// DefaultRoomConfig returns the standard match parameters.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{Seed: DefaultSeed}.normalized()
}
