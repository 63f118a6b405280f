// Package config loads the server configuration from a TOML file. Everything
// has a working default so the server boots with no file at all; the file
// only overrides what it names.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"redoubt/server/internal/sim"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Network NetworkConfig `toml:"network"`
	Match   MatchConfig   `toml:"match"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ClientDir string `toml:"client_dir"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress       string        `toml:"bind_address"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	DisconnectAfter   time.Duration `toml:"disconnect_after"`
	CommandQueueSize  int           `toml:"command_queue_size"`
	PerPlayerCommands int           `toml:"per_player_commands"`
}

// MatchConfig holds the deterministic simulation parameters handed to every
// room. The client receives the same values in the join response; a mismatch
// here desyncs every match, so overrides are operator-only.
type MatchConfig struct {
	TickRate         int     `toml:"tick_rate"`
	GridCols         int     `toml:"grid_cols"`
	GridRows         int     `toml:"grid_rows"`
	CellSize         float64 `toml:"cell_size"`
	StartingGold     int     `toml:"starting_gold"`
	StartingSupply   int     `toml:"starting_supply"`
	RoundIncomeGold  int     `toml:"round_income_gold"`
	PlacementSeconds float64 `toml:"placement_seconds"`
	BattleCapSeconds float64 `toml:"battle_cap_seconds"`
	DesyncInterval   float64 `toml:"desync_interval"`
	KeyframeTicks    int     `toml:"keyframe_ticks"`
	ContentOverride  string  `toml:"content_override"`
}

type LoggingConfig struct {
	Level        string `toml:"level"`
	Format       string `toml:"format"` // "json" or "console"
	EventLogPath string `toml:"event_log_path"`
}

// Load reads and parses a config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Defaults returns a config that boots without any file present.
func Defaults() *Config {
	room := sim.DefaultRoomConfig()
	return &Config{
		Server: ServerConfig{
			Name:      "redoubt",
			ClientDir: "../client",
		},
		Network: NetworkConfig{
			BindAddress:       "0.0.0.0:8080",
			WriteTimeout:      10 * time.Second,
			HeartbeatInterval: 2 * time.Second,
			DisconnectAfter:   10 * time.Second,
			CommandQueueSize:  512,
			PerPlayerCommands: 32,
		},
		Match: MatchConfig{
			TickRate:         sim.DefaultTickRate,
			GridCols:         room.GridCols,
			GridRows:         room.GridRows,
			CellSize:         room.CellSize,
			StartingGold:     room.StartingGold,
			StartingSupply:   room.StartingSupply,
			RoundIncomeGold:  room.RoundIncomeGold,
			PlacementSeconds: room.PlacementSeconds,
			BattleCapSeconds: room.BattleCapSeconds,
			DesyncInterval:   room.DesyncInterval,
			KeyframeTicks:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// RoomConfig maps the match section onto a per-room simulation config. The
// seed is per-room and assigned at room creation, not from the file.
func (c *Config) RoomConfig(seed string) sim.RoomConfig {
	return sim.RoomConfig{
		Seed:             seed,
		GridCols:         c.Match.GridCols,
		GridRows:         c.Match.GridRows,
		CellSize:         c.Match.CellSize,
		StartingGold:     c.Match.StartingGold,
		StartingSupply:   c.Match.StartingSupply,
		RoundIncomeGold:  c.Match.RoundIncomeGold,
		PlacementSeconds: c.Match.PlacementSeconds,
		BattleCapSeconds: c.Match.BattleCapSeconds,
		DesyncInterval:   c.Match.DesyncInterval,
	}
}

// LoopConfig maps the network and match sections onto the tick loop config.
func (c *Config) LoopConfig() sim.LoopConfig {
	cfg := sim.DefaultLoopConfig()
	if c.Match.TickRate > 0 {
		cfg.TickRate = c.Match.TickRate
	}
	if c.Network.CommandQueueSize > 0 {
		cfg.CommandCapacity = c.Network.CommandQueueSize
	}
	if c.Network.PerPlayerCommands > 0 {
		cfg.PerPlayerLimit = c.Network.PerPlayerCommands
	}
	if c.Match.KeyframeTicks > 0 {
		cfg.KeyframeTicks = c.Match.KeyframeTicks
	}
	return cfg
}
