package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesOverridesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	raw := `
[server]
name = "redoubt-eu1"

[network]
bind_address = "127.0.0.1:9000"
per_player_commands = 8

[match]
placement_seconds = 45.0
starting_gold = 600

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Name != "redoubt-eu1" {
		t.Fatalf("server name not applied: %q", cfg.Server.Name)
	}
	if cfg.Network.BindAddress != "127.0.0.1:9000" {
		t.Fatalf("bind address not applied: %q", cfg.Network.BindAddress)
	}
	if cfg.Network.CommandQueueSize != 512 {
		t.Fatalf("unnamed field lost its default: %d", cfg.Network.CommandQueueSize)
	}
	if cfg.Match.PlacementSeconds != 45.0 || cfg.Match.StartingGold != 600 {
		t.Fatalf("match overrides not applied: %+v", cfg.Match)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("logging section wrong: %+v", cfg.Logging)
	}
	if cfg.Server.StartTime == 0 {
		t.Fatalf("start time not stamped")
	}

	room := cfg.RoomConfig("match-seed")
	if room.Seed != "match-seed" || room.PlacementSeconds != 45.0 || room.StartingGold != 600 {
		t.Fatalf("room config mapping wrong: %+v", room)
	}

	loop := cfg.LoopConfig()
	if loop.PerPlayerLimit != 8 || loop.CommandCapacity != 512 {
		t.Fatalf("loop config mapping wrong: %+v", loop)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultsBootWithoutFile(t *testing.T) {
	cfg := Defaults()
	room := cfg.RoomConfig("")
	if room.GridCols != 18 || room.GridRows != 24 {
		t.Fatalf("unexpected default grid: %dx%d", room.GridCols, room.GridRows)
	}
	loop := cfg.LoopConfig()
	if loop.TickRate != 20 || loop.KeyframeTicks != 100 {
		t.Fatalf("unexpected default loop config: %+v", loop)
	}
}
