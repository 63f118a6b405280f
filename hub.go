package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"redoubt/server/internal/content"
	"redoubt/server/internal/net/proto"
	"redoubt/server/internal/sim"
)

// HubConfig carries the settings shared by every room the hub creates.
type HubConfig struct {
	SimConfig         sim.RoomConfig
	LoopConfig        sim.LoopConfig
	Deps              sim.Deps
	WriteWait         time.Duration
	HeartbeatInterval time.Duration
	DisconnectAfter   time.Duration
}

// DefaultHubConfig returns hub settings for a standalone server.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SimConfig:  sim.DefaultRoomConfig(),
		LoopConfig: sim.DefaultLoopConfig(),
	}
}

// Hub owns the live rooms and places joining players into them. Each room
// runs its own tick goroutine; the hub only does bookkeeping.
type Hub struct {
	cfg     HubConfig
	library *content.Library

	mu      sync.Mutex
	rooms   map[string]*Room
	players map[string]string // playerID -> roomID
	stops   map[string]chan struct{}
	closed  bool
}

// NewHub builds a hub that seats players into rooms built from cfg.
func NewHub(library *content.Library, cfg HubConfig) *Hub {
	return &Hub{
		cfg:     cfg,
		library: library,
		rooms:   make(map[string]*Room),
		players: make(map[string]string),
		stops:   make(map[string]chan struct{}),
	}
}

// Join seats a new player: an existing room with a free seat if one exists,
// otherwise a fresh room. The room seed derives from the room id so every
// match plays on its own deterministic stream.
func (h *Hub) Join() (proto.JoinResponse, error) {
	playerID := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return proto.JoinResponse{}, fmt.Errorf("hub closed")
	}
	var room *Room
	for _, candidate := range h.rooms {
		if candidate.SeatCount() < 2 {
			room = candidate
			break
		}
	}
	if room == nil {
		created, err := h.createRoomLocked()
		if err != nil {
			h.mu.Unlock()
			return proto.JoinResponse{}, err
		}
		room = created
	}
	h.players[playerID] = room.ID
	h.mu.Unlock()

	response, err := room.Join(playerID)
	if err != nil {
		h.mu.Lock()
		delete(h.players, playerID)
		h.mu.Unlock()
		return proto.JoinResponse{}, err
	}
	return response, nil
}

// Room resolves the room a player was seated into.
func (h *Hub) Room(playerID string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID, ok := h.players[playerID]
	if !ok {
		return nil, false
	}
	room, ok := h.rooms[roomID]
	return room, ok
}

// Leave releases a player's seat and tears the room down once empty.
func (h *Hub) Leave(playerID string) {
	h.mu.Lock()
	roomID, ok := h.players[playerID]
	if ok {
		delete(h.players, playerID)
	}
	room := h.rooms[roomID]
	h.mu.Unlock()
	if !ok || room == nil {
		return
	}

	room.Disconnect(playerID)
	if room.SeatCount() == 0 {
		h.closeRoom(roomID)
	}
}

// DiagnosticsSnapshot summarises every live room.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsRoom {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	summary := make([]diagnosticsRoom, 0, len(rooms))
	for _, room := range rooms {
		summary = append(summary, diagnosticsRoom{
			ID:        room.ID,
			Tick:      room.Tick(),
			Seats:     room.SeatCount(),
			Players:   room.DiagnosticsSnapshot(),
			Telemetry: room.TelemetrySnapshot(),
		})
	}
	return summary
}

// Close stops every room loop.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.closeRoom(id)
	}
}

func (h *Hub) createRoomLocked() (*Room, error) {
	roomID := uuid.NewString()
	simCfg := h.cfg.SimConfig
	simCfg.Seed = fmt.Sprintf("%s:%s", simCfg.Seed, roomID)

	room, err := NewRoom(roomID, h.library, RoomOptions{
		SimConfig:         simCfg,
		LoopConfig:        h.cfg.LoopConfig,
		Deps:              h.cfg.Deps,
		WriteWait:         h.cfg.WriteWait,
		HeartbeatInterval: h.cfg.HeartbeatInterval,
		DisconnectAfter:   h.cfg.DisconnectAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	stop := make(chan struct{})
	h.rooms[roomID] = room
	h.stops[roomID] = stop
	go room.Run(stop)
	return room, nil
}

func (h *Hub) closeRoom(roomID string) {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	stop := h.stops[roomID]
	if ok {
		delete(h.rooms, roomID)
		delete(h.stops, roomID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if stop != nil {
		close(stop)
	}
	room.Shutdown()
}
