package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"redoubt/server/internal/content"
	"redoubt/server/internal/desync"
	"redoubt/server/internal/net/proto"
	"redoubt/server/internal/sim"
	"redoubt/server/internal/telemetry"
	"redoubt/server/logging"
	logcommands "redoubt/server/logging/commands"
	loglifecycle "redoubt/server/logging/lifecycle"
	lognetwork "redoubt/server/logging/network"
	logsimulation "redoubt/server/logging/simulation"
)

// ErrRoomFull is returned when both seats are taken.
var ErrRoomFull = errors.New("room full")

// RoomOptions tunes one room's simulation and session handling.
type RoomOptions struct {
	SimConfig         sim.RoomConfig
	LoopConfig        sim.LoopConfig
	Deps              sim.Deps
	WriteWait         time.Duration
	HeartbeatInterval time.Duration
	DisconnectAfter   time.Duration
}

func (opts RoomOptions) normalized() RoomOptions {
	normalized := opts
	if normalized.WriteWait <= 0 {
		normalized.WriteWait = 10 * time.Second
	}
	if normalized.HeartbeatInterval <= 0 {
		normalized.HeartbeatInterval = 2 * time.Second
	}
	if normalized.DisconnectAfter <= 0 {
		normalized.DisconnectAfter = 10 * time.Second
	}
	if normalized.LoopConfig == (sim.LoopConfig{}) {
		normalized.LoopConfig = sim.DefaultLoopConfig()
	}
	return normalized
}

type seat struct {
	id            string
	team          sim.TeamID
	joinedAt      time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
	lastAck       uint64
}

// Subscriber wraps one websocket connection with a write lock and the last
// acknowledged command sequence for duplicate suppression.
type Subscriber struct {
	conn           *websocket.Conn
	writeWait      time.Duration
	mu             sync.Mutex
	lastCommandSeq atomic.Uint64
}

// WriteMessage serialises writes to the underlying connection.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// LastCommandSeq returns the newest acknowledged command sequence.
func (s *Subscriber) LastCommandSeq() uint64 { return s.lastCommandSeq.Load() }

// StoreLastCommandSeq records an acknowledged command sequence.
func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	for {
		current := s.lastCommandSeq.Load()
		if seq <= current || s.lastCommandSeq.CompareAndSwap(current, seq) {
			return
		}
	}
}

// Room owns one match: the authoritative tick loop, the two player seats,
// and the websocket subscribers receiving broadcasts. All core access happens
// on the loop goroutine; transport goroutines talk to it through the command
// queue and the control queue drained at tick start.
type Room struct {
	ID string

	library   *content.Library
	opts      RoomOptions
	core      *sim.Core
	loop      *sim.Loop
	telemetry *telemetryCounters
	logger    telemetry.Logger
	publisher logging.Publisher

	mu           sync.Mutex
	seats        map[string]*seat
	subscribers  map[string]*Subscriber
	control      []func(*sim.Core)
	lastSnapshot sim.Snapshot

	lastTick atomic.Uint64
	stopped  atomic.Bool
}

// NewRoom builds a room with an authoritative core seeded from the options.
func NewRoom(id string, library *content.Library, opts RoomOptions) (*Room, error) {
	opts = opts.normalized()
	room := &Room{
		ID:          id,
		library:     library,
		opts:        opts,
		telemetry:   newTelemetryCounters(),
		seats:       make(map[string]*seat),
		subscribers: make(map[string]*Subscriber),
	}

	core := sim.NewCore(opts.SimConfig, library, opts.Deps, true)
	loop, err := sim.NewEngine(library,
		sim.WithCore(core),
		sim.WithLoopConfig(opts.LoopConfig),
		sim.WithLoopHooks(sim.LoopHooks{
			Prepare:   room.prepare,
			AfterStep: room.afterStep,
			OnCommandDrop: func(reason string, cmd sim.Command) {
				room.telemetry.IncrementCommandDropped()
				logcommands.Dropped(context.Background(), room.publisher, room.lastTick.Load(),
					logging.EntityRef{ID: cmd.PlayerID, Kind: logging.EntityKindPlayer},
					logcommands.DroppedPayload{CommandType: string(cmd.Type), Reason: reason}, nil)
			},
		}),
	)
	if err != nil {
		return nil, err
	}

	deps := core.Deps()
	room.core = core
	room.loop = loop
	room.logger = deps.Logger
	room.publisher = deps.Publisher
	room.lastSnapshot = core.Snapshot()
	return room, nil
}

// Run drives the tick loop until the stop channel closes.
func (r *Room) Run(stop <-chan struct{}) {
	r.loop.Run(stop)
	r.stopped.Store(true)
}

// Loop exposes the command queue for the intake layer.
func (r *Room) Loop() *sim.Loop { return r.loop }

// Tick reports the most recently completed tick.
func (r *Room) Tick() uint64 { return r.lastTick.Load() }

// TelemetrySnapshot exposes the room counters.
func (r *Room) TelemetrySnapshot() telemetrySnapshot { return r.telemetry.Snapshot() }

// SeatCount reports how many players currently hold a seat.
func (r *Room) SeatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats)
}

// HasPlayer reports whether the player holds a seat in this room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seats[playerID]
	return ok
}

// Join claims a free seat and returns everything the client needs to build
// its mirror core. The first seat is the north side, the second south.
func (r *Room) Join(playerID string) (proto.JoinResponse, error) {
	r.mu.Lock()
	if len(r.seats) >= 2 {
		r.mu.Unlock()
		return proto.JoinResponse{}, ErrRoomFull
	}

	team := sim.TeamNorth
	for _, occupant := range r.seats {
		if occupant.team == sim.TeamNorth {
			team = sim.TeamSouth
		}
	}

	now := time.Now()
	r.seats[playerID] = &seat{
		id:            playerID,
		team:          team,
		joinedAt:      now,
		lastHeartbeat: now,
	}
	r.controlLocked(func(core *sim.Core) {
		core.AddPlayer(playerID, team)
	})
	snapshot := r.lastSnapshot
	r.mu.Unlock()

	loglifecycle.PlayerJoined(context.Background(), r.publisher, r.lastTick.Load(),
		logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		loglifecycle.PlayerJoinedPayload{Team: int(team), RoomID: r.ID}, nil)

	return proto.JoinResponse{
		PlayerID:    playerID,
		RoomID:      r.ID,
		Team:        team,
		Config:      r.opts.SimConfig,
		CatalogHash: r.library.Hash(),
		Enums:       r.library.Enums(),
		Snapshot:    snapshot,
		Resync:      true,
	}, nil
}

// Subscribe associates a websocket connection with a seated player. An
// existing connection for the same player is replaced.
func (r *Room) Subscribe(playerID string, conn *websocket.Conn) (*Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.seats[playerID]
	if !ok {
		return nil, false
	}
	state.lastHeartbeat = time.Now()

	if existing, ok := r.subscribers[playerID]; ok {
		existing.conn.Close()
	}
	sub := &Subscriber{conn: conn, writeWait: r.opts.WriteWait}
	r.subscribers[playerID] = sub
	return sub, true
}

// MarshalInitialState renders the freshest broadcast payload for a session
// that just attached, flagged so the client rebuilds from it.
func (r *Room) MarshalInitialState() ([]byte, error) {
	r.mu.Lock()
	snapshot := r.lastSnapshot
	r.mu.Unlock()
	_, _, newest := r.loop.KeyframeWindow()
	return proto.EncodeStateMessage(proto.StateMessage{
		Tick:        snapshot.Tick,
		SimTime:     snapshot.SimTime,
		Round:       snapshot.Round,
		Players:     snapshot.Players,
		Patches:     []sim.Patch{},
		KeyframeSeq: newest,
		ServerTime:  time.Now().UnixMilli(),
		Resync:      true,
	})
}

// Disconnect releases a player's seat and closes their connection. The
// simulation removes the player's placements on the next tick.
func (r *Room) Disconnect(playerID string) bool {
	r.mu.Lock()
	sub, subOK := r.subscribers[playerID]
	if subOK {
		delete(r.subscribers, playerID)
	}
	_, seatOK := r.seats[playerID]
	if seatOK {
		delete(r.seats, playerID)
		r.controlLocked(func(core *sim.Core) {
			core.RemovePlayer(playerID)
		})
	}
	r.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if seatOK {
		loglifecycle.PlayerDisconnected(context.Background(), r.publisher, r.lastTick.Load(),
			logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
			loglifecycle.PlayerDisconnectedPayload{Reason: "disconnect"}, nil)
	}
	return seatOK
}

// UpdateHeartbeat records heartbeat timing for a seat and forwards the
// heartbeat into the simulation so connectivity metadata stays in snapshots.
func (r *Room) UpdateHeartbeat(playerID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	r.mu.Lock()
	state, ok := r.seats[playerID]
	if !ok {
		r.mu.Unlock()
		return 0, false
	}
	state.lastHeartbeat = receivedAt
	var rtt time.Duration
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt = receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}
	lastRTT := state.lastRTT
	r.mu.Unlock()

	r.loop.Enqueue(sim.Command{
		PlayerID: playerID,
		Type:     sim.CommandHeartbeat,
		Heartbeat: &sim.HeartbeatCommand{
			ReceivedAt: receivedAt,
			ClientSent: clientSent,
			RTT:        lastRTT,
		},
	})
	return lastRTT, true
}

// RecordAck notes the newest broadcast sequence the client confirmed.
func (r *Room) RecordAck(playerID string, ack uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.seats[playerID]; ok && ack > state.lastAck {
		state.lastAck = ack
	}
}

// HandleKeyframeRequest resolves a stored keyframe or explains its absence.
func (r *Room) HandleKeyframeRequest(playerID string, sequence uint64) ([]byte, error) {
	r.telemetry.IncrementKeyframeRequest()
	lognetwork.ResyncRequested(context.Background(), r.publisher, r.lastTick.Load(),
		logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		lognetwork.ResyncPayload{Reason: "keyframe_request", Sequence: sequence}, nil)

	frame, ok := r.loop.KeyframeBySequence(sequence)
	if !ok {
		r.telemetry.IncrementKeyframeExpired()
		return proto.EncodeKeyframeNack(proto.KeyframeNack{
			Sequence: sequence,
			Reason:   "expired",
			Resync:   true,
		})
	}
	return proto.EncodeKeyframeMessage(proto.KeyframeMessage{
		Sequence:    frame.Sequence,
		Tick:        frame.Tick,
		Snapshot:    frame.Snapshot,
		Config:      frame.Config,
		CatalogHash: frame.CatalogHash,
	})
}

// HandleDesyncReport compares a client's hash frames against the
// authoritative stream on the loop goroutine and answers through the
// player's subscriber.
func (r *Room) HandleDesyncReport(playerID string, frames []desync.Frame) {
	r.telemetry.IncrementDesyncReport()
	r.mu.Lock()
	r.controlLocked(func(core *sim.Core) {
		divergence, found := core.CompareDesyncFrames(frames)
		ack := proto.DesyncAck{Status: proto.DesyncStatusClean}
		if found {
			r.telemetry.IncrementDesyncDivergence()
			r.telemetry.IncrementResyncIssued()
			ack = proto.DesyncAck{
				Status:      proto.DesyncStatusDiverged,
				SimTime:     divergence.SimTime,
				LocalCount:  divergence.LocalCount,
				RemoteCount: divergence.RemoteCount,
				Resync:      true,
			}
			lognetwork.DesyncDetected(context.Background(), r.publisher, r.lastTick.Load(),
				logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
				lognetwork.DesyncPayload{
					Tick:       divergence.Tick,
					SimTime:    divergence.SimTime,
					LocalHash:  divergence.LocalHash,
					RemoteHash: divergence.RemoteHash,
				}, nil)
		}
		data, err := proto.EncodeDesyncAck(ack)
		if err != nil {
			return
		}
		r.sendTo(playerID, data)
	})
	r.mu.Unlock()
}

// controlLocked queues a mutation to run on the loop goroutine. Callers hold
// r.mu.
func (r *Room) controlLocked(fn func(*sim.Core)) {
	r.control = append(r.control, fn)
}

// prepare drains queued control mutations before commands apply.
func (r *Room) prepare(ctx sim.LoopTickContext) {
	r.mu.Lock()
	pending := r.control
	r.control = nil
	r.mu.Unlock()
	for _, fn := range pending {
		fn(r.core)
	}
}

// afterStep publishes one tick's output: telemetry, command acks, the state
// broadcast, and the heartbeat timeout sweep.
func (r *Room) afterStep(result sim.LoopStepResult) {
	r.lastTick.Store(result.Tick)
	r.mu.Lock()
	r.lastSnapshot = result.Snapshot
	r.mu.Unlock()

	r.telemetry.RecordTickDuration(result.Duration)
	size, oldest, newest := r.loop.KeyframeWindow()
	r.telemetry.RecordKeyframeJournal(size, oldest, newest)

	if result.Budget > 0 && result.Duration > result.Budget {
		logsimulation.TickBudgetOverrun(context.Background(), r.publisher, result.Tick,
			logsimulation.TickBudgetOverrunPayload{
				DurationMillis: result.Duration.Milliseconds(),
				BudgetMillis:   result.Budget.Milliseconds(),
				Ratio:          float64(result.Duration) / float64(result.Budget),
			}, nil)
	}

	r.sendCommandResults(result)
	r.broadcastState(result, newest)
	r.sweepHeartbeats(result.Now)
}

func (r *Room) sendCommandResults(result sim.LoopStepResult) {
	for _, cmdResult := range result.Results {
		if cmdResult.Seq == 0 || cmdResult.Type == sim.CommandHeartbeat {
			continue
		}
		var data []byte
		var err error
		if cmdResult.Err.OK() {
			data, err = proto.EncodeCommandAck(proto.CommandAck{Seq: cmdResult.Seq, Tick: result.Tick})
		} else {
			reject := proto.CommandReject{
				Seq:    cmdResult.Seq,
				Reason: cmdResult.Error,
				Tick:   result.Tick,
				Retry:  cmdResult.Err.IsNotFound(),
			}
			if cmdResult.Effect != nil {
				reject.PlacementID = cmdResult.Effect.PlacementID
			}
			data, err = proto.EncodeCommandReject(reject)
		}
		if err != nil {
			r.logger.Printf("failed to marshal command result for %s: %v", cmdResult.PlayerID, err)
			continue
		}
		r.sendTo(cmdResult.PlayerID, data)
	}
}

func (r *Room) broadcastState(result sim.LoopStepResult, keyframeSeq uint64) {
	patches := result.Patches
	if patches == nil {
		patches = []sim.Patch{}
	}
	data, err := proto.EncodeStateMessage(proto.StateMessage{
		Tick:        result.Tick,
		SimTime:     result.Snapshot.SimTime,
		Round:       result.Snapshot.Round,
		Players:     result.Snapshot.Players,
		Patches:     patches,
		Events:      result.Events,
		KeyframeSeq: keyframeSeq,
		ServerTime:  time.Now().UnixMilli(),
	})
	if err != nil {
		r.logger.Printf("failed to marshal state message: %v", err)
		return
	}

	r.mu.Lock()
	subs := make(map[string]*Subscriber, len(r.subscribers))
	for id, sub := range r.subscribers {
		subs[id] = sub
	}
	r.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			r.logger.Printf("failed to send update to %s: %v", id, err)
			r.Disconnect(id)
			continue
		}
		r.telemetry.RecordBroadcast(len(data), len(result.Snapshot.Units))
	}
}

// sendTo writes one frame to a single player's subscriber, if connected.
func (r *Room) sendTo(playerID string, data []byte) {
	r.mu.Lock()
	sub, ok := r.subscribers[playerID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		r.Disconnect(playerID)
	}
}

// sweepHeartbeats disconnects seats that went silent past the timeout.
func (r *Room) sweepHeartbeats(now time.Time) {
	r.mu.Lock()
	var stale []string
	var silences []time.Duration
	for id, state := range r.seats {
		if silence := now.Sub(state.lastHeartbeat); silence > r.opts.DisconnectAfter {
			stale = append(stale, id)
			silences = append(silences, silence)
		}
	}
	r.mu.Unlock()

	for i, id := range stale {
		lognetwork.HeartbeatTimeout(context.Background(), r.publisher, r.lastTick.Load(),
			logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer},
			lognetwork.HeartbeatTimeoutPayload{SilentMillis: silences[i].Milliseconds()}, nil)
		r.Disconnect(id)
	}
}

// Shutdown closes every remaining connection after the loop has stopped.
func (r *Room) Shutdown() {
	r.mu.Lock()
	subs := r.subscribers
	r.subscribers = make(map[string]*Subscriber)
	r.seats = make(map[string]*seat)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.conn.Close()
	}
}

// DiagnosticsSnapshot exposes per-seat heartbeat data.
func (r *Room) DiagnosticsSnapshot() []diagnosticsPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()
	players := make([]diagnosticsPlayer, 0, len(r.seats))
	for _, state := range r.seats {
		players = append(players, diagnosticsPlayer{
			ID:            state.id,
			Team:          int(state.team),
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
			LastAck:       state.lastAck,
		})
	}
	return players
}
