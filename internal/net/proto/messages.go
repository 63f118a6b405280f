// Package proto defines the JSON wire protocol spoken over the websocket.
// Every frame carries a ver field; the decoder rejects versions it does not
// understand so stale clients fail loudly at the first message.
package proto

import (
	"encoding/json"
	"fmt"

	"redoubt/server/internal/content"
	"redoubt/server/internal/desync"
	"redoubt/server/internal/sim"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypePlacement       = "placement"
	TypeSquadTarget     = "squadTarget"
	TypeSquadTargets    = "squadTargets"
	TypeReady           = "ready"
	TypeUpgrade         = "upgrade"
	TypeCancel          = "cancel"
	TypeHeartbeat       = "heartbeat"
	TypeKeyframeRequest = "keyframeRequest"
	TypeDesyncReport    = "desyncReport"
)

// Server message type identifiers.
const (
	TypeCommandAck    = "commandAck"
	TypeCommandReject = "commandReject"
	TypeState         = "state"
	TypeKeyframe      = "keyframe"
	TypeKeyframeNack  = "keyframeNack"
	TypeDesyncAck     = "desyncAck"
)

// TargetPayload is one squad order inside a squadTarget(s) message.
type TargetPayload struct {
	PlacementID string  `json:"placementId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z,omitempty"`
	Aggressive  bool    `json:"aggressive,omitempty"`
	Spread      float64 `json:"spread,omitempty"`
}

// HashFramePayload mirrors one desync detector frame on the wire.
type HashFramePayload struct {
	Tick        uint64  `json:"t"`
	SimTime     float64 `json:"simTime"`
	Hash        uint64  `json:"hash,string"`
	EntityCount int     `json:"entityCount"`
}

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver         int                `json:"ver,omitempty"`
	Type        string             `json:"type"`
	Seq         *uint64            `json:"seq,omitempty"`
	Ack         *uint64            `json:"ack,omitempty"`
	UnitType    int                `json:"unitType,omitempty"`
	OriginCol   int                `json:"col"`
	OriginRow   int                `json:"row"`
	Target      *TargetPayload     `json:"target,omitempty"`
	Targets     []TargetPayload    `json:"targets,omitempty"`
	Ready       bool               `json:"ready,omitempty"`
	Upgrade     int                `json:"upgrade,omitempty"`
	PlacementID string             `json:"placementId,omitempty"`
	SentAt      int64              `json:"sentAt,omitempty"`
	KeyframeSeq *uint64            `json:"keyframeSeq,omitempty"`
	Frames      []HashFramePayload `json:"frames,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ClientCommand maps a decoded message onto the structured simulation
// command it carries. Returns false for message types that are transport
// concerns rather than commands.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypePlacement:
		return sim.Command{
			Type: sim.CommandSubmitPlacement,
			Placement: &sim.PlacementCommand{
				UnitType:  content.UnitTypeID(msg.UnitType),
				OriginCol: msg.OriginCol,
				OriginRow: msg.OriginRow,
			},
		}, true
	case TypeSquadTarget:
		if msg.Target == nil {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:   sim.CommandSetSquadTarget,
			Target: targetCommand(*msg.Target),
		}, true
	case TypeSquadTargets:
		if len(msg.Targets) == 0 {
			return sim.Command{}, false
		}
		targets := make([]sim.SquadTargetCommand, 0, len(msg.Targets))
		for _, payload := range msg.Targets {
			targets = append(targets, *targetCommand(payload))
		}
		return sim.Command{
			Type:    sim.CommandSetSquadTargets,
			Targets: targets,
		}, true
	case TypeReady:
		return sim.Command{
			Type:  sim.CommandReadyForBattle,
			Ready: &sim.ReadyCommand{Ready: msg.Ready},
		}, true
	case TypeUpgrade:
		return sim.Command{
			Type:    sim.CommandPurchaseUpgrade,
			Upgrade: &sim.UpgradeCommand{Upgrade: content.UpgradeID(msg.Upgrade)},
		}, true
	case TypeCancel:
		if msg.PlacementID == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:   sim.CommandCancelBuilding,
			Cancel: &sim.CancelBuildingCommand{PlacementID: msg.PlacementID},
		}, true
	default:
		return sim.Command{}, false
	}
}

func targetCommand(payload TargetPayload) *sim.SquadTargetCommand {
	return &sim.SquadTargetCommand{
		PlacementID: payload.PlacementID,
		Target:      sim.Vec3{X: payload.X, Y: payload.Y, Z: payload.Z},
		Aggressive:  payload.Aggressive,
		Spread:      payload.Spread,
	}
}

// DetectorFrames converts reported hash frames into detector frames.
func DetectorFrames(payloads []HashFramePayload) []desync.Frame {
	frames := make([]desync.Frame, 0, len(payloads))
	for _, payload := range payloads {
		frames = append(frames, desync.Frame{
			Tick:        payload.Tick,
			SimTime:     payload.SimTime,
			Hash:        payload.Hash,
			EntityCount: payload.EntityCount,
		})
	}
	return frames
}

// CommandAck describes an acknowledgement of a processed command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: TypeCommandAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq         uint64
	Reason      string
	Retry       bool
	Tick        uint64
	PlacementID string
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver         int    `json:"ver"`
		Type        string `json:"type"`
		Seq         uint64 `json:"seq"`
		Reason      string `json:"reason"`
		Retry       bool   `json:"retry,omitempty"`
		Tick        uint64 `json:"tick,omitempty"`
		PlacementID string `json:"placementId,omitempty"`
	}{
		Ver:         Version,
		Type:        TypeCommandReject,
		Seq:         msg.Seq,
		Reason:      msg.Reason,
		Retry:       msg.Retry,
		Tick:        msg.Tick,
		PlacementID: msg.PlacementID,
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       TypeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}

// StateMessage is the per-tick broadcast payload.
type StateMessage struct {
	Ver         int                  `json:"ver"`
	Type        string               `json:"type"`
	Tick        uint64               `json:"t"`
	SimTime     float64              `json:"simTime"`
	Round       sim.RoundSnapshot    `json:"round"`
	Players     []sim.PlayerSnapshot `json:"players,omitempty"`
	Patches     []sim.Patch          `json:"patches"`
	Events      []sim.Event          `json:"events,omitempty"`
	KeyframeSeq uint64               `json:"keyframeSeq"`
	ServerTime  int64                `json:"serverTime"`
	Resync      bool                 `json:"resync,omitempty"`
}

// EncodeStateMessage renders a state broadcast payload.
func EncodeStateMessage(msg StateMessage) ([]byte, error) {
	msg.Ver = Version
	if msg.Type == "" {
		msg.Type = TypeState
	}
	return json.Marshal(msg)
}

// KeyframeMessage carries a full authoritative snapshot for resync.
type KeyframeMessage struct {
	Ver         int            `json:"ver"`
	Type        string         `json:"type"`
	Sequence    uint64         `json:"sequence"`
	Tick        uint64         `json:"t"`
	Snapshot    sim.Snapshot   `json:"snapshot"`
	Config      sim.RoomConfig `json:"config"`
	CatalogHash string         `json:"catalogHash"`
}

// EncodeKeyframeMessage renders a keyframe payload.
func EncodeKeyframeMessage(msg KeyframeMessage) ([]byte, error) {
	msg.Ver = Version
	if msg.Type == "" {
		msg.Type = TypeKeyframe
	}
	return json.Marshal(msg)
}

// KeyframeNack tells the client a requested keyframe is gone.
type KeyframeNack struct {
	Sequence uint64
	Reason   string
	Resync   bool
}

// EncodeKeyframeNack renders a keyframe nack payload.
func EncodeKeyframeNack(msg KeyframeNack) ([]byte, error) {
	frame := struct {
		Ver      int    `json:"ver"`
		Type     string `json:"type"`
		Sequence uint64 `json:"sequence"`
		Reason   string `json:"reason"`
		Resync   bool   `json:"resync,omitempty"`
	}{
		Ver:      Version,
		Type:     TypeKeyframeNack,
		Sequence: msg.Sequence,
		Reason:   msg.Reason,
		Resync:   msg.Resync,
	}
	return json.Marshal(frame)
}

// DesyncAck reports the verdict on a client hash report.
type DesyncAck struct {
	Status      string
	SimTime     float64
	LocalCount  int
	RemoteCount int
	Resync      bool
}

// Desync ack status values.
const (
	DesyncStatusClean    = "clean"
	DesyncStatusDiverged = "diverged"
)

// EncodeDesyncAck renders a desync report acknowledgement.
func EncodeDesyncAck(msg DesyncAck) ([]byte, error) {
	frame := struct {
		Ver         int     `json:"ver"`
		Type        string  `json:"type"`
		Status      string  `json:"status"`
		SimTime     float64 `json:"simTime,omitempty"`
		LocalCount  int     `json:"localCount,omitempty"`
		RemoteCount int     `json:"remoteCount,omitempty"`
		Resync      bool    `json:"resync,omitempty"`
	}{
		Ver:         Version,
		Type:        TypeDesyncAck,
		Status:      msg.Status,
		SimTime:     msg.SimTime,
		LocalCount:  msg.LocalCount,
		RemoteCount: msg.RemoteCount,
		Resync:      msg.Resync,
	}
	return json.Marshal(frame)
}

// JoinResponse is the HTTP join payload handing the client its identity and
// everything needed to build a matching mirror core.
type JoinResponse struct {
	Ver         int            `json:"ver"`
	PlayerID    string         `json:"playerId"`
	RoomID      string         `json:"roomId"`
	Team        sim.TeamID     `json:"team"`
	Config      sim.RoomConfig `json:"config"`
	CatalogHash string         `json:"catalogHash"`
	Enums       content.Enums  `json:"enums"`
	Snapshot    sim.Snapshot   `json:"snapshot"`
	Resync      bool           `json:"resync"`
}

// EncodeJoinResponse renders the join payload.
func EncodeJoinResponse(msg JoinResponse) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}
