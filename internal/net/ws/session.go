package ws

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"redoubt/server"
	"redoubt/server/internal/net/intake"
	"redoubt/server/internal/net/proto"
	"redoubt/server/internal/sim"
)

// session runs the read loop for one player connection. Commands go through
// the intake stager into the room's tick queue; everything else (heartbeats,
// keyframe requests, desync reports) is answered from here.
type session struct {
	room     *server.Room
	playerID string
	logger   *log.Logger
	sub      *server.Subscriber
}

func newSession(room *server.Room, playerID string, logger *log.Logger) *session {
	return &session{room: room, playerID: playerID, logger: logger}
}

func (s *session) serve(conn *websocket.Conn) {
	sub, ok := s.room.Subscribe(s.playerID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	s.sub = sub

	initial, err := s.room.MarshalInitialState()
	if err != nil {
		s.logger.Printf("failed to marshal initial state for %s: %v", s.playerID, err)
		s.room.Disconnect(s.playerID)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, initial); err != nil {
		s.room.Disconnect(s.playerID)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.room.Disconnect(s.playerID)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			s.logger.Printf("discarding malformed message from %s: %v", s.playerID, err)
			continue
		}

		if msg.Ack != nil {
			s.room.RecordAck(s.playerID, *msg.Ack)
		}

		switch msg.Type {
		case proto.TypeHeartbeat:
			if !s.handleHeartbeat(msg) {
				return
			}
		case proto.TypeKeyframeRequest:
			if !s.handleKeyframeRequest(msg) {
				return
			}
		case proto.TypeDesyncReport:
			s.room.HandleDesyncReport(s.playerID, proto.DetectorFrames(msg.Frames))
		default:
			if !s.handleCommand(msg) {
				return
			}
		}
	}
}

// handleCommand stages a simulation command and answers enqueue-time
// rejects. Tick-time acks and rejects arrive later through the room
// broadcast path once the command has been validated on the tick.
func (s *session) handleCommand(msg proto.ClientMessage) bool {
	seq := uint64(0)
	if msg.Seq != nil {
		seq = *msg.Seq
	}

	// Duplicate delivery of an already staged command gets its ack replayed.
	if seq > 0 {
		if last := s.sub.LastCommandSeq(); last > 0 && seq <= last {
			return s.writeDuplicateAck(seq)
		}
	}

	ctx := intake.CommandContext{
		Engine:    s.room.Loop(),
		HasPlayer: s.room.HasPlayer,
		Tick:      s.room.Tick,
		Now:       time.Now,
	}
	_, ok, reason := intake.StageClientCommand(ctx, s.playerID, seq, msg)
	if ok {
		if seq > 0 {
			s.sub.StoreLastCommandSeq(seq)
		}
		return true
	}

	if reason == intake.RejectUnknownPlayer {
		s.logger.Printf("command ignored for unknown player %s", s.playerID)
	}
	if seq == 0 {
		return true
	}
	data, err := proto.EncodeCommandReject(proto.CommandReject{
		Seq:    seq,
		Reason: reason,
		Retry:  reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull,
	})
	if err != nil {
		s.logger.Printf("failed to marshal reject for %s: %v", s.playerID, err)
		return true
	}
	return s.write(data)
}

func (s *session) writeDuplicateAck(seq uint64) bool {
	data, err := proto.EncodeCommandAck(proto.CommandAck{Seq: seq})
	if err != nil {
		return true
	}
	return s.write(data)
}

func (s *session) handleHeartbeat(msg proto.ClientMessage) bool {
	now := time.Now()
	rtt, ok := s.room.UpdateHeartbeat(s.playerID, now, msg.SentAt)
	if !ok {
		return true
	}
	data, err := proto.EncodeHeartbeat(proto.Heartbeat{
		ServerTime: now.UnixMilli(),
		ClientTime: msg.SentAt,
		RTTMillis:  rtt.Milliseconds(),
	})
	if err != nil {
		s.logger.Printf("failed to marshal heartbeat ack for %s: %v", s.playerID, err)
		return true
	}
	return s.write(data)
}

func (s *session) handleKeyframeRequest(msg proto.ClientMessage) bool {
	if msg.KeyframeSeq == nil {
		return true
	}
	data, err := s.room.HandleKeyframeRequest(s.playerID, *msg.KeyframeSeq)
	if err != nil {
		s.logger.Printf("failed to marshal keyframe for %s: %v", s.playerID, err)
		return true
	}
	return s.write(data)
}

// write sends one frame; a failed write tears the session down.
func (s *session) write(data []byte) bool {
	if err := s.sub.WriteMessage(websocket.TextMessage, data); err != nil {
		s.room.Disconnect(s.playerID)
		return false
	}
	return true
}
