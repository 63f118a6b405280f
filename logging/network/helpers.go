package network

import (
	"context"

	"redoubt/server/logging"
)

const (
	// EventResyncRequested is emitted when a client asks for a keyframe.
	EventResyncRequested logging.EventType = "network.resync_requested"
	// EventDesyncDetected is emitted when a client's state hash diverges
	// from the authoritative stream.
	EventDesyncDetected logging.EventType = "network.desync_detected"
	// EventHeartbeatTimeout is emitted when a session misses its heartbeat
	// window and is considered stale.
	EventHeartbeatTimeout logging.EventType = "network.heartbeat_timeout"
)

// ResyncPayload records why a resync was issued.
type ResyncPayload struct {
	Reason   string `json:"reason"`
	Sequence uint64 `json:"sequence,omitempty"`
}

// DesyncPayload records the first divergent frame between two hash streams.
type DesyncPayload struct {
	Tick       uint64  `json:"tick"`
	SimTime    float64 `json:"simTime"`
	LocalHash  uint64  `json:"localHash"`
	RemoteHash uint64  `json:"remoteHash"`
}

// HeartbeatTimeoutPayload records the silence that triggered the timeout.
type HeartbeatTimeoutPayload struct {
	SilentMillis int64 `json:"silentMillis"`
}

// ResyncRequested publishes a resync event.
func ResyncRequested(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ResyncPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventResyncRequested,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// DesyncDetected publishes a divergence warning.
func DesyncDetected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DesyncPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDesyncDetected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}

// HeartbeatTimeout publishes a stale-session event.
func HeartbeatTimeout(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload HeartbeatTimeoutPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHeartbeatTimeout,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
