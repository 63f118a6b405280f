package commands

import (
	"context"

	"redoubt/server/logging"
)

const (
	// EventAccepted is emitted when a command passes validation and applies.
	EventAccepted logging.EventType = "command.accepted"
	// EventRejected is emitted when a command fails validation.
	EventRejected logging.EventType = "command.rejected"
	// EventDropped is emitted when throttling discards a command before it
	// reaches the pipeline.
	EventDropped logging.EventType = "command.dropped"
)

// AcceptedPayload records the applied command and what it produced.
type AcceptedPayload struct {
	CommandType string `json:"commandType"`
	Seq         uint64 `json:"seq"`
	PlacementID string `json:"placementId,omitempty"`
}

// RejectedPayload records a validation failure.
type RejectedPayload struct {
	CommandType string `json:"commandType"`
	Seq         uint64 `json:"seq"`
	Reason      string `json:"reason"`
}

// DroppedPayload records a throttling drop.
type DroppedPayload struct {
	CommandType string `json:"commandType"`
	Reason      string `json:"reason"`
	QueueLen    int    `json:"queueLen,omitempty"`
}

// Accepted publishes a command acceptance event.
func Accepted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AcceptedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAccepted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}

// Rejected publishes a command rejection event.
func Rejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}

// Dropped publishes a throttling drop event.
func Dropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	})
}
