package rounds

import (
	"context"

	"redoubt/server/logging"
)

const (
	// EventBattleStarted is emitted when the placement phase closes.
	EventBattleStarted logging.EventType = "round.battle_started"
	// EventRoundEnded is emitted when a battle resolves.
	EventRoundEnded logging.EventType = "round.ended"
	// EventPlacementOpened is emitted when the next placement phase opens.
	EventPlacementOpened logging.EventType = "round.placement_opened"
)

// BattleStartedPayload records what triggered the transition.
type BattleStartedPayload struct {
	Round   int    `json:"round"`
	Trigger string `json:"trigger"`
}

// RoundEndedPayload records the battle outcome.
type RoundEndedPayload struct {
	Round     int  `json:"round"`
	Winner    int  `json:"winner"`
	HasWinner bool `json:"hasWinner"`
}

// PlacementOpenedPayload records the new round number.
type PlacementOpenedPayload struct {
	Round int `json:"round"`
}

// BattleStarted publishes a phase transition into battle.
func BattleStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload BattleStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBattleStarted,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "round", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}

// RoundEnded publishes the battle outcome.
func RoundEnded(ctx context.Context, pub logging.Publisher, tick uint64, payload RoundEndedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRoundEnded,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "round", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlacementOpened publishes the start of the next placement phase.
func PlacementOpened(ctx context.Context, pub logging.Publisher, tick uint64, payload PlacementOpenedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlacementOpened,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "round", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}
