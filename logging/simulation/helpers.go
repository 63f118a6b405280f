package simulation

import (
	"context"

	"redoubt/server/logging"
)

// EventTickBudgetOverrun is emitted when a room's loop iteration runs past
// the per-tick budget derived from the tick rate.
const EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"

// TickBudgetOverrunPayload captures how far a tick ran over.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
}

// TickBudgetOverrun publishes a warning for a tick that blew its budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	})
}
