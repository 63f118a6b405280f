package sim

import (
	"log"
	"math/rand"

	"redoubt/server/internal/telemetry"
	"redoubt/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation
// engine. Zero values are usable: normalized fills no-op implementations so
// a bare Core in a test never nil-checks its way around logging.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	RNG       *rand.Rand
	Publisher logging.Publisher
}

func (d Deps) normalized() Deps {
	normalized := d
	if normalized.Logger == nil {
		normalized.Logger = telemetry.WrapLogger(log.Default())
	}
	if normalized.Metrics == nil {
		normalized.Metrics = telemetry.NopMetrics()
	}
	if normalized.Clock == nil {
		normalized.Clock = logging.SystemClock{}
	}
	if normalized.Publisher == nil {
		normalized.Publisher = logging.NopPublisher()
	}
	return normalized
}
