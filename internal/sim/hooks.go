package sim

import "time"

// LoopTickContext carries the wall-clock bookkeeping for one tick.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult reports everything one tick produced, handed to the
// AfterStep hook for broadcast and telemetry fan-out.
type LoopStepResult struct {
	Tick           uint64
	Now            time.Time
	Delta          float64
	Duration       time.Duration
	Budget         time.Duration
	ClampedDelta   bool
	MaxDelta       float64
	Snapshot       Snapshot
	Commands       []Command
	Results        []CommandResult
	Events         []Event
	Patches        []Patch
	RemovedPlayers []string
}

// LoopHooks let the owner observe and steer the tick loop without the loop
// knowing anything about transports.
type LoopHooks struct {
	// NextTick supplies the tick number for the upcoming step. Optional; the
	// loop counts locally when unset.
	NextTick func() uint64
	// Prepare runs before commands are applied for the tick.
	Prepare func(LoopTickContext)
	// AfterStep runs after the step completes with the full result.
	AfterStep func(LoopStepResult)
	// OnCommandDrop fires when a staged command is rejected by throttling.
	OnCommandDrop func(reason string, cmd Command)
	// OnQueueWarning fires when queue occupancy crosses the warning step.
	OnQueueWarning func(length int)
}
