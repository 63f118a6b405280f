package sim

// Engine defines the surface area exposed to non-simulation callers.
type Engine interface {
	Apply([]Command) error
	Step()
	Snapshot() Snapshot
	DrainPatches() []Patch
	DrainEvents() []Event
	DrainResults() []CommandResult
	RecordKeyframe() (Keyframe, KeyframeRecordResult)
	KeyframeBySequence(uint64) (Keyframe, bool)
	KeyframeWindow() (int, uint64, uint64)
}

// EngineCore is the stepping state machine wrapped by the Loop. *Core is the
// only production implementation; tests substitute recording fakes.
type EngineCore interface {
	Engine
	Deps() Deps
	RemovedPlayers() []string
}

var _ EngineCore = (*Core)(nil)
