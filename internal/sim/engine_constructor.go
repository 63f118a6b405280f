package sim

import (
	"errors"

	"redoubt/server/internal/content"
)

var (
	// ErrMissingLibrary indicates NewEngine was invoked without content.
	ErrMissingLibrary = errors.New("sim: content library is nil")
	// ErrMissingEngineCore indicates the engine core could not be built.
	ErrMissingEngineCore = errors.New("sim: engine core is nil")
)

// EngineOption configures NewEngine behaviour. Options are applied in order;
// later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps       Deps
	roomConfig RoomConfig
	loopConfig LoopConfig
	loopHooks  LoopHooks
	core       EngineCore
	mirror     bool
}

// WithDeps injects shared infrastructure dependencies used by the engine
// core and loop orchestration.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithRoomConfig overrides the default room parameters.
func WithRoomConfig(config RoomConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.roomConfig = config
	})
}

// WithLoopConfig overrides the default command queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// WithCore substitutes the engine core, primarily for tests that need a
// recording fake behind the loop.
func WithCore(core EngineCore) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.core = core
	})
}

// AsMirror marks the engine as a non-authoritative prediction mirror.
func AsMirror() EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.mirror = true
	})
}

// DefaultLoopConfig returns the loop sizing used by production rooms.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        DefaultTickRate,
		CatchupMaxTicks: 4,
		CommandCapacity: 512,
		PerPlayerLimit:  32,
		WarningStep:     128,
		KeyframeTicks:   DefaultTickRate * 5,
	}
}

// NewEngine builds a Loop-wrapped simulation core for the provided content
// library.
func NewEngine(library *content.Library, opts ...EngineOption) (*Loop, error) {
	cfg := engineConfig{
		roomConfig: DefaultRoomConfig(),
		loopConfig: DefaultLoopConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}

	core := cfg.core
	if core == nil {
		if library == nil {
			return nil, ErrMissingLibrary
		}
		core = NewCore(cfg.roomConfig, library, cfg.deps, !cfg.mirror)
	}

	engine := NewLoop(core, cfg.loopConfig, cfg.loopHooks)
	if engine == nil {
		return nil, ErrMissingEngineCore
	}
	return engine, nil
}
