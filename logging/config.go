package logging

import "time"

// Config shapes the event router. BufferSize is the shared inbox sized
// against the room tick rate: at 20Hz a 512-slot inbox absorbs several
// seconds of full-room chatter before drops start. EnabledSinks gates which
// named sinks attach.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// JSONConfig tunes the newline-delimited event log file.
type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
	}
}

// normalized fills in the zero-value knobs so the router never divides by or
// allocates from a nonsense size.
func (c Config) normalized() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 512
	}
	if c.DropWarnInterval <= 0 {
		c.DropWarnInterval = 5 * time.Second
	}
	return c
}

// laneBuffer sizes each sink's private backlog from the inbox size, clamped
// so one misconfigured room cannot allocate unbounded channels per sink.
func (c Config) laneBuffer() int {
	buffer := c.BufferSize
	if buffer > 1024 {
		buffer = 1024
	}
	if buffer < 32 {
		buffer = 32
	}
	return buffer
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
