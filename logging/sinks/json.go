package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"redoubt/server/logging"
)

// JSON appends newline-delimited events, one JSON object per line, matching
// the wire shape of logging.Event. Writes are buffered and flushed either
// every MaxBatch events or on the flush interval, whichever comes first.
type JSON struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	encoder  *json.Encoder
	maxBatch int
	pending  int
	stop     chan struct{}
	stopOnce sync.Once
}

func NewJSON(w io.Writer, cfg logging.JSONConfig) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:   buf,
		encoder:  json.NewEncoder(buf),
		maxBatch: cfg.MaxBatch,
		stop:     make(chan struct{}),
	}
	if cfg.FlushInterval > 0 {
		go sink.flushLoop(cfg.FlushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(event); err != nil {
		return err
	}
	s.pending++
	if s.maxBatch <= 0 || s.pending >= s.maxBatch {
		s.pending = 0
		return s.writer.Flush()
	}
	return nil
}

// Close stops the flush loop and drains the buffer.
func (s *JSON) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = 0
	return s.writer.Flush()
}

func (s *JSON) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.pending = 0
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
