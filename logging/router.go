package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Telemetry keys the router maintains. Per-sink counters append the sink
// name, e.g. logging.sink_drops.console.
const (
	MetricEventsPublished = "logging.events_published"
	MetricEventsDropped   = "logging.events_dropped"
	metricSinkWritePrefix = "logging.sink_writes."
	metricSinkDropPrefix  = "logging.sink_drops."
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink consumes routed events. Write runs on the sink's own goroutine; a
// returned error puts the sink into retry backoff without touching the
// others.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans match events out to the attached sinks. Rooms publish from
// their loop goroutine, so Publish never blocks: when the inbox is full the
// event is dropped and accounted rather than stalling a simulation tick.
type Router struct {
	cfg         Config
	inbox       chan Event
	lanes       []*sinkLane
	clock       Clock
	metrics     *Metrics
	fallback    *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
	minSeverity Severity
	fields      map[string]any
	wg          sync.WaitGroup
	startOnce   sync.Once

	published   atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

// RouterStats is a point-in-time read of the router's accounting.
type RouterStats struct {
	Published uint64
	Dropped   uint64
	SinkDrops map[string]uint64
}

// NewRouter wires the enabled sinks behind a shared inbox. Sinks absent from
// cfg.EnabledSinks are discarded; an empty EnabledSinks list attaches
// everything, which is what tests with a single memory sink want. The
// metrics registry is optional.
func NewRouter(clock Clock, cfg Config, metrics *Metrics, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	cfg = cfg.normalized()

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:         cfg,
		inbox:       make(chan Event, cfg.BufferSize),
		clock:       clock,
		metrics:     metrics,
		fallback:    log.New(os.Stderr, "[events] ", log.LstdFlags),
		ctx:         ctx,
		cancel:      cancel,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
	}

	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		if len(cfg.EnabledSinks) > 0 && !cfg.HasSink(named.Name) {
			continue
		}
		r.lanes = append(r.lanes, newSinkLane(named.Name, named.Sink, cfg.laneBuffer(), r.fallback, metrics))
	}

	r.start()
	return r, nil
}

func (r *Router) start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer func() {
				for _, lane := range r.lanes {
					close(lane.backlog)
				}
				r.wg.Done()
			}()
			for {
				select {
				case <-r.ctx.Done():
					r.drain()
					return
				case event := <-r.inbox:
					r.dispatch(event)
				}
			}
		}()

		for _, lane := range r.lanes {
			r.wg.Add(1)
			go func(l *sinkLane) {
				defer r.wg.Done()
				l.run()
			}(lane)
		}
	})
}

// drain empties the inbox on shutdown so events published before Close still
// reach the sinks.
func (r *Router) drain() {
	for {
		select {
		case event := <-r.inbox:
			r.dispatch(event)
		default:
			return
		}
	}
}

func (r *Router) dispatch(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	r.published.Add(1)
	r.metrics.TelemetryAdd(MetricEventsPublished, 1)
	for _, lane := range r.lanes {
		lane.enqueue(event)
	}
}

// Publish satisfies Publisher. Events below the severity floor are discarded
// here, before they cost a slot in the inbox.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || event.Severity < r.minSeverity {
		return
	}
	if r.closed.Load() {
		return
	}
	select {
	case r.inbox <- event:
	default:
		r.recordDrop(event)
	}
}

// recordDrop accounts an inbox overflow. The fallback line is paced on the
// router clock so a drop storm during a long battle tick does not turn into
// a log storm of its own.
func (r *Router) recordDrop(event Event) {
	r.dropped.Add(1)
	r.metrics.TelemetryAdd(MetricEventsDropped, 1)
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if next == 0 || now >= next {
		if r.nextDropLog.CompareAndSwap(next, now+r.cfg.DropWarnInterval.Nanoseconds()) {
			r.fallback.Printf("inbox full, dropping type=%s category=%s actor=%s tick=%d",
				event.Type, event.Category, event.Actor.ID, event.Tick)
		}
	}
}

// Close stops intake, drains the inbox, waits for every lane to finish, then
// closes the sinks. A second Close blocks until ctx expires.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, lane := range r.lanes {
		if err := lane.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		Published: r.published.Load(),
		Dropped:   r.dropped.Load(),
	}
	if len(r.lanes) > 0 {
		stats.SinkDrops = make(map[string]uint64, len(r.lanes))
		for _, lane := range r.lanes {
			stats.SinkDrops[lane.name] = lane.drops.Load()
		}
	}
	return stats
}

// Sink looks up an attached sink by name; tests use it to reach the memory
// sink behind a running router.
func (r *Router) Sink(name string) Sink {
	for _, lane := range r.lanes {
		if lane.name == name {
			return lane.sink
		}
	}
	return nil
}

// sinkLane decouples one sink from the others: a sink that blocks or fails
// backs up its own lane only, and overflow there is counted per sink.
type sinkLane struct {
	name     string
	sink     Sink
	backlog  chan Event
	fallback *log.Logger
	metrics  *Metrics
	drops    atomic.Uint64
	failures int
	retryAt  time.Time
}

func newSinkLane(name string, sink Sink, buffer int, fallback *log.Logger, metrics *Metrics) *sinkLane {
	return &sinkLane{
		name:     name,
		sink:     sink,
		backlog:  make(chan Event, buffer),
		fallback: fallback,
		metrics:  metrics,
	}
}

func (l *sinkLane) enqueue(event Event) {
	cloned := cloneForFields(event)
	select {
	case l.backlog <- cloned:
	default:
		l.drops.Add(1)
		l.metrics.TelemetryAdd(metricSinkDropPrefix+l.name, 1)
		l.fallback.Printf("sink %s backlog full, dropping type=%s tick=%d", l.name, event.Type, event.Tick)
	}
}

func (l *sinkLane) run() {
	for event := range l.backlog {
		l.awaitRetry()
		if err := l.sink.Write(event); err != nil {
			l.recordFailure(err)
			continue
		}
		l.failures = 0
		l.retryAt = time.Time{}
		l.metrics.TelemetryAdd(metricSinkWritePrefix+l.name, 1)
	}
}

func (l *sinkLane) awaitRetry() {
	if l.failures == 0 || l.retryAt.IsZero() {
		return
	}
	if wait := time.Until(l.retryAt); wait > 0 {
		time.Sleep(wait)
	}
}

// recordFailure backs the lane off exponentially, capped at 32 seconds.
func (l *sinkLane) recordFailure(err error) {
	l.failures++
	delay := time.Duration(1<<min(l.failures, 5)) * time.Second
	l.retryAt = time.Now().Add(delay)
	l.fallback.Printf("sink %s write failed: %v (retry in %s)", l.name, err, delay)
}
