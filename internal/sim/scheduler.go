package sim

import (
	"container/heap"

	"redoubt/server/internal/ecs"
)

// Token identifies a pending scheduled action for cancellation.
type Token uint64

type scheduledAction struct {
	token     Token
	triggerAt float64
	seq       uint64
	owner     ecs.EntityID
	fn        func()
	cancelled bool
	heapIndex int
}

type actionHeap []*scheduledAction

func (h actionHeap) Len() int { return len(h) }

func (h actionHeap) Less(i, j int) bool {
	if h[i].triggerAt != h[j].triggerAt {
		return h[i].triggerAt < h[j].triggerAt
	}
	// Equal trigger times break on insertion sequence, never on entity id or
	// randomness, so execution order is reproducible.
	return h[i].seq < h[j].seq
}

func (h actionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *actionHeap) Push(x any) {
	action := x.(*scheduledAction)
	action.heapIndex = len(*h)
	*h = append(*h, action)
}

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	action := old[n-1]
	old[n-1] = nil
	action.heapIndex = -1
	*h = old[:n-1]
	return action
}

// Scheduler is the deterministic delayed-action queue. It advances only with
// the simulation clock handed to Advance; it never reads wall-clock time.
type Scheduler struct {
	queue     actionHeap
	byToken   map[Token]*scheduledAction
	nextToken Token
	nextSeq   uint64
	now       float64
	alive     func(ecs.EntityID) bool
}

// NewScheduler builds a scheduler. The alive callback reports whether an
// owner entity still exists; actions whose owner died are skipped at fire
// time rather than removed eagerly.
func NewScheduler(alive func(ecs.EntityID) bool) *Scheduler {
	if alive == nil {
		alive = func(ecs.EntityID) bool { return true }
	}
	return &Scheduler{
		queue:   make(actionHeap, 0, 64),
		byToken: make(map[Token]*scheduledAction, 64),
		alive:   alive,
	}
}

// Schedule queues fn to run delaySeconds after the current simulation time.
// A non-zero owner ties the action's fate to that entity: if the owner is
// destroyed before the trigger time, the action is silently dropped.
func (s *Scheduler) Schedule(fn func(), delaySeconds float64, owner ecs.EntityID) Token {
	if fn == nil {
		return 0
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	s.nextToken++
	s.nextSeq++
	action := &scheduledAction{
		token:     s.nextToken,
		triggerAt: s.now + delaySeconds,
		seq:       s.nextSeq,
		owner:     owner,
		fn:        fn,
	}
	heap.Push(&s.queue, action)
	s.byToken[action.token] = action
	return action.token
}

// Cancel removes a pending action, reporting whether it was still queued.
func (s *Scheduler) Cancel(token Token) bool {
	action, ok := s.byToken[token]
	if !ok || action.cancelled {
		return false
	}
	action.cancelled = true
	delete(s.byToken, token)
	return true
}

// Pending reports the number of live queued actions.
func (s *Scheduler) Pending() int {
	return len(s.byToken)
}

// Advance moves the scheduler clock to the given simulation time and runs
// every due action in ascending (triggerTime, insertionSequence) order.
// Callbacks may schedule further actions; ones due at or before the target
// time run within the same call, after everything already due.
func (s *Scheduler) Advance(to float64) {
	if to < s.now {
		return
	}
	s.now = to
	for len(s.queue) > 0 && s.queue[0].triggerAt <= to {
		action := heap.Pop(&s.queue).(*scheduledAction)
		if action.cancelled {
			continue
		}
		delete(s.byToken, action.token)
		if !action.owner.IsZero() && !s.alive(action.owner) {
			// SchedulerSkip: the owner died first. Expected in normal play
			// (delayed effects after the caster's death), so not logged.
			continue
		}
		action.fn()
	}
}

// Now returns the scheduler's current simulation time.
func (s *Scheduler) Now() float64 { return s.now }

// reset drops every pending action. Used when a round ends and transient
// battle effects must not leak into the next placement phase.
func (s *Scheduler) reset() {
	s.queue = s.queue[:0]
	for token := range s.byToken {
		delete(s.byToken, token)
	}
}
