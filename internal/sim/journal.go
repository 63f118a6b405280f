package sim

import (
	"sync"
	"time"
)

const (
	keyframeEvictCapacity = "capacity"
	keyframeEvictExpired  = "expired"
)

// Journal accumulates patches generated during a tick and keeps a rolling
// buffer of recent keyframes for diff recovery. Patch production happens on
// the simulation goroutine; keyframe reads come from transport handlers, so
// the keyframe side is locked.
type Journal struct {
	patches []Patch

	mu        sync.RWMutex
	keyframes []Keyframe
	nextSeq   uint64
	maxFrames int
	maxAge    time.Duration
}

// NewJournal constructs a journal retaining up to keyframeCapacity frames no
// older than maxAge.
func NewJournal(keyframeCapacity int, maxAge time.Duration) *Journal {
	if keyframeCapacity <= 0 {
		keyframeCapacity = 8
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		patches:   make([]Patch, 0, 64),
		keyframes: make([]Keyframe, 0, keyframeCapacity),
		maxFrames: keyframeCapacity,
		maxAge:    maxAge,
	}
}

// AppendPatch records a diff entry for the current tick.
func (j *Journal) AppendPatch(patch Patch) {
	j.patches = append(j.patches, patch)
}

// DrainPatches returns the accumulated patches and clears the buffer.
func (j *Journal) DrainPatches() []Patch {
	if len(j.patches) == 0 {
		return nil
	}
	drained := make([]Patch, len(j.patches))
	copy(drained, j.patches)
	j.patches = j.patches[:0]
	return drained
}

// SnapshotPatches copies the accumulated patches without clearing them.
func (j *Journal) SnapshotPatches() []Patch {
	if len(j.patches) == 0 {
		return nil
	}
	copied := make([]Patch, len(j.patches))
	copy(copied, j.patches)
	return copied
}

// RestorePatches prepends previously drained patches, used when a broadcast
// fails mid-flight and the diff must survive for the next attempt.
func (j *Journal) RestorePatches(patches []Patch) {
	if len(patches) == 0 {
		return
	}
	restored := make([]Patch, 0, len(patches)+len(j.patches))
	restored = append(restored, patches...)
	restored = append(restored, j.patches...)
	j.patches = restored
}

// RecordKeyframe stores a frame, assigning its sequence and evicting frames
// beyond the capacity or age limits.
func (j *Journal) RecordKeyframe(frame Keyframe) (Keyframe, KeyframeRecordResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.nextSeq++
	frame.Sequence = j.nextSeq
	j.keyframes = append(j.keyframes, frame)

	var evicted []KeyframeEviction
	for len(j.keyframes) > j.maxFrames {
		old := j.keyframes[0]
		j.keyframes = j.keyframes[1:]
		evicted = append(evicted, KeyframeEviction{Sequence: old.Sequence, Tick: old.Tick, Reason: keyframeEvictCapacity})
	}
	if j.maxAge > 0 && !frame.RecordedAt.IsZero() {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		for len(j.keyframes) > 1 && !j.keyframes[0].RecordedAt.IsZero() && j.keyframes[0].RecordedAt.Before(cutoff) {
			old := j.keyframes[0]
			j.keyframes = j.keyframes[1:]
			evicted = append(evicted, KeyframeEviction{Sequence: old.Sequence, Tick: old.Tick, Reason: keyframeEvictExpired})
		}
	}

	result := KeyframeRecordResult{
		Size:    len(j.keyframes),
		Evicted: evicted,
	}
	if len(j.keyframes) > 0 {
		result.OldestSequence = j.keyframes[0].Sequence
		result.NewestSequence = j.keyframes[len(j.keyframes)-1].Sequence
	}
	return frame, result
}

// KeyframeBySequence returns the stored frame with the given sequence.
func (j *Journal) KeyframeBySequence(sequence uint64) (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for i := len(j.keyframes) - 1; i >= 0; i-- {
		if j.keyframes[i].Sequence == sequence {
			return j.keyframes[i], true
		}
	}
	return Keyframe{}, false
}

// Latest returns the newest stored keyframe.
func (j *Journal) Latest() (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return Keyframe{}, false
	}
	return j.keyframes[len(j.keyframes)-1], true
}

// KeyframeWindow reports the buffer occupancy and sequence bounds.
func (j *Journal) KeyframeWindow() (int, uint64, uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return 0, 0, 0
	}
	return len(j.keyframes), j.keyframes[0].Sequence, j.keyframes[len(j.keyframes)-1].Sequence
}
