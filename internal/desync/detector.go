// Package desync computes periodic structural hashes of simulation state so
// an authoritative core and a predicting mirror can detect divergence early,
// instead of discovering it when a correction snaps units across the board.
package desync

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// positionScale quantises float fields before hashing. Two cores that agree
// to within a millimetre of world space hash identically; anything coarser is
// a real divergence, not float noise.
const positionScale = 1000.0

// EntitySample is the hashed view of one entity. Field order never matters:
// per-entity digests are combined commutatively, so the two cores may iterate
// their stores in different orders and still agree.
type EntitySample struct {
	ID      string
	Kind    string
	Team    int
	PosX    float64
	PosY    float64
	PosZ    float64
	Health  float64
	Target  string
	HasGoal bool
}

// Frame is one recorded hash sample.
type Frame struct {
	Tick        uint64  `json:"tick"`
	SimTime     float64 `json:"simTime"`
	Hash        uint64  `json:"hash"`
	EntityCount int     `json:"entityCount"`
}

// Divergence describes the first frame where two hash streams disagree.
type Divergence struct {
	Tick        uint64  `json:"tick"`
	SimTime     float64 `json:"simTime"`
	LocalHash   uint64  `json:"localHash"`
	RemoteHash  uint64  `json:"remoteHash"`
	LocalCount  int     `json:"localCount"`
	RemoteCount int     `json:"remoteCount"`
}

// Detector samples entity state on a fixed simulation-time cadence and keeps
// a bounded window of frames for comparison against a peer's stream.
type Detector struct {
	interval float64
	nextAt   float64
	frames   []Frame
	head     int
	count    int
}

// NewDetector builds a detector sampling every interval simulation seconds
// and retaining up to capacity frames.
func NewDetector(interval float64, capacity int) *Detector {
	if interval <= 0 {
		interval = 1.0
	}
	if capacity <= 0 {
		capacity = 128
	}
	return &Detector{
		interval: interval,
		nextAt:   interval,
		frames:   make([]Frame, capacity),
	}
}

// Interval returns the sampling cadence in simulation seconds.
func (d *Detector) Interval() float64 { return d.interval }

// Due reports whether the next sample point has been reached.
func (d *Detector) Due(simTime float64) bool {
	return simTime >= d.nextAt
}

// Sample records a frame if the sampling interval has elapsed. The returned
// frame is valid only when recorded is true.
func (d *Detector) Sample(tick uint64, simTime float64, samples []EntitySample) (Frame, bool) {
	if !d.Due(simTime) {
		return Frame{}, false
	}
	for simTime >= d.nextAt {
		d.nextAt += d.interval
	}
	frame := Frame{
		Tick:        tick,
		SimTime:     simTime,
		Hash:        HashSamples(samples),
		EntityCount: len(samples),
	}
	d.push(frame)
	return frame, true
}

// Frames returns the retained window, oldest first.
func (d *Detector) Frames() []Frame {
	out := make([]Frame, 0, d.count)
	for i := 0; i < d.count; i++ {
		out = append(out, d.frames[(d.head+i)%len(d.frames)])
	}
	return out
}

// Latest returns the most recent frame, if any.
func (d *Detector) Latest() (Frame, bool) {
	if d.count == 0 {
		return Frame{}, false
	}
	return d.frames[(d.head+d.count-1)%len(d.frames)], true
}

// Compare walks a peer's frames against the local window and returns the
// earliest tick where the hashes disagree. Ticks present on only one side are
// skipped; sampling cadences line up in practice but restarts can trim either
// window.
func (d *Detector) Compare(remote []Frame) (Divergence, bool) {
	local := d.Frames()
	byTick := make(map[uint64]Frame, len(local))
	for _, frame := range local {
		byTick[frame.Tick] = frame
	}
	for _, rf := range remote {
		lf, ok := byTick[rf.Tick]
		if !ok {
			continue
		}
		if lf.Hash != rf.Hash {
			return Divergence{
				Tick:        rf.Tick,
				SimTime:     lf.SimTime,
				LocalHash:   lf.Hash,
				RemoteHash:  rf.Hash,
				LocalCount:  lf.EntityCount,
				RemoteCount: rf.EntityCount,
			}, true
		}
	}
	return Divergence{}, false
}

func (d *Detector) push(frame Frame) {
	if d.count < len(d.frames) {
		d.frames[(d.head+d.count)%len(d.frames)] = frame
		d.count++
		return
	}
	d.frames[d.head] = frame
	d.head = (d.head + 1) % len(d.frames)
}

// HashSamples folds every entity digest into one order-independent hash.
// Addition modulo 2^64 is commutative, so iteration order cannot change the
// result; the per-entity digest itself is order-sensitive, so swapped field
// values between two entities still diverge.
func HashSamples(samples []EntitySample) uint64 {
	var sum uint64
	for i := range samples {
		sum += hashSample(&samples[i])
	}
	return sum
}

func hashSample(s *EntitySample) uint64 {
	h := xxhash.New()
	writeString(h, s.ID)
	writeString(h, s.Kind)
	writeInt(h, int64(s.Team))
	writeQuantised(h, s.PosX)
	writeQuantised(h, s.PosY)
	writeQuantised(h, s.PosZ)
	writeQuantised(h, s.Health)
	writeString(h, s.Target)
	if s.HasGoal {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func writeString(h *xxhash.Digest, s string) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
	h.Write(length[:])
	h.WriteString(s)
}

func writeInt(h *xxhash.Digest, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func writeQuantised(h *xxhash.Digest, v float64) {
	writeInt(h, int64(math.Round(v*positionScale)))
}
