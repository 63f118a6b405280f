package sim

import "time"

// Keyframe captures a full-state snapshot stored in the journal so clients
// that fall off the patch stream can rehydrate without a rejoin.
type Keyframe struct {
	Tick        uint64     `json:"tick"`
	Sequence    uint64     `json:"sequence"`
	Snapshot    Snapshot   `json:"snapshot"`
	Config      RoomConfig `json:"config"`
	CatalogHash string     `json:"catalogHash"`
	RecordedAt  time.Time  `json:"recordedAt"`
}

// KeyframeEviction describes a keyframe removed from the buffer and why.
type KeyframeEviction struct {
	Sequence uint64 `json:"sequence"`
	Tick     uint64 `json:"tick"`
	Reason   string `json:"reason,omitempty"`
}

// KeyframeRecordResult reports journal state after storing a keyframe.
type KeyframeRecordResult struct {
	Size           int                `json:"size"`
	OldestSequence uint64             `json:"oldestSequence"`
	NewestSequence uint64             `json:"newestSequence"`
	Evicted        []KeyframeEviction `json:"evicted,omitempty"`
}
