package reconcile

import (
	"redoubt/server/internal/sim"
)

// UndoDepth caps how many placements the undo stack remembers. Older entries
// fall off the bottom; undo past the cap is a no-op.
const UndoDepth = 10

// UndoStack tracks the local player's placements during the placement phase
// and produces compensating cancel commands, newest first. Undo is a normal
// command like any other: the cancel goes through the same predict/ack path,
// so the server remains authoritative over whether it lands.
type UndoStack struct {
	playerID string
	entries  []string
}

// NewUndoStack builds an empty stack for one player.
func NewUndoStack(playerID string) *UndoStack {
	return &UndoStack{playerID: playerID}
}

// Depth reports how many placements can currently be undone.
func (s *UndoStack) Depth() int { return len(s.entries) }

// Push records an accepted placement. When the stack is full the oldest
// entry is discarded.
func (s *UndoStack) Push(placementID string) {
	if placementID == "" {
		return
	}
	s.entries = append(s.entries, placementID)
	if len(s.entries) > UndoDepth {
		s.entries = s.entries[len(s.entries)-UndoDepth:]
	}
}

// Pop returns the compensating cancel for the most recent placement. The
// second return is false when there is nothing to undo.
func (s *UndoStack) Pop() (sim.Command, bool) {
	if len(s.entries) == 0 {
		return sim.Command{}, false
	}
	last := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return sim.Command{
		PlayerID: s.playerID,
		Type:     sim.CommandCancelBuilding,
		Cancel:   &sim.CancelBuildingCommand{PlacementID: last},
	}, true
}

// Forget removes a placement from anywhere in the stack, used when the
// placement was cancelled through another path or destroyed by the server.
func (s *UndoStack) Forget(placementID string) {
	for i, id := range s.entries {
		if id == placementID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// Reset clears the stack. Called on every battle start; undo never crosses a
// phase boundary.
func (s *UndoStack) Reset() {
	s.entries = s.entries[:0]
}
