// Package reconcile implements the client-side prediction loop: local
// commands apply optimistically to a mirror core, authoritative snapshots
// acknowledge processed sequences, and drifted predictions snap back to the
// server's values when the error exceeds the correction epsilon.
package reconcile

import (
	"redoubt/server/internal/sim"
)

// DefaultEpsilonSq is the squared world-space distance a predicted unit may
// drift from the authoritative position before a correction snaps it back.
// Below the epsilon the local prediction wins, so small float disagreements
// never cause visible rubber-banding.
const DefaultEpsilonSq = 0.25

// PendingInput is a locally applied command awaiting server acknowledgement.
type PendingInput struct {
	Seq     uint64
	Command sim.Command
	Result  sim.CommandResult
}

// Correction records one unit snapped back to the authoritative position.
type Correction struct {
	UnitID  string
	From    sim.Vec3
	To      sim.Vec3
	ErrorSq float64
}

// Report summarises one reconciliation pass.
type Report struct {
	AckedSeq     uint64
	DroppedCount int
	Corrections  []Correction
	AdoptedUnits int
	RemovedUnits int
	NeedsResync  bool
}

// Reconciler drives prediction and reconciliation for one local player
// against a mirror core.
type Reconciler struct {
	playerID  string
	mirror    *sim.Core
	epsilonSq float64
	nextSeq   uint64
	pending   []PendingInput
}

// New builds a reconciler over a non-authoritative mirror core.
func New(playerID string, mirror *sim.Core) *Reconciler {
	return &Reconciler{
		playerID:  playerID,
		mirror:    mirror,
		epsilonSq: DefaultEpsilonSq,
	}
}

// Mirror exposes the underlying predicted core.
func (r *Reconciler) Mirror() *sim.Core { return r.mirror }

// NextSeq mints the next input sequence number.
func (r *Reconciler) NextSeq() uint64 {
	r.nextSeq++
	return r.nextSeq
}

// Pending returns the unacknowledged inputs, oldest first.
func (r *Reconciler) Pending() []PendingInput {
	return append([]PendingInput(nil), r.pending...)
}

// Predict applies a command optimistically to the mirror and tracks it until
// the server acknowledges its sequence. Heartbeats carry no simulation
// intent and are not tracked.
func (r *Reconciler) Predict(cmd sim.Command) sim.CommandResult {
	if cmd.PlayerID == "" {
		cmd.PlayerID = r.playerID
	}
	if cmd.Seq == 0 {
		cmd.Seq = r.NextSeq()
	} else if cmd.Seq > r.nextSeq {
		r.nextSeq = cmd.Seq
	}
	result := r.mirror.ApplyCommand(cmd)
	if cmd.Type != sim.CommandHeartbeat {
		r.pending = append(r.pending, PendingInput{Seq: cmd.Seq, Command: cmd.Clone(), Result: result})
	}
	return result
}

// RollbackRejected undoes a predicted placement the server rejected. The
// compensating cancel runs against the mirror only; the input is dropped
// from the pending buffer.
func (r *Reconciler) RollbackRejected(seq uint64) bool {
	for i, input := range r.pending {
		if input.Seq != seq {
			continue
		}
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		if input.Command.Type == sim.CommandSubmitPlacement &&
			input.Result.Err.OK() && input.Result.Effect != nil {
			r.mirror.ApplyCommand(sim.Command{
				PlayerID: r.playerID,
				Type:     sim.CommandCancelBuilding,
				Cancel:   &sim.CancelBuildingCommand{PlacementID: input.Result.Effect.PlacementID},
			})
		}
		return true
	}
	return false
}

// Reconcile folds an authoritative snapshot into the mirror. Acknowledged
// pending inputs are discarded; opponent units adopt server state verbatim;
// own units are corrected only past the epsilon. Authoritative units the
// mirror cannot resolve flag a structural resync.
func (r *Reconciler) Reconcile(snap sim.Snapshot) Report {
	report := Report{AckedSeq: r.ackedSeq(snap)}

	// The mirror never forces phase transitions on its own clock; the round
	// lifecycle is adopted from the authoritative snapshot whenever it moved.
	if snap.Round.Phase != r.mirror.Phase() || snap.Round.Round != r.mirror.Round() {
		r.mirror.AdoptRound(snap.Round)
	}

	kept := r.pending[:0]
	for _, input := range r.pending {
		if input.Seq <= report.AckedSeq {
			report.DroppedCount++
			continue
		}
		kept = append(kept, input)
	}
	r.pending = kept

	owned := r.ownedPlacements(snap)
	seen := make(map[string]bool, len(snap.Units))
	for _, unit := range snap.Units {
		seen[unit.ID] = true
		if owned[unit.PlacementID] {
			r.reconcileOwnUnit(unit, &report)
			continue
		}
		if r.mirror.AdoptUnitState(unit) {
			report.AdoptedUnits++
		} else {
			report.NeedsResync = true
		}
	}

	// Units the server no longer reports are gone, regardless of prediction.
	for _, unit := range r.mirror.Snapshot().Units {
		if seen[unit.ID] {
			continue
		}
		if r.mirror.DropUnit(unit.ID) {
			report.RemovedUnits++
		}
	}

	return report
}

func (r *Reconciler) reconcileOwnUnit(unit sim.UnitSnapshot, report *Report) {
	predicted, ok := r.mirror.UnitPosition(unit.ID)
	if !ok {
		report.NeedsResync = true
		return
	}
	dx := predicted.X - unit.Pos.X
	dy := predicted.Y - unit.Pos.Y
	dz := predicted.Z - unit.Pos.Z
	errorSq := dx*dx + dy*dy + dz*dz
	if errorSq <= r.epsilonSq {
		return
	}
	r.mirror.AdoptUnitState(unit)
	report.Corrections = append(report.Corrections, Correction{
		UnitID:  unit.ID,
		From:    predicted,
		To:      unit.Pos,
		ErrorSq: errorSq,
	})
}

func (r *Reconciler) ackedSeq(snap sim.Snapshot) uint64 {
	for _, player := range snap.Players {
		if player.ID == r.playerID {
			return player.LastProcessedSeq
		}
	}
	return 0
}

func (r *Reconciler) ownedPlacements(snap sim.Snapshot) map[string]bool {
	owned := make(map[string]bool, len(snap.Placements))
	for _, placement := range snap.Placements {
		if placement.PlayerID == r.playerID {
			owned[placement.ID] = true
		}
	}
	return owned
}
