package venue

import (
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
)

// MovementAction classifies one movement entry (spec §3 Movement).
type MovementAction string

const (
	MovementInsert MovementAction = "INSERT"
	MovementUpdate MovementAction = "UPDATE"
	MovementCancel MovementAction = "CANCEL"
)

// Movement is a single administrative event on a venue (spec §3
// Movement). Invariant: chronological order per venue; UPDATE/CANCEL
// must reference an existing non-cancelled movement by sequence.
type Movement struct {
	Sequence        int
	Timestamp       time.Time
	Trigger         string // bare ADT trigger, e.g. "A02"
	Action          MovementAction
	Historic        bool
	OriginalTrigger *string // required when Action ∈ {UPDATE, CANCEL}
	MedicalUFCode   string
	MedicalUFLabel  string
	CareUFCode      *string
	CareUFLabel     *string
	Nature          string
	LocationNodeID  *uuid.UUID

	// PriorLocationNodeID is the venue's CurrentLocationID as it stood
	// immediately before this movement was applied — the location the
	// patient is leaving, distinct from LocationNodeID (where they're
	// going). PV1-6 renders this field, not LocationNodeID (spec §6, §4.9
	// worked example).
	PriorLocationNodeID *uuid.UUID

	Cancels *int // sequence of the movement this one cancels, for CANCEL
}

// Venue is a contiguous episode of care (spec §3 Venue). Invariant: end
// ≥ start when set; exactly one ACTIVE venue per dossier at any time
// (enforced by the service, not structurally).
type Venue struct {
	ID                uuid.UUID
	DossierID         uuid.UUID
	SequenceNumber    string // unique per juridical entity
	Start             time.Time
	End               *time.Time
	Status            statemachine.Status
	CurrentLocationID *uuid.UUID
	Movements         []Movement
}

// LastNonCancelledTrigger returns the trigger of the most recent movement
// that isn't itself a CANCEL and hasn't been cancelled by a later one —
// the guard statemachine.Apply uses for A11/A12 (spec §4.6).
func (v *Venue) LastNonCancelledTrigger() string {
	cancelled := make(map[int]bool)
	for _, m := range v.Movements {
		if m.Action == MovementCancel && m.Cancels != nil {
			cancelled[*m.Cancels] = true
		}
	}
	for i := len(v.Movements) - 1; i >= 0; i-- {
		m := v.Movements[i]
		if m.Action == MovementCancel || cancelled[m.Sequence] {
			continue
		}
		return m.Trigger
	}
	return ""
}

// NextSequence returns the sequence number the next movement should use.
func (v *Venue) NextSequence() int {
	max := 0
	for _, m := range v.Movements {
		if m.Sequence > max {
			max = m.Sequence
		}
	}
	return max + 1
}
