package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
)

// MovementInput carries the facts the inbound pipeline has already
// derived (via C2/C4/C5) for one incoming ADT event.
type MovementInput struct {
	Trigger         string // bare trigger, e.g. "A02"
	Timestamp       time.Time
	Action          MovementAction
	Historic        bool
	OriginalTrigger *string
	MedicalUFCode   string
	MedicalUFLabel  string
	CareUFCode      *string
	CareUFLabel     *string
	Nature          string
	LocationNodeID  *uuid.UUID

	// RollbackLocationID is supplied by the caller for A12 (cancel
	// transfer), which must restore the location that was current before
	// the transfer being cancelled (spec §4.6: "rollback location").
	RollbackLocationID *uuid.UUID
}

// Service applies movements to venues under the per-venue (here,
// per-dossier, since at most one venue is active per dossier at a time —
// spec §3 invariant) exclusive lock spec §5 requires.
type Service struct {
	repo Repository

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (s *Service) lockFor(dossierID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[dossierID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[dossierID] = l
	}
	return l
}

// Get returns the venue with the given id, including its full movement
// history, or nil if it doesn't exist — used by the admin read API's "GET
// movements by venue" endpoint, since Movement is embedded on Venue
// rather than queried separately.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Venue, error) {
	return s.repo.GetByID(ctx, id)
}

// Apply evaluates and carries out one ADT movement against the dossier's
// current venue under that dossier's exclusive lock (spec §4.6, §5,
// §4.8 step 4). sequenceNumber is used only when a new venue must be
// created (A05/A01 with no existing venue).
func (s *Service) Apply(ctx context.Context, dossierID uuid.UUID, sequenceNumber string, in MovementInput) (*Venue, error) {
	lock := s.lockFor(dossierID)
	lock.Lock()
	defer lock.Unlock()

	v, err := s.repo.GetCurrentForDossier(ctx, dossierID)
	if err != nil {
		return nil, fmt.Errorf("venue: load active venue: %w", err)
	}

	currentStatus := statemachine.StatusNone
	lastTrigger := ""
	if v != nil {
		currentStatus = v.Status
		lastTrigger = v.LastNonCancelledTrigger()
	}

	out, err := statemachine.Apply(statemachine.Input{
		Trigger:                 in.Trigger,
		CurrentStatus:           currentStatus,
		LastNonCancelledTrigger: lastTrigger,
		Historic:                in.Historic,
	})
	if err != nil {
		return nil, err
	}

	if v == nil {
		v = &Venue{
			DossierID:      dossierID,
			SequenceNumber: sequenceNumber,
			Start:          in.Timestamp,
			Status:         out.NewStatus,
		}
		if out.UpdatesLoc {
			v.CurrentLocationID = in.LocationNodeID
		}
		movement := s.buildMovement(v, in)
		v.Movements = append(v.Movements, movement)
		if err := s.repo.Create(ctx, v); err != nil {
			return nil, fmt.Errorf("venue: create: %w", err)
		}
		return v, nil
	}

	priorLocation := v.CurrentLocationID

	v.Status = out.NewStatus
	if out.UpdatesLoc {
		if in.Trigger == "A12" {
			v.CurrentLocationID = in.RollbackLocationID
		} else {
			v.CurrentLocationID = in.LocationNodeID
		}
	}
	if out.SetsVenueEnd {
		end := in.Timestamp
		v.End = &end
	}
	if out.ClearsVenueEnd {
		v.End = nil
	}

	movement := s.buildMovement(v, in)
	movement.PriorLocationNodeID = priorLocation
	if in.Action == MovementCancel {
		movement.Cancels = findCancelTarget(v, in.Trigger)
	}
	v.Movements = append(v.Movements, movement)

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("venue: update: %w", err)
	}
	return v, nil
}

func (s *Service) buildMovement(v *Venue, in MovementInput) Movement {
	return Movement{
		Sequence:        v.NextSequence(),
		Timestamp:       in.Timestamp,
		Trigger:         in.Trigger,
		Action:          in.Action,
		Historic:        in.Historic,
		OriginalTrigger: in.OriginalTrigger,
		MedicalUFCode:   in.MedicalUFCode,
		MedicalUFLabel:  in.MedicalUFLabel,
		CareUFCode:      in.CareUFCode,
		CareUFLabel:     in.CareUFLabel,
		Nature:          in.Nature,
		LocationNodeID:  in.LocationNodeID,
	}
}

// findCancelTarget returns the sequence of the most recent non-cancelled
// movement whose trigger the cancelling trigger reverses (A11→A01,
// A12→A02, A13→A03), i.e. the back-pointer required by spec §3 Movement.
func findCancelTarget(v *Venue, cancellingTrigger string) *int {
	reversedTrigger := map[string]string{"A11": "A01", "A12": "A02", "A13": "A03"}[cancellingTrigger]
	if reversedTrigger == "" {
		return nil
	}
	for i := len(v.Movements) - 1; i >= 0; i-- {
		if v.Movements[i].Trigger == reversedTrigger && v.Movements[i].Action != MovementCancel {
			seq := v.Movements[i].Sequence
			return &seq
		}
	}
	return nil
}
