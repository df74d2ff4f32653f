package dossier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
)

// Service implements dossier lifecycle operations (spec §3 Dossier).
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the dossier with the given id, or nil if it doesn't exist —
// used by the admin read API.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dossier, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateForAdmit creates a dossier at first admit (A01/A05) or an
// outpatient dossier (A04), as spec §4.8 step 3 requires.
func (s *Service) CreateForAdmit(ctx context.Context, patientID, juridicalEntityID uuid.UUID, sequenceNumber string, admitTime time.Time, dossierType Type) (*Dossier, error) {
	d := &Dossier{
		PatientID:         patientID,
		JuridicalEntityID: juridicalEntityID,
		SequenceNumber:    sequenceNumber,
		AdmitTime:         admitTime,
		Type:              dossierType,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("dossier: create: %w", err)
	}
	return d, nil
}

// Resolve returns the patient's currently open dossier at the juridical
// entity, or nil if none exists.
func (s *Service) Resolve(ctx context.Context, patientID, juridicalEntityID uuid.UUID) (*Dossier, error) {
	d, err := s.repo.GetActiveForPatient(ctx, patientID, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("dossier: resolve: %w", err)
	}
	return d, nil
}

// Repoint reassigns a dossier to survivorPatientID, used when ADT^A40
// merges the dossier's original patient into survivor (spec §4.6 A40).
func (s *Service) Repoint(ctx context.Context, dossierID, survivorPatientID uuid.UUID) error {
	if err := s.repo.Repoint(ctx, dossierID, survivorPatientID); err != nil {
		return fmt.Errorf("dossier: repoint: %w", err)
	}
	return nil
}

// IsClosed reports whether a dossier should be considered closed, i.e.
// every one of its venues has reached a terminal status (spec §3
// Dossier: "closed implicitly when all venues are terminal").
func IsClosed(venueStatuses []statemachine.Status) bool {
	if len(venueStatuses) == 0 {
		return false
	}
	for _, st := range venueStatuses {
		if st != statemachine.StatusDischarged && st != statemachine.StatusCancelled {
			return false
		}
	}
	return true
}
