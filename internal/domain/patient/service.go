package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service implements patient lifecycle operations (spec §3 Patient).
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the patient with the given id, or nil if it doesn't exist —
// used by the admin read API to look a patient up directly once its id is
// already known, without going through identifier resolution.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Create persists a new patient (A28, or implicitly on first A01/A05).
func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.Reliability = normalizeReliability(p.Reliability)
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("patient: create: %w", err)
	}
	return nil
}

// Resolve looks up the patient owning (namespaceID, value), the step 3
// lookup of spec §4.8.
func (s *Service) Resolve(ctx context.Context, namespaceID uuid.UUID, value string) (*Patient, error) {
	p, err := s.repo.FindByExternalIdentifier(ctx, namespaceID, value)
	if err != nil {
		return nil, fmt.Errorf("patient: resolve: %w", err)
	}
	return p, nil
}

// AssignIdentifier records a newly allocated or accepted external
// identifier, enforcing "exactly one primary identifier per
// (patient, namespace type)" (spec §3 Patient invariant) by demoting any
// existing primary in the same namespace before inserting the new one.
func (s *Service) AssignIdentifier(ctx context.Context, p *Patient, namespaceID uuid.UUID, value string) error {
	for i := range p.ExternalIdentifiers {
		if p.ExternalIdentifiers[i].NamespaceID == namespaceID {
			p.ExternalIdentifiers[i].Primary = false
		}
	}
	id := ExternalIdentifier{NamespaceID: namespaceID, Value: value, Primary: true}
	p.ExternalIdentifiers = append(p.ExternalIdentifiers, id)

	if err := s.repo.AddExternalIdentifier(ctx, p.ID, id); err != nil {
		return fmt.Errorf("patient: assign identifier: %w", err)
	}
	return nil
}

// UpdateDemographics applies an ADT^A08/A31 demographics-only update
// (spec §4.6: "A08: update demographics only").
func (s *Service) UpdateDemographics(ctx context.Context, p *Patient, familyName string, givenNames []string, birthDate time.Time, sex Sex) error {
	p.FamilyName = familyName
	p.GivenNames = givenNames
	p.BirthDate = birthDate
	p.Sex = sex
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("patient: update demographics: %w", err)
	}
	return nil
}

// Merge absorbs subject into survivor (ADT^A40, spec §4.6: "merge subject
// into the absorbing patient"). The subject row is kept, never hard
// deleted, and marked as merged so future resolution attempts against its
// identifiers are redirected by the caller to survivor.
func (s *Service) Merge(ctx context.Context, survivor, subject *Patient) error {
	if survivor.ID == subject.ID {
		return fmt.Errorf("patient: cannot merge a patient into itself")
	}
	survivor.ExternalIdentifiers = append(survivor.ExternalIdentifiers, subject.ExternalIdentifiers...)
	if err := s.repo.Update(ctx, survivor); err != nil {
		return fmt.Errorf("patient: merge: update survivor: %w", err)
	}

	subjectID := survivor.ID
	subject.MergedIntoID = &subjectID
	if err := s.repo.Update(ctx, subject); err != nil {
		return fmt.Errorf("patient: merge: mark subject merged: %w", err)
	}
	return nil
}

func normalizeReliability(r Reliability) Reliability {
	if r == "" {
		return ReliabilityEmpty
	}
	return r
}
