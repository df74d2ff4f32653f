package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients and their identifiers.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error

	// FindByExternalIdentifier resolves a patient owning the given
	// (namespace, value) pair, used by the inbound pipeline to match
	// PID-3 against the canonical store (spec §4.8 step 3).
	FindByExternalIdentifier(ctx context.Context, namespaceID uuid.UUID, value string) (*Patient, error)

	// AddExternalIdentifier records a new (namespace, value) pair for an
	// existing patient.
	AddExternalIdentifier(ctx context.Context, patientID uuid.UUID, id ExternalIdentifier) error
}
