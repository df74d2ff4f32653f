package dossier

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists dossiers.
type Repository interface {
	Create(ctx context.Context, d *Dossier) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dossier, error)

	// GetActiveForPatient returns the patient's open dossier at the
	// juridical entity, or nil if none (spec §4.8 step 3 resolution).
	GetActiveForPatient(ctx context.Context, patientID, juridicalEntityID uuid.UUID) (*Dossier, error)

	// Repoint reassigns a dossier to a different patient, used when
	// ADT^A40 merges the dossier's original owner into a survivor (spec
	// §4.6 A40: "re-point dossiers").
	Repoint(ctx context.Context, dossierID, newPatientID uuid.UUID) error
}
