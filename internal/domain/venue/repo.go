package venue

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists venues and their movements.
type Repository interface {
	Create(ctx context.Context, v *Venue) error
	GetByID(ctx context.Context, id uuid.UUID) (*Venue, error)

	// GetCurrentForDossier returns the dossier's most recent venue,
	// whatever its status — including DISCHARGED/CANCELLED ones, since
	// the state machine needs to see them to validate A11/A12/A13
	// preconditions (spec §4.6). A dossier has at most one venue open at
	// a time (spec §3 Venue invariant), enforced by the service, not by
	// this query.
	GetCurrentForDossier(ctx context.Context, dossierID uuid.UUID) (*Venue, error)

	// ListForDossier returns every venue ever opened for the dossier, in
	// chronological (start_ts ascending) order — used by the scenario
	// engine's capture step (spec §4.10), which needs the dossier's full
	// movement history, not just its current venue.
	ListForDossier(ctx context.Context, dossierID uuid.UUID) ([]*Venue, error)

	Update(ctx context.Context, v *Venue) error
	AppendMovement(ctx context.Context, venueID uuid.UUID, m Movement) error
}
