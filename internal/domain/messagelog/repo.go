package messagelog

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists message log entries.
type Repository interface {
	// ControlIDExists reports whether an entry with this control id
	// already exists, used to reject duplicates (spec §4.7:
	// DUPLICATE_CONTROL_ID).
	ControlIDExists(ctx context.Context, controlID string) (bool, error)

	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// Transition moves an entry from pending to status, appending
	// diagnostics. Implementations must reject a transition away from a
	// non-pending status.
	Transition(ctx context.Context, id uuid.UUID, status Status, diagnostics []Diagnostic) error

	// Find returns entries matching f, newest first, for the admin read
	// API's "GET message log by correlation id/status/endpoint"
	// (SPEC_FULL.md §5). A nil field in f is unfiltered.
	Find(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}

// Filter narrows a Find query. Every field is optional.
type Filter struct {
	CorrelationID *uuid.UUID
	Status        *Status
	EndpointID    *uuid.UUID
}

// Mirror is an optional secondary durability sink for log entries
// (SPEC_FULL.md domain-stack: an append-only mirror to an external event
// stream, never the source of truth). Implementations must tolerate being
// unreachable without blocking message processing — Service logs and
// continues on mirror failure.
type Mirror interface {
	Append(ctx context.Context, e *Entry) error
}
