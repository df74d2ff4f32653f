package identifier

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists namespaces and their allocated values.
type Repository interface {
	GetNamespace(ctx context.Context, namespaceType NamespaceType, juridicalEntityID *uuid.UUID) (*Namespace, error)
	GetNamespaceByID(ctx context.Context, id uuid.UUID) (*Namespace, error)
	CreateNamespace(ctx context.Context, ns *Namespace) error

	// IsAssigned reports whether value is already allocated under the
	// given (type, system) pair.
	IsAssigned(ctx context.Context, namespaceType NamespaceType, systemURI, value string) (bool, error)

	// RecordAllocation persists a newly allocated value. Implementations
	// must make this atomic with the preceding IsAssigned check by relying
	// on a unique constraint on (type, system_uri, value) and surfacing a
	// constraint violation as ErrAlreadyAssigned, or by holding the
	// namespace lock described in spec §5 across both calls.
	RecordAllocation(ctx context.Context, a *Allocation) error

	// CountAssigned returns how many values are currently allocated under
	// the namespace, used by EstimateAvailable.
	CountAssigned(ctx context.Context, namespaceID uuid.UUID) (int64, error)
}
