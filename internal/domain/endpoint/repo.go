package endpoint

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists endpoint configuration.
type Repository interface {
	Create(ctx context.Context, e *Endpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*Endpoint, error)
	List(ctx context.Context) ([]*Endpoint, error)
	Update(ctx context.Context, e *Endpoint) error
	Delete(ctx context.Context, id uuid.UUID) error
}
