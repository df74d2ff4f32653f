package structure

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists structure-hierarchy nodes.
type Repository interface {
	// FindByCode returns every node of kind k with the given code, scoped
	// to juridicalEntityID. More than one result is an ambiguity.
	FindByCode(ctx context.Context, k Kind, code string, juridicalEntityID *uuid.UUID) ([]*Node, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Node, error)
	Create(ctx context.Context, n *Node) error

	// ReplaceVirtual overwrites a virtual node's fields in place (same ID),
	// used by authoritative MFN^M05 import to upsert without duplicating
	// the node (spec §4.4).
	ReplaceVirtual(ctx context.Context, id uuid.UUID, label string, parentID *uuid.UUID) error

	// AutoCreateEnabled reports the per-juridical-entity auto-create-uf
	// policy flag (spec §4.4), default false.
	AutoCreateEnabled(ctx context.Context, juridicalEntityID uuid.UUID) (bool, error)

	// ListByJuridicalEntity returns every node owned by juridicalEntityID
	// (i.e. every node below it in the hierarchy), used to render the
	// admin read API's structure tree (SPEC_FULL.md §5).
	ListByJuridicalEntity(ctx context.Context, juridicalEntityID uuid.UUID) ([]*Node, error)
}
