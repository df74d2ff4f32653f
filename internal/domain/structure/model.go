package structure

import "github.com/google/uuid"

// Kind is one level of the structure hierarchy (spec §3): a strict tree,
// Territory → Juridical Entity → Geographic Entity → Pole → Service →
// Functional Unit → Housing Unit → Room → Bed.
type Kind string

const (
	KindTerritory        Kind = "TERRITORY"
	KindJuridicalEntity  Kind = "JURIDICAL_ENTITY"
	KindGeographicEntity Kind = "GEOGRAPHIC_ENTITY"
	KindPole             Kind = "POLE"
	KindService          Kind = "SERVICE"
	KindFunctionalUnit   Kind = "FUNCTIONAL_UNIT"
	KindHousingUnit      Kind = "HOUSING_UNIT"
	KindRoom             Kind = "ROOM"
	KindBed              Kind = "BED"
)

// levelOrder fixes the hierarchy's strict parent/child ordering.
var levelOrder = []Kind{
	KindTerritory, KindJuridicalEntity, KindGeographicEntity, KindPole,
	KindService, KindFunctionalUnit, KindHousingUnit, KindRoom, KindBed,
}

// ParentKind returns the kind that must own a node of kind k, or "" for
// the root (Territory has no parent).
func ParentKind(k Kind) Kind {
	for i, lvl := range levelOrder {
		if lvl == k && i > 0 {
			return levelOrder[i-1]
		}
	}
	return ""
}

// Node is one entry in the structure hierarchy.
type Node struct {
	ID                uuid.UUID
	Kind              Kind
	Code              string
	Label             string
	ParentID          *uuid.UUID
	JuridicalEntityID *uuid.UUID // the owning juridical entity; nil only for Territory/JuridicalEntity nodes themselves
	Virtual           bool       // placeholder auto-created by the resolver, pending authoritative replacement
}

// NotFoundError is returned by Resolve when no node matches and
// auto-creation is disabled or not applicable.
type NotFoundError struct {
	Code string
	Kind Kind
}

func (e *NotFoundError) Error() string {
	return "structure: " + string(e.Kind) + " code " + e.Code + " not found"
}

// TreeNode is one node of the structure hierarchy rendered with its
// children already attached, used by the admin read API's structure tree
// endpoint (SPEC_FULL.md §5).
type TreeNode struct {
	*Node
	Children []*TreeNode
}

// AmbiguityError is returned when a code resolves to more than one node
// within scope (codes must be unique within scope — spec §3 invariant).
type AmbiguityError struct {
	Code string
	Kind Kind
}

func (e *AmbiguityError) Error() string {
	return "structure: " + string(e.Kind) + " code " + e.Code + " is ambiguous within scope"
}
