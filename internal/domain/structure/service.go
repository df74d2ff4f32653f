package structure

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// virtualAncestorCode is the fixed code used for the synthesized
// virtual-pole/virtual-service catch-all chain a juridical entity's
// auto-created units are parented under (spec §4.4: "a virtual service
// under a virtual pole if necessary").
const virtualAncestorCode = "VIRTUAL"

// Service implements the structure resolver (spec §4.4).
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the node with the given id, or nil if it doesn't exist —
// used by the outbound generator (C9) to render a venue's current
// location as a label without re-running code resolution.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Node, error) {
	return s.repo.GetByID(ctx, id)
}

// Tree returns the full structure hierarchy owned by juridicalEntityID,
// rooted at the juridical entity node itself, for the admin read API's
// structure tree endpoint.
func (s *Service) Tree(ctx context.Context, juridicalEntityID uuid.UUID) (*TreeNode, error) {
	root, err := s.repo.GetByID(ctx, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: tree: load root: %w", err)
	}
	if root == nil {
		return nil, &NotFoundError{Code: juridicalEntityID.String(), Kind: KindJuridicalEntity}
	}

	nodes, err := s.repo.ListByJuridicalEntity(ctx, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: tree: list nodes: %w", err)
	}

	byParent := make(map[uuid.UUID][]*Node)
	for _, n := range nodes {
		if n.ParentID != nil {
			byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
		}
	}

	var attach func(n *Node) *TreeNode
	attach = func(n *Node) *TreeNode {
		t := &TreeNode{Node: n}
		for _, child := range byParent[n.ID] {
			t.Children = append(t.Children, attach(child))
		}
		return t
	}
	return attach(root), nil
}

// Resolve looks up the node of kind k with the given code, scoped to
// juridicalEntityID. If the code is unknown and the juridical entity's
// auto-create-uf policy is enabled, a virtual placeholder node is created
// (synthesizing a virtual parent chain as needed) and returned instead of
// NotFoundError.
func (s *Service) Resolve(ctx context.Context, k Kind, code string, juridicalEntityID *uuid.UUID) (*Node, error) {
	matches, err := s.repo.FindByCode(ctx, k, code, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: find %s/%s: %w", k, code, err)
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// fall through to auto-create handling below
	default:
		return nil, &AmbiguityError{Code: code, Kind: k}
	}

	if juridicalEntityID == nil {
		return nil, &NotFoundError{Code: code, Kind: k}
	}
	enabled, err := s.repo.AutoCreateEnabled(ctx, *juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: auto-create policy lookup: %w", err)
	}
	if !enabled {
		return nil, &NotFoundError{Code: code, Kind: k}
	}

	parent, err := s.ensureVirtualAncestorChain(ctx, ParentKind(k), juridicalEntityID)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Kind:              k,
		Code:              code,
		Label:             code,
		ParentID:          parentNodeID(parent),
		JuridicalEntityID: juridicalEntityID,
		Virtual:           true,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("structure: create virtual node: %w", err)
	}
	return n, nil
}

// ensureVirtualAncestorChain walks up from kind k to the Juridical Entity
// node, returning (creating as needed) a single shared virtual node per
// kind per juridical entity, so repeated unknown codes don't each spawn
// their own pole/service chain.
func (s *Service) ensureVirtualAncestorChain(ctx context.Context, k Kind, juridicalEntityID *uuid.UUID) (*Node, error) {
	if k == "" || k == KindJuridicalEntity {
		// The Juridical Entity itself must already exist — it is never
		// auto-created, since every inbound message is scoped to one.
		// juridicalEntityID is the structure_node.id of that entity.
		n, err := s.repo.GetByID(ctx, *juridicalEntityID)
		if err != nil {
			return nil, fmt.Errorf("structure: find owning juridical entity: %w", err)
		}
		if n == nil {
			return nil, &NotFoundError{Code: juridicalEntityID.String(), Kind: KindJuridicalEntity}
		}
		return n, nil
	}

	matches, err := s.repo.FindByCode(ctx, k, virtualAncestorCode, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: find virtual %s: %w", k, err)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return nil, &AmbiguityError{Code: virtualAncestorCode, Kind: k}
	}

	parent, err := s.ensureVirtualAncestorChain(ctx, ParentKind(k), juridicalEntityID)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Kind:              k,
		Code:              virtualAncestorCode,
		Label:             "virtual " + string(k),
		ParentID:          parentNodeID(parent),
		JuridicalEntityID: juridicalEntityID,
		Virtual:           true,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("structure: create virtual %s: %w", k, err)
	}
	return n, nil
}

func parentNodeID(n *Node) *uuid.UUID {
	if n == nil {
		return nil
	}
	id := n.ID
	return &id
}

// ReplaceAuthoritative upserts node id with authoritative data from an
// MFN^M05 import, clearing its virtual flag so it is never recreated by
// Resolve (spec §4.4).
func (s *Service) ReplaceAuthoritative(ctx context.Context, id uuid.UUID, label string, parentID *uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return errors.New("structure: node not found for authoritative replace")
	}
	return s.repo.ReplaceVirtual(ctx, id, label, parentID)
}

// Import applies one MFN^M05 structure-import entry: an idempotent,
// single-pass upsert keyed on (kind, code) within the juridical entity. If a
// node of kind k with the given code already exists, under any parent, it is
// updated in place, moved under the resolved parent and its virtual flag
// cleared regardless of whether it was virtual to begin with; otherwise a
// new authoritative node is created. parentKind
// empty means k has no parent (Territory).
func (s *Service) Import(ctx context.Context, k Kind, code, label string, parentKind Kind, parentCode string, juridicalEntityID *uuid.UUID) (*Node, error) {
	var parentID *uuid.UUID
	if parentKind != "" {
		parent, err := s.findExisting(ctx, parentKind, parentCode, juridicalEntityID)
		if err != nil {
			return nil, fmt.Errorf("structure: import %s/%s: resolve parent: %w", k, code, err)
		}
		parentID = parentNodeID(parent)
	}

	matches, err := s.repo.FindByCode(ctx, k, code, juridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("structure: import %s/%s: %w", k, code, err)
	}
	switch len(matches) {
	case 0:
		n := &Node{
			Kind:              k,
			Code:              code,
			Label:             label,
			ParentID:          parentID,
			JuridicalEntityID: juridicalEntityID,
			Virtual:           false,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return nil, fmt.Errorf("structure: import %s/%s: create: %w", k, code, err)
		}
		return n, nil
	case 1:
		n := matches[0]
		if err := s.repo.ReplaceVirtual(ctx, n.ID, label, parentID); err != nil {
			return nil, fmt.Errorf("structure: import %s/%s: replace: %w", k, code, err)
		}
		n.Label, n.ParentID, n.Virtual = label, parentID, false
		return n, nil
	default:
		return nil, &AmbiguityError{Code: code, Kind: k}
	}
}

// findExisting looks up a node a structure import's parent reference must
// already name — it never auto-creates, unlike Resolve, since an MFN^M05
// import describes the hierarchy authoritatively rather than inferring it
// from inbound PAM traffic.
func (s *Service) findExisting(ctx context.Context, k Kind, code string, juridicalEntityID *uuid.UUID) (*Node, error) {
	matches, err := s.repo.FindByCode(ctx, k, code, juridicalEntityID)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &NotFoundError{Code: code, Kind: k}
	default:
		return nil, &AmbiguityError{Code: code, Kind: k}
	}
}
