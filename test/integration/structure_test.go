package integration

import (
	"context"
	"testing"

	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
)

func TestStructureResolveAutoCreatesVirtualUnit(t *testing.T) {
	ctx := context.Background()
	truncateAll(t, ctx)
	je := newJuridicalEntity(t, ctx, "STR1")

	if _, err := globalDB.Pool.Exec(ctx,
		`INSERT INTO juridical_entity_policy (juridical_entity_id, auto_create_uf) VALUES ($1, true)`, je,
	); err != nil {
		t.Fatalf("seed auto-create policy: %v", err)
	}

	svc := structure.NewService(structure.NewRepo(globalDB.Pool))
	node, err := svc.Resolve(ctx, structure.KindFunctionalUnit, "UFNEW", &je)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if node == nil {
		t.Fatal("expected an auto-created virtual node, got nil")
	}
	if !node.Virtual {
		t.Error("expected auto-created node to be marked virtual")
	}
	if node.Code != "UFNEW" {
		t.Errorf("Code = %q, want UFNEW", node.Code)
	}

	again, err := svc.Resolve(ctx, structure.KindFunctionalUnit, "UFNEW", &je)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again.ID != node.ID {
		t.Error("expected repeated resolution of the same code to return the same node")
	}
}

func TestStructureTreeReflectsHierarchy(t *testing.T) {
	ctx := context.Background()
	truncateAll(t, ctx)
	je := newJuridicalEntity(t, ctx, "STR2")

	repo := structure.NewRepo(globalDB.Pool)
	pole := &structure.Node{Kind: structure.KindPole, Code: "POLE1", Label: "Pole 1", ParentID: &je, JuridicalEntityID: &je}
	if err := repo.Create(ctx, pole); err != nil {
		t.Fatalf("create pole: %v", err)
	}
	service := &structure.Node{Kind: structure.KindService, Code: "SVC1", Label: "Service 1", ParentID: &pole.ID, JuridicalEntityID: &je}
	if err := repo.Create(ctx, service); err != nil {
		t.Fatalf("create service: %v", err)
	}

	svc := structure.NewService(repo)
	tree, err := svc.Tree(ctx, je)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(tree.Children) != 1 || tree.Children[0].Node.Code != "POLE1" {
		t.Fatalf("expected one child POLE1, got %+v", tree.Children)
	}
	if len(tree.Children[0].Children) != 1 || tree.Children[0].Children[0].Node.Code != "SVC1" {
		t.Fatalf("expected POLE1 to have one child SVC1, got %+v", tree.Children[0].Children)
	}
}
