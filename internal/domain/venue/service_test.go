package venue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
)

type mockRepo struct {
	venues map[uuid.UUID]*Venue
}

func newMockRepo() *mockRepo {
	return &mockRepo{venues: make(map[uuid.UUID]*Venue)}
}

func (m *mockRepo) Create(_ context.Context, v *Venue) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	m.venues[v.ID] = v
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Venue, error) {
	return m.venues[id], nil
}

func (m *mockRepo) GetCurrentForDossier(_ context.Context, dossierID uuid.UUID) (*Venue, error) {
	var latest *Venue
	for _, v := range m.venues {
		if v.DossierID != dossierID {
			continue
		}
		if latest == nil || v.Start.After(latest.Start) {
			latest = v
		}
	}
	return latest, nil
}

func (m *mockRepo) ListForDossier(_ context.Context, dossierID uuid.UUID) ([]*Venue, error) {
	var out []*Venue
	for _, v := range m.venues {
		if v.DossierID == dossierID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, v *Venue) error {
	m.venues[v.ID] = v
	return nil
}

func (m *mockRepo) AppendMovement(_ context.Context, venueID uuid.UUID, mv Movement) error {
	v := m.venues[venueID]
	v.Movements = append(v.Movements, mv)
	return nil
}

func TestApply_A01CreatesActiveVenue(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc := uuid.New()

	v, err := svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger:        "A01",
		Timestamp:      time.Now(),
		Action:         MovementInsert,
		LocationNodeID: &loc,
		Nature:         "S",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != statemachine.StatusActive {
		t.Errorf("expected ACTIVE, got %s", v.Status)
	}
	if v.CurrentLocationID == nil || *v.CurrentLocationID != loc {
		t.Error("expected current location set from A01")
	}
	if len(v.Movements) != 1 || v.Movements[0].Trigger != "A01" {
		t.Errorf("expected one A01 movement, got %+v", v.Movements)
	}
}

func TestApply_A02UpdatesLocationOnExistingVenue(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc1, loc2 := uuid.New(), uuid.New()

	svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger: "A01", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc1,
	})
	v, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A02", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.CurrentLocationID == nil || *v.CurrentLocationID != loc2 {
		t.Error("expected location updated by A02")
	}
	if len(v.Movements) != 2 {
		t.Errorf("expected 2 movements, got %d", len(v.Movements))
	}
}

func TestApply_A03SetsVenueEnd(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc := uuid.New()

	svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger: "A01", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc,
	})
	v, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A03", Timestamp: time.Now(), Action: MovementInsert,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != statemachine.StatusDischarged {
		t.Errorf("expected DISCHARGED, got %s", v.Status)
	}
	if v.End == nil {
		t.Error("expected venue end to be set")
	}
}

func TestApply_A02WithoutActiveVenueRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()

	_, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A02", Timestamp: time.Now(), Action: MovementInsert,
	})
	if err == nil {
		t.Fatal("expected rejection")
	}
	if _, ok := err.(*statemachine.Rejected); !ok {
		t.Errorf("expected *statemachine.Rejected, got %T", err)
	}
}

func TestApply_A11CancelsAdmitAndPointsToMovement(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc := uuid.New()

	svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger: "A01", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc,
	})
	v, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A11", Timestamp: time.Now(), Action: MovementCancel,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != statemachine.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", v.Status)
	}
	last := v.Movements[len(v.Movements)-1]
	if last.Cancels == nil || *last.Cancels != v.Movements[0].Sequence {
		t.Error("expected the A11 movement to point back at the A01 movement")
	}
}

func TestApply_A12RestoresRollbackLocation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc1, loc2 := uuid.New(), uuid.New()

	svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger: "A01", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc1,
	})
	svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A02", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc2,
	})
	v, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A12", Timestamp: time.Now(), Action: MovementCancel, RollbackLocationID: &loc1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.CurrentLocationID == nil || *v.CurrentLocationID != loc1 {
		t.Error("expected location rolled back to the pre-transfer location")
	}
}

func TestApply_A13ReopensDischargeAndClearsEnd(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	dossierID := uuid.New()
	loc := uuid.New()

	svc.Apply(context.Background(), dossierID, "SEQ1", MovementInput{
		Trigger: "A01", Timestamp: time.Now(), Action: MovementInsert, LocationNodeID: &loc,
	})
	svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A03", Timestamp: time.Now(), Action: MovementInsert,
	})
	v, err := svc.Apply(context.Background(), dossierID, "", MovementInput{
		Trigger: "A13", Timestamp: time.Now(), Action: MovementCancel,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != statemachine.StatusActive {
		t.Errorf("expected ACTIVE after reopen, got %s", v.Status)
	}
	if v.End != nil {
		t.Error("expected venue end cleared")
	}
}
