package endpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
)

type fakeEndpointRepo struct {
	byID map[uuid.UUID]*Endpoint
}

func newFakeEndpointRepo(eps ...*Endpoint) *fakeEndpointRepo {
	r := &fakeEndpointRepo{byID: make(map[uuid.UUID]*Endpoint)}
	for _, e := range eps {
		r.byID[e.ID] = e
	}
	return r
}

func (r *fakeEndpointRepo) Create(ctx context.Context, e *Endpoint) error { return nil }
func (r *fakeEndpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	return r.byID[id], nil
}
func (r *fakeEndpointRepo) List(ctx context.Context) ([]*Endpoint, error) {
	out := make([]*Endpoint, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out, nil
}
func (r *fakeEndpointRepo) Update(ctx context.Context, e *Endpoint) error { return nil }
func (r *fakeEndpointRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func TestManager_SendHL7_FileOutboxWritesFile(t *testing.T) {
	dir := t.TempDir()
	ep := &Endpoint{ID: uuid.New(), Kind: KindFileOutbox, Name: "outbox-1", OutboxPath: dir}
	repo := newFakeEndpointRepo(ep)
	m := NewManager(repo, &inbound.Pipeline{}, zerolog.Nop())

	raw := []byte("MSH|^~\\&|BRIDGE|HOSP|GAM|GAM|20260115143025||ADT^A01|CTRL9|P|2.5")
	result, err := m.SendHL7(context.Background(), ep.ID, raw)
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, statErr := os.Stat(filepath.Join(dir, "CTRL9.hl7"))
	assert.NoError(t, statErr)
}

func TestManager_SendHL7_WrongKindReturnsError(t *testing.T) {
	ep := &Endpoint{ID: uuid.New(), Kind: KindFHIRClient, Name: "fhir-1"}
	repo := newFakeEndpointRepo(ep)
	m := NewManager(repo, &inbound.Pipeline{}, zerolog.Nop())

	_, err := m.SendHL7(context.Background(), ep.ID, []byte("x"))
	assert.Error(t, err)
}

func TestManager_SendHL7_UnknownEndpointReturnsError(t *testing.T) {
	repo := newFakeEndpointRepo()
	m := NewManager(repo, &inbound.Pipeline{}, zerolog.Nop())

	_, err := m.SendHL7(context.Background(), uuid.New(), []byte("x"))
	assert.Error(t, err)
}

func TestManager_Test_PassiveEndpointKindsSucceedTrivially(t *testing.T) {
	ep := &Endpoint{ID: uuid.New(), Kind: KindFileOutbox, Name: "outbox-2"}
	repo := newFakeEndpointRepo(ep)
	m := NewManager(repo, &inbound.Pipeline{}, zerolog.Nop())

	result, err := m.Test(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestManager_StartStop_FileInboxLifecycle(t *testing.T) {
	dir := t.TempDir()
	ep := &Endpoint{ID: uuid.New(), Kind: KindFileInbox, Name: "inbox-1", InboxPath: dir, PollSecondsInterval: 3600}
	repo := newFakeEndpointRepo(ep)
	m := NewManager(repo, &inbound.Pipeline{}, zerolog.Nop())

	require.NoError(t, m.Start(context.Background(), ep.ID))
	// starting twice must be a no-op, not a double-registration.
	require.NoError(t, m.Start(context.Background(), ep.ID))
	require.NoError(t, m.Stop(context.Background(), ep.ID))
}
