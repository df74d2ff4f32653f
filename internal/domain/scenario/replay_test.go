package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
)

type fakeScenarioRepo struct {
	runs map[uuid.UUID]*Run
}

func newFakeScenarioRepo() *fakeScenarioRepo {
	return &fakeScenarioRepo{runs: make(map[uuid.UUID]*Run)}
}

func (r *fakeScenarioRepo) CreateTemplate(ctx context.Context, t *ScenarioTemplate) error { return nil }
func (r *fakeScenarioRepo) GetTemplateByKey(ctx context.Context, key string) (*ScenarioTemplate, error) {
	return nil, nil
}
func (r *fakeScenarioRepo) GetTemplateByID(ctx context.Context, id uuid.UUID) (*ScenarioTemplate, error) {
	return nil, nil
}
func (r *fakeScenarioRepo) ListTemplates(ctx context.Context) ([]*ScenarioTemplate, error) {
	return nil, nil
}
func (r *fakeScenarioRepo) DeleteTemplate(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeScenarioRepo) CreateRun(ctx context.Context, run *Run) error {
	r.runs[run.ID] = run
	return nil
}
func (r *fakeScenarioRepo) UpdateRun(ctx context.Context, run *Run) error {
	r.runs[run.ID] = run
	return nil
}
func (r *fakeScenarioRepo) GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	return r.runs[id], nil
}
func (r *fakeScenarioRepo) ListRuns(ctx context.Context, templateID *uuid.UUID) ([]*Run, error) {
	out := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	return out, nil
}

type fakeLogRepo struct {
	entries map[uuid.UUID]*messagelog.Entry
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: make(map[uuid.UUID]*messagelog.Entry)}
}

func (r *fakeLogRepo) ControlIDExists(ctx context.Context, controlID string) (bool, error) {
	return false, nil
}
func (r *fakeLogRepo) Create(ctx context.Context, e *messagelog.Entry) error {
	r.entries[e.ID] = e
	return nil
}
func (r *fakeLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*messagelog.Entry, error) {
	return r.entries[id], nil
}
func (r *fakeLogRepo) Transition(ctx context.Context, id uuid.UUID, status messagelog.Status, diagnostics []messagelog.Diagnostic) error {
	e := r.entries[id]
	e.Status = status
	e.Diagnostics = diagnostics
	return nil
}
func (r *fakeLogRepo) Find(ctx context.Context, f messagelog.Filter, limit, offset int) ([]*messagelog.Entry, int, error) {
	return nil, 0, nil
}

// fakeDispatcher stubs endpoint.Dispatcher with scripted per-call results,
// so Replay's step-by-step aggregation can be exercised without a real
// transport (spec §4.10 Replay).
type fakeDispatcher struct {
	results []endpoint.DispatchResult
	errs    []error
	calls   int
}

func (d *fakeDispatcher) SendHL7(ctx context.Context, endpointID uuid.UUID, msg []byte) (endpoint.DispatchResult, error) {
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	if i < len(d.results) {
		return d.results[i], err
	}
	return endpoint.DispatchResult{Success: true, AckCode: "AA"}, err
}

func (d *fakeDispatcher) SendFHIR(ctx context.Context, endpointID uuid.UUID, bundle *fhir.Bundle) (endpoint.DispatchResult, error) {
	return endpoint.DispatchResult{Success: true}, nil
}

func newTestService(disp endpoint.Dispatcher) (*Service, *fakeScenarioRepo) {
	repo := newFakeScenarioRepo()
	return &Service{Repo: repo, Endpoints: disp, Log: messagelog.NewService(newFakeLogRepo(), nil, zerolog.Nop())}, repo
}

func TestReplay_AllStepsSucceed(t *testing.T) {
	disp := &fakeDispatcher{results: []endpoint.DispatchResult{
		{Success: true, AckCode: "AA"},
		{Success: true, AckCode: "AA"},
	}}
	s, repo := newTestService(disp)

	run := &Run{ID: uuid.New(), Protocol: ProtocolHL7v2}
	rendered := []RenderedMessage{{OrderIndex: 0, HL7: []byte("A")}, {OrderIndex: 1, HL7: []byte("B")}}
	schedule := []time.Time{time.Now(), time.Now()}

	err := s.Replay(context.Background(), run, nil, rendered, schedule, ReplayOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, RunSuccess, run.Status)
	assert.Len(t, run.Steps, 2)
	assert.NotNil(t, run.Finished)
	assert.Same(t, run, repo.runs[run.ID])
}

func TestReplay_OneStepErrorsEscalatesToPartial(t *testing.T) {
	disp := &fakeDispatcher{results: []endpoint.DispatchResult{
		{Success: true, AckCode: "AA"},
		{Success: false, AckCode: "AE", FailureKind: endpoint.FailureAckRejected, Detail: "rejected"},
		{Success: true, AckCode: "AA"},
	}}
	s, _ := newTestService(disp)

	run := &Run{ID: uuid.New(), Protocol: ProtocolHL7v2}
	rendered := make([]RenderedMessage, 3)
	schedule := make([]time.Time, 3)
	for i := range rendered {
		rendered[i] = RenderedMessage{OrderIndex: i, HL7: []byte("x")}
		schedule[i] = time.Now()
	}

	err := s.Replay(context.Background(), run, nil, rendered, schedule, ReplayOptions{})
	require.NoError(t, err)
	assert.Equal(t, RunPartial, run.Status)
	require.Len(t, run.Steps, 3)
	assert.Equal(t, StepSuccess, run.Steps[0].Status)
	assert.Equal(t, StepError, run.Steps[1].Status)
	assert.Equal(t, "ACK_REJECTED", run.Steps[1].ErrorKind)
	assert.Equal(t, StepSuccess, run.Steps[2].Status)
}

func TestReplay_StopOnErrorSkipsRemainingSteps(t *testing.T) {
	disp := &fakeDispatcher{results: []endpoint.DispatchResult{
		{Success: false, AckCode: "AE", FailureKind: endpoint.FailureAckRejected, Detail: "bad"},
	}}
	s, _ := newTestService(disp)

	run := &Run{ID: uuid.New(), Protocol: ProtocolHL7v2}
	rendered := make([]RenderedMessage, 3)
	schedule := make([]time.Time, 3)
	for i := range rendered {
		rendered[i] = RenderedMessage{OrderIndex: i, HL7: []byte("x")}
		schedule[i] = time.Now()
	}

	err := s.Replay(context.Background(), run, nil, rendered, schedule, ReplayOptions{StopOnError: true})
	require.NoError(t, err)
	require.Len(t, run.Steps, 3)
	assert.Equal(t, StepError, run.Steps[0].Status)
	assert.Equal(t, StepSkipped, run.Steps[1].Status)
	assert.Equal(t, StepSkipped, run.Steps[2].Status)
}

func TestReplay_AllStepsErrorEscalatesToError(t *testing.T) {
	disp := &fakeDispatcher{results: []endpoint.DispatchResult{
		{Success: false, AckCode: "AR", FailureKind: endpoint.FailureAckError, Detail: "err"},
	}}
	s, _ := newTestService(disp)

	run := &Run{ID: uuid.New(), Protocol: ProtocolHL7v2}
	rendered := []RenderedMessage{{OrderIndex: 0, HL7: []byte("x")}}
	schedule := []time.Time{time.Now()}

	err := s.Replay(context.Background(), run, nil, rendered, schedule, ReplayOptions{})
	require.NoError(t, err)
	assert.Equal(t, RunError, run.Status)
}

func TestReplay_ContextCancellationMarksRemainingStepsSkipped(t *testing.T) {
	disp := &fakeDispatcher{}
	s, _ := newTestService(disp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &Run{ID: uuid.New(), Protocol: ProtocolHL7v2}
	rendered := []RenderedMessage{{OrderIndex: 0, HL7: []byte("x")}}
	schedule := []time.Time{time.Now()}

	err := s.Replay(ctx, run, nil, rendered, schedule, ReplayOptions{})
	require.NoError(t, err)
	assert.True(t, run.Cancelled)
	assert.Equal(t, StepSkipped, run.Steps[0].Status)
	assert.Equal(t, RunPartial, run.Status)
}

func TestCancel_PersistsCancelledFlag(t *testing.T) {
	s, repo := newTestService(&fakeDispatcher{})
	run := &Run{ID: uuid.New()}
	repo.runs[run.ID] = run

	err := s.Cancel(context.Background(), run.ID)
	require.NoError(t, err)
	assert.True(t, repo.runs[run.ID].Cancelled)
}

func TestCancel_UnknownRunReturnsError(t *testing.T) {
	s, _ := newTestService(&fakeDispatcher{})
	err := s.Cancel(context.Background(), uuid.New())
	assert.Error(t, err)
}
