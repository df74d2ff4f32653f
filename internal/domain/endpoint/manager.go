package endpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

// extractControlID reads MSH-10 for use as the file-outbox file name,
// falling back to a generated name when the message fails to parse.
func extractControlID(raw []byte) string {
	msg, err := hl7v2.Parse(raw)
	if err != nil || msg.ControlID == "" {
		return uuid.New().String()
	}
	return msg.ControlID
}

// Manager owns the lifecycle and runtime state of every configured
// Endpoint and implements Dispatcher for the scenario engine (spec
// §4.11). Each endpoint's runtime state is guarded by its own mutex so
// concurrent lifecycle operations on different endpoints never block
// each other (spec §5: "per-endpoint lifecycle mutex").
type Manager struct {
	Repo     Repository
	Pipeline *inbound.Pipeline
	Log      zerolog.Logger

	mu      sync.Mutex
	runtime map[uuid.UUID]*endpointRuntime
}

type endpointRuntime struct {
	mu       sync.Mutex
	endpoint *Endpoint
	status   LifecycleStatus

	sender   *mllpSender
	listener *mllpListener
	poller   *filePoller
	outbox   *fileOutbox
	fhir     *fhirClient
}

func NewManager(repo Repository, pipeline *inbound.Pipeline, log zerolog.Logger) *Manager {
	return &Manager{
		Repo:     repo,
		Pipeline: pipeline,
		Log:      log,
		runtime:  make(map[uuid.UUID]*endpointRuntime),
	}
}

func (m *Manager) runtimeFor(ctx context.Context, id uuid.UUID) (*endpointRuntime, error) {
	m.mu.Lock()
	rt, ok := m.runtime[id]
	m.mu.Unlock()
	if ok {
		return rt, nil
	}

	e, err := m.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("endpoint: %s not found", id)
	}
	return m.register(e), nil
}

func (m *Manager) register(e *Endpoint) *endpointRuntime {
	rt := &endpointRuntime{endpoint: e, status: StatusStopped}
	switch e.Kind {
	case KindMLLPSender:
		rt.sender = newMLLPSender(e)
	case KindMLLPListener:
		rt.listener = newMLLPListener(e, m.Pipeline, m.Log)
	case KindFileInbox:
		rt.poller = newFilePoller(e, m.Pipeline, m.Log)
	case KindFileOutbox:
		rt.outbox = newFileOutbox(e)
	case KindFHIRClient:
		rt.fhir = newFHIRClient(e)
	}
	m.mu.Lock()
	m.runtime[e.ID] = rt
	m.mu.Unlock()
	return rt
}

// Start brings an endpoint's background workers up (listener accept loop,
// file poller) if it has any; sender/outbox/fhir-client endpoints are
// passive and are simply marked running.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) error {
	rt, err := m.runtimeFor(ctx, id)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.status == StatusRunning {
		return nil
	}

	switch rt.endpoint.Kind {
	case KindMLLPListener:
		if err := rt.listener.start(); err != nil {
			rt.status = StatusFailed
			return err
		}
	case KindFileInbox:
		rt.poller.start()
	}
	rt.status = StatusRunning
	return nil
}

func (m *Manager) Stop(ctx context.Context, id uuid.UUID) error {
	rt, err := m.runtimeFor(ctx, id)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.status != StatusRunning {
		return nil
	}

	switch rt.endpoint.Kind {
	case KindMLLPListener:
		if err := rt.listener.stop(); err != nil {
			return err
		}
	case KindFileInbox:
		rt.poller.stopAndWait()
	case KindMLLPSender:
		rt.sender.close()
	}
	rt.status = StatusStopped
	return nil
}

// Test exercises an endpoint without committing to the run state the
// scenario engine would produce: for an MLLP sender it dials and
// immediately closes, for a FHIR-client it sends a minimal empty
// transaction bundle. Listener and file endpoints are not probed; Test
// reports success for them without binding a port or touching a directory.
func (m *Manager) Test(ctx context.Context, id uuid.UUID) (DispatchResult, error) {
	rt, err := m.runtimeFor(ctx, id)
	if err != nil {
		return DispatchResult{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch rt.endpoint.Kind {
	case KindFHIRClient:
		return rt.fhir.send(ctx, &fhir.Bundle{ResourceType: "Bundle", Type: "transaction"})
	case KindMLLPSender:
		return rt.sender.testConnect()
	default:
		return DispatchResult{Success: true}, nil
	}
}

// SendHL7 implements Dispatcher for MLLP-sender and file-outbox endpoints.
func (m *Manager) SendHL7(ctx context.Context, endpointID uuid.UUID, msg []byte) (DispatchResult, error) {
	rt, err := m.runtimeFor(ctx, endpointID)
	if err != nil {
		return DispatchResult{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch rt.endpoint.Kind {
	case KindMLLPSender:
		return rt.sender.send(msg)
	case KindFileOutbox:
		controlID := extractControlID(msg)
		return rt.outbox.write(controlID, msg)
	default:
		return DispatchResult{}, fmt.Errorf("endpoint: %s is not an HL7 sending endpoint", rt.endpoint.Name)
	}
}

// SendFHIR implements Dispatcher for FHIR-client endpoints.
func (m *Manager) SendFHIR(ctx context.Context, endpointID uuid.UUID, bundle *fhir.Bundle) (DispatchResult, error) {
	rt, err := m.runtimeFor(ctx, endpointID)
	if err != nil {
		return DispatchResult{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.endpoint.Kind != KindFHIRClient {
		return DispatchResult{}, fmt.Errorf("endpoint: %s is not a FHIR-client endpoint", rt.endpoint.Name)
	}
	return rt.fhir.send(ctx, bundle)
}
