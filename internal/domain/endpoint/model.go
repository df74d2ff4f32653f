package endpoint

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the transport role an Endpoint plays (spec §4.11).
type Kind string

const (
	KindMLLPListener Kind = "MLLP_LISTENER"
	KindMLLPSender   Kind = "MLLP_SENDER"
	KindFileInbox    Kind = "FILE_INBOX"
	KindFileOutbox   Kind = "FILE_OUTBOX"
	KindFHIRClient   Kind = "FHIR_CLIENT"
)

// LifecycleStatus is an endpoint's current run state.
type LifecycleStatus string

const (
	StatusStopped LifecycleStatus = "stopped"
	StatusRunning LifecycleStatus = "running"
	StatusFailed  LifecycleStatus = "failed"
)

// Endpoint is a configured transport attachment (spec §4.11 "An Endpoint
// has attributes: type, host, port, inbox/outbox paths, file glob,
// optional TLS CA bundle, optional forced identifier system/OID, owning
// juridical entity").
type Endpoint struct {
	ID                uuid.UUID
	Name              string
	Kind              Kind
	JuridicalEntityID uuid.UUID

	Host string
	Port int

	InboxPath  string
	OutboxPath string
	FileGlob   string
	PollSecondsInterval int

	BaseURL string // FHIR-client target

	TLSCABundle *string

	ForcedIdentifierSystem *string
	ForcedIdentifierOID    *string

	SendingApp   string
	SendingFac   string
	ReceivingApp string
	ReceivingFac string

	CreatedAt time.Time
}

// FailureKind classifies a dispatch failure (spec §4.11, §7).
type FailureKind string

const (
	FailureConnectionRefused FailureKind = "CONNECTION_REFUSED"
	FailureHandshake         FailureKind = "HANDSHAKE_FAILURE"
	FailureTimeout           FailureKind = "READ_TIMEOUT"
	FailurePeerReset         FailureKind = "PEER_RESET"
	FailureProtocol          FailureKind = "PROTOCOL_ERROR"
	FailureAckRejected       FailureKind = "ACK_REJECTED" // AE
	FailureAckError          FailureKind = "ACK_ERROR"    // AR
	FailureHTTPError         FailureKind = "HTTP_ERROR"
)

// DispatchResult is the outcome of sending one rendered message through an
// endpoint (spec §4.10 Replay: "classify result (ACK type or HTTP 2xx)").
type DispatchResult struct {
	Success     bool
	AckCode     string // AA/AE/AR for MLLP, "" for FHIR
	HTTPStatus  int    // for FHIR-client, 0 for MLLP
	FailureKind FailureKind
	Detail      string
}

const (
	// DefaultACKTimeout is the MLLP-sender/FHIR-client wait before a send
	// is classified READ_TIMEOUT (spec §4.11, §5).
	DefaultACKTimeout = 30 * time.Second

	// DefaultIdleTeardown tears down an MLLP-sender connection that has
	// sent nothing for this long (spec §4.11).
	DefaultIdleTeardown = 60 * time.Second

	// ListenerDrainTimeout bounds how long a stopped listener waits for
	// in-flight connections before closing them (spec §5).
	ListenerDrainTimeout = 5 * time.Second
)
