package messagelog

import (
	"time"

	"github.com/google/uuid"
)

// Direction classifies a logged message (spec §3 MessageLog entry).
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status is the lifecycle stage of a logged message. It transitions
// pending→success or pending→error exactly once; no other transition is
// legal (spec §3: "status may transition pending→success|error exactly
// once").
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DiagnosticSeverity mirrors validator.Severity without importing that
// package, since a logged diagnostic outlives the validation call that
// produced it and may originate from the state machine or codec instead.
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
	SeverityInfo    DiagnosticSeverity = "info"
)

// Diagnostic is one recorded finding attached to a log entry.
type Diagnostic struct {
	Code     string
	Severity DiagnosticSeverity
	Message  string
}

// Entry is one wire event (spec §3 MessageLog entry). Append-only: once
// created, only Status and Diagnostics may change, and Status only once.
type Entry struct {
	ID            uuid.UUID
	ControlID     string
	Trigger       string
	Direction     Direction
	CorrelationID uuid.UUID
	Raw           []byte
	Timestamp     time.Time
	Status        Status
	Diagnostics   []Diagnostic
	EndpointID    uuid.UUID
}
