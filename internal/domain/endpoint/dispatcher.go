package endpoint

import (
	"context"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
)

// Dispatcher sends a rendered message through a named endpoint and
// classifies the result (spec §4.10 Replay step, §4.11). The scenario
// engine (C10) depends only on this interface so it never needs to know
// which transport kind a given endpoint id resolves to.
type Dispatcher interface {
	// SendHL7 sends framed HL7v2 bytes through an MLLP-sender endpoint and
	// waits for one ACK frame up to the endpoint's timeout.
	SendHL7(ctx context.Context, endpointID uuid.UUID, msg []byte) (DispatchResult, error)

	// SendFHIR POSTs a transaction Bundle to a FHIR-client endpoint and
	// reads the JSON response.
	SendFHIR(ctx context.Context, endpointID uuid.UUID, bundle *fhir.Bundle) (DispatchResult, error)
}
