package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
)

// fhirClient POSTs a transaction Bundle to a FHIR-client endpoint's base
// URL (spec §4.9, §4.11). No pack dependency offers a FHIR HTTP client, so
// this uses the standard library's net/http directly; see DESIGN.md.
type fhirClient struct {
	endpoint *Endpoint
	http     *http.Client
}

func newFHIRClient(e *Endpoint) *fhirClient {
	return &fhirClient{
		endpoint: e,
		http:     &http.Client{Timeout: DefaultACKTimeout},
	}
}

func (c *fhirClient) send(ctx context.Context, bundle *fhir.Bundle) (DispatchResult, error) {
	body, err := json.Marshal(bundle)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("endpoint: marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.BaseURL, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("endpoint: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/fhir+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPError(err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return DispatchResult{Success: true, HTTPStatus: resp.StatusCode}, nil
	}

	detail := fmt.Sprintf("unexpected status %d", resp.StatusCode)
	var outcome fhir.OperationOutcome
	if json.NewDecoder(resp.Body).Decode(&outcome) == nil && outcome.HasErrors() {
		detail = outcomeDetail(&outcome)
	}
	return DispatchResult{
		HTTPStatus:  resp.StatusCode,
		FailureKind: FailureHTTPError,
		Detail:      detail,
	}, nil
}

// outcomeDetail joins the diagnostics of an error-response OperationOutcome's
// issues, the shape a FHIR server reports bundle-transaction rejection.
func outcomeDetail(o *fhir.OperationOutcome) string {
	var msgs []string
	for _, issue := range o.Issue {
		if issue.Severity == fhir.IssueSeverityError || issue.Severity == fhir.IssueSeverityFatal {
			msgs = append(msgs, issue.Diagnostics)
		}
	}
	if len(msgs) == 0 {
		return "FHIR server rejected the bundle"
	}
	return strings.Join(msgs, "; ")
}

func classifyHTTPError(err error) DispatchResult {
	kind := FailureHTTPError
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		kind = FailureTimeout
	}
	return DispatchResult{FailureKind: kind, Detail: err.Error()}
}
