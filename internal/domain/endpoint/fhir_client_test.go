package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
)

func TestFHIRClient_Send_2xxIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/fhir+json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/fhir+json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"resourceType":"Bundle","type":"transaction-response"}`))
	}))
	defer server.Close()

	c := newFHIRClient(&Endpoint{BaseURL: server.URL})
	result, err := c.send(context.Background(), &fhir.Bundle{ResourceType: "Bundle", Type: "transaction"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
}

func TestFHIRClient_Send_NonSuccessStatusIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newFHIRClient(&Endpoint{BaseURL: server.URL})
	result, err := c.send(context.Background(), &fhir.Bundle{ResourceType: "Bundle", Type: "transaction"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, FailureHTTPError, result.FailureKind)
	assert.Equal(t, http.StatusBadRequest, result.HTTPStatus)
}

func TestFHIRClient_Send_OperationOutcomeDiagnosticsSurfaceInDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[
			{"severity":"error","code":"invalid","diagnostics":"Patient.birthDate: invalid date"}
		]}`))
	}))
	defer server.Close()

	c := newFHIRClient(&Endpoint{BaseURL: server.URL})
	result, err := c.send(context.Background(), &fhir.Bundle{ResourceType: "Bundle", Type: "transaction"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Patient.birthDate: invalid date", result.Detail)
}

func TestFHIRClient_Send_UnreachableHostIsClassified(t *testing.T) {
	c := newFHIRClient(&Endpoint{BaseURL: "http://127.0.0.1:1"})
	result, err := c.send(context.Background(), &fhir.Bundle{ResourceType: "Bundle", Type: "transaction"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FailureKind)
}
