package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

func ackMessage(controlID, code, text string) []byte {
	raw := "MSH|^~\\&|GAM|HOSP|BRIDGE|BRIDGE|20260115143025||ACK|" + controlID + "|P|2.5\r" +
		"MSA|" + code + "|" + controlID
	if text != "" {
		raw += "|" + text
	}
	return []byte(raw)
}

func TestClassifyACK_AAIsSuccess(t *testing.T) {
	result := classifyACK(ackMessage("MSG1", "AA", ""))
	assert.True(t, result.Success)
	assert.Equal(t, "AA", result.AckCode)
	assert.Empty(t, result.FailureKind)
}

func TestClassifyACK_AEIsAckRejected(t *testing.T) {
	result := classifyACK(ackMessage("MSG2", "AE", "unknown patient"))
	assert.False(t, result.Success)
	assert.Equal(t, "AE", result.AckCode)
	assert.Equal(t, FailureAckRejected, result.FailureKind)
	assert.Equal(t, "unknown patient", result.Detail)
}

func TestClassifyACK_ARIsAckError(t *testing.T) {
	result := classifyACK(ackMessage("MSG3", "AR", "internal error"))
	assert.False(t, result.Success)
	assert.Equal(t, "AR", result.AckCode)
	assert.Equal(t, FailureAckError, result.FailureKind)
}

func TestClassifyACK_UnparsableIsProtocolError(t *testing.T) {
	result := classifyACK([]byte("not an hl7 message"))
	assert.False(t, result.Success)
	assert.Equal(t, FailureProtocol, result.FailureKind)
}

func TestClassifyACK_MissingMSAIsProtocolError(t *testing.T) {
	raw := []byte("MSH|^~\\&|GAM|HOSP|BRIDGE|BRIDGE|20260115143025||ACK|MSG4|P|2.5")
	result := classifyACK(raw)
	assert.False(t, result.Success)
	assert.Equal(t, FailureProtocol, result.FailureKind)
}

func TestExtractControlID_ParsesMSH10(t *testing.T) {
	raw := []byte("MSH|^~\\&|BRIDGE|HOSP|GAM|GAM|20260115143025||ADT^A01|CTRL123|P|2.5")
	assert.Equal(t, "CTRL123", extractControlID(raw))
}

func TestExtractControlID_FallsBackToGeneratedIDOnParseFailure(t *testing.T) {
	id := extractControlID([]byte("garbage"))
	assert.NotEmpty(t, id)
	_, err := hl7v2.Parse([]byte("garbage"))
	assert.Error(t, err)
}
