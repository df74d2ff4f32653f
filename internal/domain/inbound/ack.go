package inbound

import (
	"fmt"
	"strings"
	"time"

	"github.com/meddatabridge/pam-bridge/internal/domain/validator"
)

// AckCode is an HL7 MSA-1 acknowledgement code (spec §6).
type AckCode string

const (
	AckAA AckCode = "AA" // accept
	AckAE AckCode = "AE" // application error, recoverable
	AckAR AckCode = "AR" // application reject
)

// buildAck renders an HL7 ACK: MSH + MSA [+ ERR per diagnostic] (spec §6).
// controlID is MSA-2, the original message's MSH-10, echoed back — or a
// synthesized value when the original control id could not be extracted
// (e.g. a framing failure before MSH-10 could be read).
func buildAck(code AckCode, controlID, text string, diagnostics []validator.Diagnostic) []byte {
	now := time.Now().UTC().Format("20060102150405")
	ackControlID := fmt.Sprintf("ACK%s", now)

	var segments []string
	segments = append(segments, fmt.Sprintf(
		"MSH|^~\\&|BRIDGE|BRIDGE|SENDER|SENDER|%s||ACK|%s|P|2.5.1", now, ackControlID,
	))
	segments = append(segments, fmt.Sprintf("MSA|%s|%s|%s", code, controlID, text))

	for _, d := range diagnostics {
		if d.Severity == validator.SeverityInfo {
			continue
		}
		segments = append(segments, fmt.Sprintf("ERR|||%s^%s|%s|%s", d.Code, d.Segment, severityCode(d.Severity), d.Text))
	}

	return []byte(strings.Join(segments, "\r") + "\r")
}

func severityCode(s validator.Severity) string {
	switch s {
	case validator.SeverityError:
		return "E"
	case validator.SeverityWarning:
		return "W"
	default:
		return "I"
	}
}

// synthesizeControlID produces a stand-in MSA-2 value when the raw
// message couldn't be parsed far enough to read MSH-10 (spec §4.8 step 1:
// "control-id echoed from raw if extractable, else synthesized").
func synthesizeControlID() string {
	return fmt.Sprintf("UNKNOWN%s", time.Now().UTC().Format("20060102150405.000"))
}
