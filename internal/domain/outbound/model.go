package outbound

import "github.com/meddatabridge/pam-bridge/internal/domain/venue"

// Target carries the per-endpoint generation parameters spec §4.9 names:
// the sending/receiving application pair for MSH-3..6, and the optional
// identifier override that replaces the assigning-authority component of
// every CX/Identifier this generation pass emits.
type Target struct {
	SendingApp             string
	SendingFac             string
	ReceivingApp           string
	ReceivingFac           string
	ForcedIdentifierSystem *string
	ForcedIdentifierOID    *string
}

// movementActionLabel renders a MovementAction as the ZBE-4 code.
func movementActionLabel(a venue.MovementAction) string {
	return string(a)
}
