package endpoint

import "github.com/meddatabridge/pam-bridge/internal/domain/outbound"

// Target builds the outbound generator's per-endpoint rendering parameters
// from this endpoint's configuration (spec §4.9's forced-identifier
// override is itself an Endpoint attribute, spec §4.11).
func (e *Endpoint) Target() outbound.Target {
	return outbound.Target{
		SendingApp:             e.SendingApp,
		SendingFac:             e.SendingFac,
		ReceivingApp:           e.ReceivingApp,
		ReceivingFac:           e.ReceivingFac,
		ForcedIdentifierSystem: e.ForcedIdentifierSystem,
		ForcedIdentifierOID:    e.ForcedIdentifierOID,
	}
}
