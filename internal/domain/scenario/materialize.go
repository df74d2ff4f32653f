package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/outbound"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
)

// MaterializeOptions controls identifier reuse and prefix overrides for one
// materialization pass (spec §4.10 Materialization, and the CLI's
// `--ipp-prefix`/`--nda-prefix` replay flags in spec §6).
type MaterializeOptions struct {
	ReuseIPP          string
	ReuseNDA          string
	ReuseVN           string
	IPPPrefixOverride string
	NDAPrefixOverride string
}

// RenderedMessage is one materialized step, rendered into the wire
// format(s) the protocol requested.
type RenderedMessage struct {
	OrderIndex int
	HL7        []byte
	FHIR       *fhir.Bundle
}

// MaterializedIdentifiers are the sequence-wide identifiers Materialize
// allocated, returned so Replay can record them on the Run.
type MaterializedIdentifiers struct {
	IPP string
	NDA string
	VN  string
}

// Materialize renders an ordered list of messages from template: one IPP,
// one NDA, and one VN are allocated for the whole sequence (or reused per
// opts), and each step's movement carries its own sequence number, exactly
// as a real venue's movements do (spec §4.10: "allocates ... one MVT per
// step" — here the per-step identifier is the movement sequence number
// under the VN's own namespace, mirroring how a real inbound ZBE-1 is
// rendered by the outbound generator, not a separately-pooled value).
func (s *Service) Materialize(ctx context.Context, template *ScenarioTemplate, protocol Protocol, juridicalEntityID uuid.UUID, target outbound.Target, opts MaterializeOptions) ([]RenderedMessage, *MaterializedIdentifiers, []time.Time, error) {
	ids, err := s.allocateSequenceIdentifiers(ctx, juridicalEntityID, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	ippNS, err := s.IdentRepo.GetNamespace(ctx, identifier.TypeIPP, &juridicalEntityID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scenario: materialize: resolve IPP namespace: %w", err)
	}

	pat := &patient.Patient{
		ID:         uuid.New(),
		FamilyName: "SCENARIO",
		GivenNames: []string{"REPLAY"},
		Sex:        patient.SexUnknown,
	}
	pat.ExternalIdentifiers = append(pat.ExternalIdentifiers, patient.ExternalIdentifier{
		NamespaceID: ippNS.ID, Value: ids.IPP, Primary: true,
	})

	dos := &dossier.Dossier{
		ID:                uuid.New(),
		PatientID:          pat.ID,
		JuridicalEntityID:  juridicalEntityID,
		SequenceNumber:     ids.NDA,
		Type:               dossierTypeForRole(template),
	}

	schedule, err := s.shiftTimes(template, len(template.Steps))
	if err != nil {
		return nil, nil, nil, err
	}

	out := make([]RenderedMessage, 0, len(template.Steps))
	var prevLocationID *uuid.UUID
	for i, step := range template.Steps {
		var locationID *uuid.UUID
		if step.Payload.LocationCode != "" {
			node, err := s.Structure.Resolve(ctx, structure.KindFunctionalUnit, step.Payload.LocationCode, &juridicalEntityID)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("scenario: materialize: resolve step %d location: %w", i, err)
			}
			locationID = &node.ID
		}

		v := &venue.Venue{
			ID:                dos.ID, // a replay venue shares the dossier's synthetic identity; it is never persisted
			DossierID:         dos.ID,
			SequenceNumber:    ids.VN,
			Start:             schedule[0],
			Status:            statemachine.StatusActive,
			CurrentLocationID: locationID,
		}

		careCode, careLabel := (*string)(nil), (*string)(nil)
		if step.Payload.CareUFCode != "" {
			c, l := step.Payload.CareUFCode, step.Payload.CareUFLabel
			careCode, careLabel = &c, &l
		}

		movement := venue.Movement{
			Sequence:            i + 1,
			Timestamp:           schedule[i],
			Trigger:             bareTrigger(step.Trigger),
			Action:              venue.MovementAction(step.Payload.MovementAction),
			MedicalUFCode:       step.Payload.MedicalUFCode,
			MedicalUFLabel:      step.Payload.MedicalUFLabel,
			CareUFCode:          careCode,
			CareUFLabel:         careLabel,
			Nature:              step.Payload.Nature,
			LocationNodeID:      locationID,
			PriorLocationNodeID: prevLocationID,
		}
		if locationID != nil {
			prevLocationID = locationID
		}

		in := outbound.Input{
			Patient: pat, Dossier: dos, Venue: v, Movement: movement,
			Trigger: bareTrigger(step.Trigger), JuridicalEntityID: juridicalEntityID, Target: target,
		}

		rendered := RenderedMessage{OrderIndex: step.OrderIndex}
		switch protocol {
		case ProtocolFHIR:
			bundle, err := s.Generator.GenerateFHIR(ctx, in)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("scenario: materialize: step %d: %w", i, err)
			}
			rendered.FHIR = bundle
		default:
			b, err := s.Generator.GenerateHL7(ctx, in)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("scenario: materialize: step %d: %w", i, err)
			}
			rendered.HL7 = b
		}
		out = append(out, rendered)
	}

	return out, ids, schedule, nil
}

func (s *Service) allocateSequenceIdentifiers(ctx context.Context, juridicalEntityID uuid.UUID, opts MaterializeOptions) (*MaterializedIdentifiers, error) {
	ids := &MaterializedIdentifiers{IPP: opts.ReuseIPP, NDA: opts.ReuseNDA, VN: opts.ReuseVN}

	if ids.IPP == "" {
		ns, err := s.IdentRepo.GetNamespace(ctx, identifier.TypeIPP, &juridicalEntityID)
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: resolve IPP namespace: %w", err)
		}
		res, err := s.Identifiers.Allocate(ctx, ns, opts.IPPPrefixOverride)
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: allocate IPP: %w", err)
		}
		ids.IPP = res.Value
	}
	if ids.NDA == "" {
		ns, err := s.IdentRepo.GetNamespace(ctx, identifier.TypeNDA, &juridicalEntityID)
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: resolve NDA namespace: %w", err)
		}
		res, err := s.Identifiers.Allocate(ctx, ns, opts.NDAPrefixOverride)
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: allocate NDA: %w", err)
		}
		ids.NDA = res.Value
	}
	if ids.VN == "" {
		ns, err := s.IdentRepo.GetNamespace(ctx, identifier.TypeVN, &juridicalEntityID)
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: resolve VN namespace: %w", err)
		}
		res, err := s.Identifiers.Allocate(ctx, ns, "")
		if err != nil {
			return nil, fmt.Errorf("scenario: materialize: allocate VN: %w", err)
		}
		ids.VN = res.Value
	}
	return ids, nil
}

func dossierTypeForRole(t *ScenarioTemplate) dossier.Type {
	for _, step := range t.Steps {
		if step.Trigger == "ADT^A04" {
			return dossier.TypeAmbulatoire
		}
	}
	return dossier.TypeHospitalise
}

// bareTrigger strips the "ADT^"/"MFN^" segment prefix a step's Trigger
// carries, matching outbound.Input.Trigger's bare form ("A02").
func bareTrigger(wireTrigger string) string {
	for i := len(wireTrigger) - 1; i >= 0; i-- {
		if wireTrigger[i] == '^' {
			return wireTrigger[i+1:]
		}
	}
	return wireTrigger
}
