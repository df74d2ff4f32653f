package scenario

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/domain/vocabulary"
)

// ErrEmptyDossier is returned by Capture when the dossier has no
// movements to snapshot (spec §7 CAPTURE_EMPTY_DOSSIER).
var ErrEmptyDossier = fmt.Errorf("scenario: CAPTURE_EMPTY_DOSSIER")

// Capture snapshots every movement across every venue of dossierID, in
// chronological order, into a new ScenarioTemplate with no reference back
// to the dossier (spec §4.10 Capture). name, if empty, defaults to the
// generated key.
func (s *Service) Capture(ctx context.Context, dossierID uuid.UUID, name string) (*ScenarioTemplate, error) {
	venues, err := s.Venues.ListForDossier(ctx, dossierID)
	if err != nil {
		return nil, fmt.Errorf("scenario: capture: list venues: %w", err)
	}

	var flat []venue.Movement
	for _, v := range venues {
		flat = append(flat, v.Movements...)
	}
	if len(flat) == 0 {
		return nil, ErrEmptyDossier
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Timestamp.Before(flat[j].Timestamp)
	})

	steps := make([]ScenarioTemplateStep, 0, len(flat))
	var prevTS time.Time
	for i, m := range flat {
		delay := 0
		if i > 0 {
			delay = int(m.Timestamp.Sub(prevTS).Seconds())
		}
		prevTS = m.Timestamp

		semantic, trigger, role := s.inferSemantic(m)

		careCode, careLabel := "", ""
		if m.CareUFCode != nil {
			careCode = *m.CareUFCode
		}
		if m.CareUFLabel != nil {
			careLabel = *m.CareUFLabel
		}

		locationCode := ""
		if m.LocationNodeID != nil {
			node, err := s.Structure.Get(ctx, *m.LocationNodeID)
			if err != nil {
				return nil, fmt.Errorf("scenario: capture: resolve location: %w", err)
			}
			if node != nil {
				locationCode = node.Code
			}
		}

		steps = append(steps, ScenarioTemplateStep{
			OrderIndex:        i,
			SemanticCode:      semantic,
			Trigger:           trigger,
			Narrative:         fmt.Sprintf("%s at %s", semantic, m.Timestamp.Format(time.RFC3339)),
			Role:              role,
			DelayFromPrevious: delay,
			CapturedAt:        m.Timestamp,
			Payload: StepPayload{
				MovementAction: string(m.Action),
				Nature:         m.Nature,
				LocationCode:   locationCode,
				MedicalUFCode:  m.MedicalUFCode,
				MedicalUFLabel: m.MedicalUFLabel,
				CareUFCode:     careCode,
				CareUFLabel:    careLabel,
			},
		})
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("captured.dossier_%s_%d", dossierID, now.Unix())
	if name == "" {
		name = key
	}

	t := &ScenarioTemplate{
		Key:         key,
		Name:        name,
		Category:    "captured",
		Tags:        []string{"captured", "real-data", "dossier-" + dossierID.String()},
		Protocols:   []Protocol{ProtocolHL7v2, ProtocolFHIR},
		TimeConfig:  TimeConfig{Anchor: AnchorNone, PreserveIntervals: true},
		Steps:       steps,
		CreatedAt:   now,
	}
	if err := s.Repo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("scenario: capture: save template: %w", err)
	}
	return t, nil
}

// inferSemantic derives a step's semantic code, trigger, and role from its
// movement (spec §4.10: "infer_semantic(trigger, venue-status-at-that-point,
// movement type) → semantic code, trigger, role"). A CANCEL movement's
// Trigger field already carries the cancelling trigger (A11/A12/A13), so
// its own mapping (ADMISSION_CANCELLED etc.) is used directly.
func (s *Service) inferSemantic(m venue.Movement) (semantic, trigger string, role vocabulary.MessageRole) {
	wireTrigger := "ADT^" + m.Trigger
	mapping, err := s.Vocabulary.ByTrigger(wireTrigger)
	if err != nil {
		return "UNKNOWN", wireTrigger, vocabulary.RoleUpdate
	}
	return mapping.SemanticCode, mapping.Trigger, mapping.Role
}
