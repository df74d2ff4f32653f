package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// templateDoc is the wire shape of the scenario import/export format
// (spec §6: "JSON object with required keys key, name, protocol, steps,
// and optional description, category, tags, time_config"). Protocols is
// plural here since a template's supported protocol set is itself a set
// (ScenarioTemplate.Protocols), not the single value the distilled spec
// text names — see DESIGN.md for this Open Question decision.
type templateDoc struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Protocols   []Protocol     `json:"protocols"`
	TimeConfig  *timeConfigDoc `json:"time_config,omitempty"`
	Steps       []stepDoc      `json:"steps"`

	// OverrideKey, when set, is used in place of Key so an import never
	// fails with ErrDuplicateKey even if Key already exists (spec §6:
	// "duplicate key fails unless override_key is supplied").
	OverrideKey string `json:"override_key,omitempty"`
}

type timeConfigDoc struct {
	Anchor            AnchorMode `json:"anchor"`
	OffsetDays        int        `json:"offset_days,omitempty"`
	FixedStart        *time.Time `json:"fixed_start,omitempty"`
	PreserveIntervals bool       `json:"preserve_intervals,omitempty"`
	JitterMinMinutes  int        `json:"jitter_min_minutes,omitempty"`
	JitterMaxMinutes  int        `json:"jitter_max_minutes,omitempty"`
}

type stepDoc struct {
	OrderIndex   int         `json:"order_index"`
	MessageType  string      `json:"message_type"`
	Format       *Protocol   `json:"format,omitempty"`
	DelaySeconds int         `json:"delay_seconds"`
	Payload      StepPayload `json:"payload"`
	SemanticCode string      `json:"semantic_code,omitempty"`
	Narrative    string      `json:"narrative,omitempty"`
}

// ImportTemplate parses one template document and persists it, rejecting
// a duplicate key unless the document supplies override_key (spec §6).
// The whole import is atomic: a step-parse failure leaves no partial
// template behind, since CreateTemplate is only called once the full
// ScenarioTemplate is built.
func (s *Service) ImportTemplate(ctx context.Context, data []byte) (*ScenarioTemplate, error) {
	var doc templateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scenario: import: invalid document: %w", err)
	}
	if doc.Key == "" || doc.Name == "" || len(doc.Steps) == 0 {
		return nil, fmt.Errorf("scenario: import: key, name and steps are required")
	}

	key := doc.Key
	if doc.OverrideKey != "" {
		key = doc.OverrideKey
	} else {
		existing, err := s.Repo.GetTemplateByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("scenario: import: check existing key: %w", err)
		}
		if existing != nil {
			return nil, &ErrDuplicateKey{Key: key}
		}
	}

	t := &ScenarioTemplate{
		ID:          uuid.New(),
		Key:         key,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Tags:        doc.Tags,
		Protocols:   doc.Protocols,
	}
	if doc.TimeConfig != nil {
		t.TimeConfig = TimeConfig{
			Anchor:            doc.TimeConfig.Anchor,
			OffsetDays:        doc.TimeConfig.OffsetDays,
			FixedStart:        doc.TimeConfig.FixedStart,
			PreserveIntervals: doc.TimeConfig.PreserveIntervals,
			JitterMinMinutes:  doc.TimeConfig.JitterMinMinutes,
			JitterMaxMinutes:  doc.TimeConfig.JitterMaxMinutes,
		}
	}
	for _, st := range doc.Steps {
		step := ScenarioTemplateStep{
			OrderIndex:        st.OrderIndex,
			Trigger:           st.MessageType,
			SemanticCode:      st.SemanticCode,
			Narrative:         st.Narrative,
			DelayFromPrevious: st.DelaySeconds,
			Payload:           st.Payload,
			DefaultProtocol:   st.Format,
		}
		t.Steps = append(t.Steps, step)
	}

	if err := s.Repo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("scenario: import: create: %w", err)
	}
	return t, nil
}

// ExportTemplate renders a persisted template back into the same
// document shape ImportTemplate accepts, so an export can be re-imported
// unchanged.
func (s *Service) ExportTemplate(ctx context.Context, id uuid.UUID) ([]byte, error) {
	t, err := s.Repo.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("scenario: export: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("scenario: export: template %s not found", id)
	}

	doc := templateDoc{
		Key:         t.Key,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Tags:        t.Tags,
		Protocols:   t.Protocols,
		TimeConfig: &timeConfigDoc{
			Anchor:            t.TimeConfig.Anchor,
			OffsetDays:        t.TimeConfig.OffsetDays,
			FixedStart:        t.TimeConfig.FixedStart,
			PreserveIntervals: t.TimeConfig.PreserveIntervals,
			JitterMinMinutes:  t.TimeConfig.JitterMinMinutes,
			JitterMaxMinutes:  t.TimeConfig.JitterMaxMinutes,
		},
	}
	for _, st := range t.Steps {
		doc.Steps = append(doc.Steps, stepDoc{
			OrderIndex:   st.OrderIndex,
			MessageType:  st.Trigger,
			Format:       st.DefaultProtocol,
			DelaySeconds: st.DelayFromPrevious,
			Payload:      st.Payload,
			SemanticCode: st.SemanticCode,
			Narrative:    st.Narrative,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
