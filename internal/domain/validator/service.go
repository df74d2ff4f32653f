package validator

import (
	"strings"

	"github.com/meddatabridge/pam-bridge/internal/domain/vocabulary"
	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

var legalActions = map[string]bool{"INSERT": true, "UPDATE": true, "CANCEL": true}

// Service applies the IHE PAM FR segment-level and cross-segment rules
// (spec §4.5) to a parsed message, optionally under a juridical entity's
// strict-mode policy.
type Service struct {
	vocab *vocabulary.Registry
}

func NewService(vocab *vocabulary.Registry) *Service {
	return &Service{vocab: vocab}
}

// Validate runs every PAM FR rule against msg and returns the accumulated
// diagnostics plus the derived ZBE action/historic/nature triple. strict
// enables the per-juridical-entity strict-PAM-FR policy (spec §4.5).
func (s *Service) Validate(msg *hl7v2.Message, strict bool) *Result {
	r := &Result{}

	s.validateMSH(msg, r)
	s.validatePID(msg, r)
	s.validatePV1(msg, r)
	s.validateEVN(msg, r)
	s.validateZBE(msg, r, strict)

	if strict && strings.HasSuffix(msg.Type, "A08") {
		r.add("STRICT_PAM_A08_FORBIDDEN", SeverityError, "MSH", 9, "strict PAM FR forbids A08")
	}

	return r
}

func (s *Service) validateMSH(msg *hl7v2.Message, r *Result) {
	msh := msg.GetSegment("MSH")
	if msh == nil {
		r.add("MSH_MISSING", SeverityError, "MSH", 0, "MSH segment is missing")
		return
	}
	for _, field := range []int{3, 4, 5, 6, 7, 9, 10} {
		if msh.GetField(field) == "" {
			r.add("MSH_FIELD_MISSING", SeverityError, "MSH", field, "mandatory MSH field is empty")
		}
	}
}

func (s *Service) validatePID(msg *hl7v2.Message, r *Result) {
	pid := msg.GetSegment("PID")
	if pid == nil {
		r.add("PID_MISSING", SeverityError, "PID", 0, "PID segment is missing")
		return
	}
	for _, field := range []int{3, 5, 7, 8} {
		if pid.GetField(field) == "" {
			r.add("PID_FIELD_MISSING", SeverityError, "PID", field, "mandatory PID field is empty")
		}
	}
}

func (s *Service) validatePV1(msg *hl7v2.Message, r *Result) {
	pv1 := msg.GetSegment("PV1")
	if pv1 == nil {
		r.add("PV1_MISSING", SeverityError, "PV1", 0, "PV1 segment is missing")
		return
	}
	for _, field := range []int{2, 19} {
		if pv1.GetField(field) == "" {
			r.add("PV1_FIELD_MISSING", SeverityError, "PV1", field, "mandatory PV1 field is empty")
		}
	}
	if strings.HasSuffix(msg.Type, "A02") && pv1.GetField(6) == "" {
		r.add("PV1_6_REQUIRED_ON_A02", SeverityError, "PV1", 6, "prior location is mandatory on a transfer")
	}
}

func (s *Service) validateEVN(msg *hl7v2.Message, r *Result) {
	evn := msg.GetSegment("EVN")
	if evn == nil {
		return
	}
	if evn.GetField(2) == "" {
		r.add("EVN2_MISSING", SeverityWarning, "EVN", 2, "recorded date/time is empty")
	}
}

func (s *Service) validateZBE(msg *hl7v2.Message, r *Result, strict bool) {
	zbe := msg.GetSegment("ZBE")
	if zbe == nil {
		r.ZBEAction = "INSERT"
		r.ZBENature = s.defaultNature(msg)
		return
	}

	if zbe.GetField(1) == "" {
		r.add("ZBE1_MISSING", SeverityError, "ZBE", 1, "at least one movement identifier is required")
	}
	if zbe.GetField(2) == "" {
		r.add("ZBE2_MISSING", SeverityError, "ZBE", 2, "valid movement timestamp is required")
	}

	action := zbe.GetField(4)
	if !legalActions[action] {
		r.add("ZBE4_ACTION_INVALID", SeverityWarning, "ZBE", 4, "unrecognized action, defaulting to INSERT")
		action = "INSERT"
	}
	r.ZBEAction = action

	historic := zbe.GetField(5)
	switch historic {
	case "Y":
		r.ZBEHistoric = true
	case "N", "":
		if historic == "" {
			r.add("ZBE5_MISSING", SeverityWarning, "ZBE", 5, "historic flag missing, defaulting to N")
		}
		r.ZBEHistoric = false
	default:
		r.add("ZBE5_MISSING", SeverityWarning, "ZBE", 5, "unrecognized historic flag, defaulting to N")
		r.ZBEHistoric = false
	}

	if (action == "UPDATE" || action == "CANCEL") && zbe.GetField(6) == "" {
		sev := SeverityWarning
		if strict {
			sev = SeverityError
		}
		r.add("ZBE6_REQUIRED", sev, "ZBE", 6, "original trigger is required for UPDATE/CANCEL, falling back to message trigger")
	}

	if zbe.GetComponent(7, 10) == "" {
		r.add("ZBE7_CODE_MISSING", SeverityError, "ZBE", 7, "functional unit code component is mandatory")
	}

	if zbe.GetField(8) == "" {
		r.add("ZBE8_MISSING", SeverityWarning, "ZBE", 8, "care functional unit is absent")
	}

	nature := zbe.GetField(9)
	if nature == "" || !vocabulary.IsLegalNature(vocabulary.Nature(nature)) {
		r.add("ZBE9_INVALID", SeverityWarning, "ZBE", 9, "nature missing or invalid, deriving from trigger")
		nature = s.defaultNature(msg)
	}
	r.ZBENature = nature
}

func (s *Service) defaultNature(msg *hl7v2.Message) string {
	n, ok := s.vocab.DefaultNatureForTrigger(msg.Type)
	if !ok {
		return ""
	}
	return string(n)
}
