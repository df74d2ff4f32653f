package inbound

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/validator"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

// triggersThatCreatePatient and triggersThatCreateDossier implement spec
// §4.8 step 3's PAM creation rules: "A01/A05 create patient+dossier+venue
// if absent; A28 creates patient; A04 creates an outpatient dossier."
var triggersThatCreatePatient = map[string]bool{"A01": true, "A05": true, "A28": true, "A04": true}
var triggersThatCreateDossier = map[string]bool{"A01": true, "A05": true, "A04": true}

// Pipeline implements the per-message inbound processing steps of spec
// §4.8: parse, validate, resolve, apply transition, log and ACK.
type Pipeline struct {
	Identifiers *identifier.Service
	IdentRepo   identifier.Repository
	Structure   *structure.Service
	Validator   *validator.Service
	Patients    *patient.Service
	Dossiers    *dossier.Service
	Venues      *venue.Service
	Log         *messagelog.Service
}

// Process runs one decoded message through the pipeline and returns the
// ACK bytes to send back on the same connection. A returned error is only
// non-nil for failures the caller cannot recover by ACKing (e.g. a
// persistence failure); every ACK-able outcome is returned as ACK bytes
// with a nil error, matching spec §7: "never crash the task."
func (p *Pipeline) Process(ctx context.Context, raw []byte, endpointID, juridicalEntityID uuid.UUID, strict bool) ([]byte, error) {
	msg, err := hl7v2.Parse(raw)
	if err != nil {
		return buildAck(AckAE, synthesizeControlID(), "FRAMING_ERROR", nil), nil
	}

	trigger := triggerFromType(msg.Type)
	controlID := msg.ControlID
	if controlID == "" {
		controlID = synthesizeControlID()
	}

	entry := &messagelog.Entry{
		ControlID: controlID,
		Trigger:   trigger,
		Direction: messagelog.DirectionInbound,
		Raw:       raw,
		Timestamp: msg.Timestamp,
		EndpointID: endpointID,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := p.Log.Open(ctx, entry); err != nil {
		if errors.Is(err, messagelog.ErrDuplicateControlID) {
			return buildAck(AckAE, controlID, "DUPLICATE_CONTROL_ID", nil), nil
		}
		return nil, err
	}

	if strings.HasPrefix(msg.Type, "MFN^") {
		return p.processMFN(ctx, msg, entry, controlID, juridicalEntityID)
	}

	result := p.Validator.Validate(msg, strict)
	if result.HasErrors() {
		p.Log.Fail(ctx, entry.ID, toLogDiagnostics(result.Diagnostics))
		return buildAck(AckAE, controlID, "VALIDATION_ERROR", result.Diagnostics), nil
	}

	pid := msg.GetSegment("PID")
	pv1 := msg.GetSegment("PV1")
	zbe := msg.GetSegment("ZBE")
	if zbe == nil {
		zbe = &hl7v2.Segment{Name: "ZBE"}
	}
	if pv1 == nil {
		pv1 = &hl7v2.Segment{Name: "PV1"}
	}
	if pid == nil {
		pid = &hl7v2.Segment{Name: "PID"}
	}

	if trigger == "A40" {
		return p.processMerge(ctx, msg, entry, pid, juridicalEntityID, controlID)
	}

	pat, ackBytes, err := p.resolvePatient(ctx, pid, trigger, juridicalEntityID, controlID)
	if err != nil {
		return nil, err
	}
	if ackBytes != nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return ackBytes, nil
	}

	dos, ackBytes, err := p.resolveDossier(ctx, pat, pid, trigger, juridicalEntityID, msg.Timestamp, controlID)
	if err != nil {
		return nil, err
	}
	if ackBytes != nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return ackBytes, nil
	}

	locationID, ackBytes, err := p.resolveLocation(ctx, pv1, juridicalEntityID, controlID)
	if err != nil {
		return nil, err
	}
	if ackBytes != nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return ackBytes, nil
	}

	var priorLocationID *uuid.UUID
	if trigger == "A12" {
		priorLocationID, _, err = p.resolveLocation(ctx, pv1, juridicalEntityID, controlID)
		if err != nil {
			return nil, err
		}
	}

	input := venue.MovementInput{
		Trigger:            trigger,
		Timestamp:          entry.Timestamp,
		Action:             movementActionFromZBE(result.ZBEAction),
		Historic:           result.ZBEHistoric,
		MedicalUFCode:      zbe.GetComponent(7, 10),
		MedicalUFLabel:     zbe.GetComponent(7, 1),
		Nature:             result.ZBENature,
		LocationNodeID:     locationID,
		RollbackLocationID: priorLocationID,
	}
	if careCode := zbe.GetComponent(8, 10); careCode != "" {
		label := zbe.GetComponent(8, 1)
		input.CareUFCode = &careCode
		input.CareUFLabel = &label
	}
	if orig := zbe.GetField(6); orig != "" {
		input.OriginalTrigger = &orig
	}

	visitNumber := pv1.GetField(19)
	_, err = p.Venues.Apply(ctx, dos.ID, visitNumber, input)
	if err != nil {
		var rejected *statemachine.Rejected
		if errors.As(err, &rejected) {
			p.Log.Fail(ctx, entry.ID, toLogDiagnostics([]validator.Diagnostic{{
				Code: "INVALID_TRANSITION", Severity: validator.SeverityError, Text: rejected.Reason,
			}}))
			return buildAck(AckAE, controlID, "INVALID_TRANSITION: "+rejected.Reason, nil), nil
		}
		return nil, err
	}

	if err := p.Log.Succeed(ctx, entry.ID, toLogDiagnostics(result.Diagnostics)); err != nil {
		return nil, err
	}
	return buildAck(AckAA, controlID, "", nil), nil
}

// processMerge implements ADT^A40 (spec §4.6 A40: "merge subject into the
// absorbing patient, re-point dossiers"). PID-3 carries the surviving
// patient's IPP; MRG-1 carries the absorbed (subject) patient's IPP. The
// subject's dossier at this juridical entity, if any, is repointed to the
// survivor before the patient records themselves are merged — unlike
// every other trigger, A40 never reaches venue.Service.Apply.
func (p *Pipeline) processMerge(ctx context.Context, msg *hl7v2.Message, entry *messagelog.Entry, pid *hl7v2.Segment, juridicalEntityID uuid.UUID, controlID string) ([]byte, error) {
	ns, err := p.IdentRepo.GetNamespace(ctx, identifier.TypeIPP, &juridicalEntityID)
	if err != nil {
		return nil, err
	}

	survivor, err := p.Patients.Resolve(ctx, ns.ID, pid.GetComponent(3, 1))
	if err != nil {
		return nil, err
	}
	if survivor == nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return buildAck(AckAE, controlID, "PATIENT_NOT_FOUND", nil), nil
	}

	mrg := msg.GetSegment("MRG")
	if mrg == nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return buildAck(AckAE, controlID, "MRG_MISSING", nil), nil
	}
	subject, err := p.Patients.Resolve(ctx, ns.ID, mrg.GetComponent(1, 1))
	if err != nil {
		return nil, err
	}
	if subject == nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return buildAck(AckAE, controlID, "MERGE_SUBJECT_NOT_FOUND", nil), nil
	}

	dos, err := p.Dossiers.Resolve(ctx, subject.ID, juridicalEntityID)
	if err != nil {
		return nil, err
	}
	if dos != nil {
		if err := p.Dossiers.Repoint(ctx, dos.ID, survivor.ID); err != nil {
			return nil, err
		}
	}

	if err := p.Patients.Merge(ctx, survivor, subject); err != nil {
		return nil, err
	}

	if err := p.Log.Succeed(ctx, entry.ID, nil); err != nil {
		return nil, err
	}
	return buildAck(AckAA, controlID, "", nil), nil
}

func (p *Pipeline) resolvePatient(ctx context.Context, pid *hl7v2.Segment, trigger string, juridicalEntityID uuid.UUID, controlID string) (*patient.Patient, []byte, error) {
	ns, err := p.IdentRepo.GetNamespace(ctx, identifier.TypeIPP, &juridicalEntityID)
	if err != nil {
		return nil, nil, err
	}
	ipp := pid.GetComponent(3, 1)

	pat, err := p.Patients.Resolve(ctx, ns.ID, ipp)
	if err != nil {
		return nil, nil, err
	}
	if pat != nil {
		return pat, nil, nil
	}
	if !triggersThatCreatePatient[trigger] {
		return nil, buildAck(AckAE, controlID, "PATIENT_NOT_FOUND", nil), nil
	}

	family, given := pid.GetComponent(5, 1), pid.GetComponent(5, 2)
	pat = &patient.Patient{
		FamilyName: family,
		GivenNames: strings.Fields(given),
		Sex:        patient.Sex(pid.GetField(8)),
	}
	if err := p.Patients.Create(ctx, pat); err != nil {
		return nil, nil, err
	}
	if err := p.Patients.AssignIdentifier(ctx, pat, ns.ID, ipp); err != nil {
		return nil, nil, err
	}
	return pat, nil, nil
}

func (p *Pipeline) resolveDossier(ctx context.Context, pat *patient.Patient, pid *hl7v2.Segment, trigger string, juridicalEntityID uuid.UUID, ts time.Time, controlID string) (*dossier.Dossier, []byte, error) {
	dos, err := p.Dossiers.Resolve(ctx, pat.ID, juridicalEntityID)
	if err != nil {
		return nil, nil, err
	}
	if dos != nil {
		return dos, nil, nil
	}
	if !triggersThatCreateDossier[trigger] {
		return nil, buildAck(AckAE, controlID, "VENUE_NOT_FOUND", nil), nil
	}

	ns, err := p.IdentRepo.GetNamespace(ctx, identifier.TypeNDA, &juridicalEntityID)
	if err != nil {
		return nil, nil, err
	}
	nda := pid.GetComponent(18, 1)
	dosType := dossier.TypeAmbulatoire
	if trigger == "A01" || trigger == "A05" {
		dosType = dossier.TypeHospitalise
	}
	dos, err = p.Dossiers.CreateForAdmit(ctx, pat.ID, juridicalEntityID, nda, ts, dosType)
	if err != nil {
		return nil, nil, err
	}
	if nda != "" {
		if err := p.Patients.AssignIdentifier(ctx, pat, ns.ID, nda); err != nil {
			return nil, nil, err
		}
	}
	return dos, nil, nil
}

func (p *Pipeline) resolveLocation(ctx context.Context, pv1 *hl7v2.Segment, juridicalEntityID uuid.UUID, controlID string) (*uuid.UUID, []byte, error) {
	code := pv1.GetComponent(3, 1)
	if code == "" {
		return nil, nil, nil
	}
	node, err := p.Structure.Resolve(ctx, structure.KindFunctionalUnit, code, &juridicalEntityID)
	if err != nil {
		var amb *structure.AmbiguityError
		if errors.As(err, &amb) {
			return nil, buildAck(AckAE, controlID, "STRUCTURE_AMBIGUITY", nil), nil
		}
		var nf *structure.NotFoundError
		if errors.As(err, &nf) {
			return nil, buildAck(AckAE, controlID, "UF_UNKNOWN", nil), nil
		}
		return nil, nil, err
	}
	return &node.ID, nil, nil
}

func triggerFromType(msgType string) string {
	parts := strings.Split(msgType, "^")
	if len(parts) < 2 {
		return msgType
	}
	return parts[1]
}

func movementActionFromZBE(action string) venue.MovementAction {
	switch action {
	case "UPDATE":
		return venue.MovementUpdate
	case "CANCEL":
		return venue.MovementCancel
	default:
		return venue.MovementInsert
	}
}

func toLogDiagnostics(ds []validator.Diagnostic) []messagelog.Diagnostic {
	out := make([]messagelog.Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, messagelog.Diagnostic{
			Code:     d.Code,
			Severity: messagelog.DiagnosticSeverity(d.Severity),
			Message:  d.Text,
		})
	}
	return out
}
