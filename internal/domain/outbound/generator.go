package outbound

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
)

// Input bundles the canonical entities needed to render one outbound
// message (spec §4.9: "generate(canonical, trigger, endpoint) → bytes").
type Input struct {
	Patient           *patient.Patient
	Dossier           *dossier.Dossier
	Venue             *venue.Venue
	Movement          venue.Movement
	Trigger           string
	JuridicalEntityID uuid.UUID
	Target            Target

	// AbsorbedPatient is set only for an A40 merge: the patient record
	// subsumed into Patient, whose IPP populates MRG-1 (spec "HL7 message
	// shape (outbound)": "On A40, MRG-1 carries the absorbed patient's
	// IPP CX").
	AbsorbedPatient *patient.Patient
}

// Generator renders canonical entities into HL7v2 and FHIR wire formats
// (spec §4.9), resolving identifier namespaces and structure labels on
// demand rather than requiring the caller to pre-fetch them.
type Generator struct {
	Identifiers identifier.Repository
	Structure   *structure.Service
}

func NewGenerator(identifiers identifier.Repository, structureSvc *structure.Service) *Generator {
	return &Generator{Identifiers: identifiers, Structure: structureSvc}
}

// namespaceSet holds the resolved namespaces for one generation pass.
type namespaceSet struct {
	ipp *identifier.Namespace
	nda *identifier.Namespace
	vn  *identifier.Namespace
	mvt *identifier.Namespace
}

func (g *Generator) resolveNamespaces(ctx context.Context, juridicalEntityID uuid.UUID) (*namespaceSet, error) {
	ns := &namespaceSet{}
	var err error
	if ns.ipp, err = g.Identifiers.GetNamespace(ctx, identifier.TypeIPP, &juridicalEntityID); err != nil {
		return nil, fmt.Errorf("outbound: resolve IPP namespace: %w", err)
	}
	if ns.nda, err = g.Identifiers.GetNamespace(ctx, identifier.TypeNDA, &juridicalEntityID); err != nil {
		return nil, fmt.Errorf("outbound: resolve NDA namespace: %w", err)
	}
	if ns.vn, err = g.Identifiers.GetNamespace(ctx, identifier.TypeVN, &juridicalEntityID); err != nil {
		return nil, fmt.Errorf("outbound: resolve VN namespace: %w", err)
	}
	if ns.mvt, err = g.Identifiers.GetNamespace(ctx, identifier.TypeMVT, &juridicalEntityID); err != nil {
		return nil, fmt.Errorf("outbound: resolve MVT namespace: %w", err)
	}
	return ns, nil
}

// GenerateHL7 builds the outbound ADT message: MSH, EVN, PID, PV1, ZBE
// (spec §4.9 and the segment order/field-fidelity list in spec §6).
func (g *Generator) GenerateHL7(ctx context.Context, in Input) ([]byte, error) {
	ns, err := g.resolveNamespaces(ctx, in.JuridicalEntityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	segments := []string{
		buildMSH(in.Target, now, in.Trigger),
		buildEVN(in.Trigger, in.Movement.Timestamp),
		buildPID(in.Patient, in.Dossier, ns, in.Target),
	}

	if in.Trigger == "A40" && in.AbsorbedPatient != nil {
		segments = append(segments, buildMRG(in.AbsorbedPatient, ns, in.Target))
	}

	pv1, err := g.buildPV1(ctx, in, ns)
	if err != nil {
		return nil, err
	}
	segments = append(segments, pv1)
	segments = append(segments, buildZBE(in.Movement, ns, in.Target))

	return []byte(strings.Join(segments, "\r") + "\r"), nil
}

func buildMSH(target Target, now time.Time, trigger string) string {
	timestamp := now.Format("20060102150405")
	controlID := "MSG" + uuid.New().String()
	return fmt.Sprintf("MSH|^~\\&|%s|%s|%s|%s|%s||ADT^%s|%s|P|2.5.1",
		target.SendingApp, target.SendingFac, target.ReceivingApp, target.ReceivingFac,
		timestamp, trigger, controlID)
}

func buildEVN(trigger string, eventTime time.Time) string {
	return fmt.Sprintf("EVN|%s|%s", trigger, eventTime.UTC().Format("20060102150405"))
}

func buildPID(pat *patient.Patient, dos *dossier.Dossier, ns *namespaceSet, target Target) string {
	var idField string
	if pid := pat.PrimaryIdentifier(ns.ipp.ID); pid != nil {
		idField = cx(ns.ipp, pid.Value, target)
	}
	name := escapeHL7(pat.FamilyName) + "^" + escapeHL7(strings.Join(pat.GivenNames, " "))
	dob := pat.BirthDate.UTC().Format("20060102")

	var ndaField string
	if dos != nil {
		ndaField = cx(ns.nda, dos.SequenceNumber, target)
	}

	insField := ""
	if pat.NationalIdentifier != nil {
		insField = escapeHL7(pat.NationalIdentifier.Value)
	}

	return fmt.Sprintf("PID|1||%s||%s||%s|%s||||||||||%s|||||%s",
		idField, name, dob, sexCode(pat.Sex), ndaField, insField)
}

func sexCode(s patient.Sex) string {
	switch s {
	case patient.SexMale:
		return "M"
	case patient.SexFemale:
		return "F"
	case patient.SexOther:
		return "O"
	default:
		return "U"
	}
}

// buildMRG renders the A40 merge segment: MRG-1 carries the absorbed
// patient's IPP CX, the only field the outbound shape requires.
func buildMRG(absorbed *patient.Patient, ns *namespaceSet, target Target) string {
	var idField string
	if pid := absorbed.PrimaryIdentifier(ns.ipp.ID); pid != nil {
		idField = cx(ns.ipp, pid.Value, target)
	}
	return fmt.Sprintf("MRG|%s", idField)
}

func (g *Generator) buildPV1(ctx context.Context, in Input, ns *namespaceSet) (string, error) {
	location := ""
	if in.Venue != nil && in.Venue.CurrentLocationID != nil {
		label, err := g.locationLabel(ctx, *in.Venue.CurrentLocationID)
		if err != nil {
			return "", err
		}
		location = label
	}

	priorLocation := ""
	if in.Trigger == "A02" && in.Movement.PriorLocationNodeID != nil {
		// PV1-6 is the location the patient is leaving: the venue's
		// location as it stood before this transfer's movement was
		// applied, captured by venue.Service.Apply on the movement itself.
		label, err := g.locationLabel(ctx, *in.Movement.PriorLocationNodeID)
		if err != nil {
			return "", err
		}
		priorLocation = label
	}

	var vn string
	if in.Venue != nil {
		vn = cx(ns.vn, in.Venue.SequenceNumber, in.Target)
	}

	patientClass := patientClassCode(in.Dossier)

	return fmt.Sprintf("PV1|1|%s|%s|||%s|||||||||||||%s",
		patientClass, location, priorLocation, vn), nil
}

func patientClassCode(d *dossier.Dossier) string {
	if d == nil {
		return ""
	}
	switch d.Type {
	case dossier.TypeHospitalise:
		return "I"
	case dossier.TypeAmbulatoire:
		return "O"
	case dossier.TypeUrgences:
		return "E"
	case dossier.TypeExterne:
		return "O"
	default:
		return ""
	}
}

func (g *Generator) locationLabel(ctx context.Context, nodeID uuid.UUID) (string, error) {
	node, err := g.Structure.Get(ctx, nodeID)
	if err != nil {
		return "", fmt.Errorf("outbound: resolve location: %w", err)
	}
	if node == nil {
		return "", nil
	}
	return escapeHL7(node.Code), nil
}

func buildZBE(m venue.Movement, ns *namespaceSet, target Target) string {
	mvtID := cx(ns.mvt, fmt.Sprintf("%d", m.Sequence), target)
	origTrigger := ""
	if m.OriginalTrigger != nil {
		origTrigger = *m.OriginalTrigger
	}
	medicalUF := escapeHL7(m.MedicalUFLabel) + strings.Repeat("^", 9) + escapeHL7(m.MedicalUFCode)

	careUF := ""
	if m.CareUFCode != nil {
		label := ""
		if m.CareUFLabel != nil {
			label = *m.CareUFLabel
		}
		careUF = escapeHL7(label) + strings.Repeat("^", 9) + escapeHL7(*m.CareUFCode)
	}

	historic := "N"
	if m.Historic {
		historic = "Y"
	}

	return fmt.Sprintf("ZBE|%s|%s||%s|%s|%s|%s|%s|%s",
		mvtID, m.Timestamp.UTC().Format("20060102150405"), movementActionLabel(m.Action),
		historic, origTrigger, medicalUF, careUF, m.Nature)
}

// cx renders value under namespace ns as an HL7 CX composite, applying
// the endpoint's forced identifier system/OID override (spec §4.9) to the
// assigning-authority component in place of the namespace's own OID/URI.
func cx(ns *identifier.Namespace, value string, target Target) string {
	return value + "^^^" + assigningAuthority(ns, target) + "^" + ns.HL7TypeCode()
}

func assigningAuthority(ns *identifier.Namespace, target Target) string {
	if target.ForcedIdentifierOID != nil && *target.ForcedIdentifierOID != "" {
		return *target.ForcedIdentifierOID
	}
	if target.ForcedIdentifierSystem != nil && *target.ForcedIdentifierSystem != "" {
		return *target.ForcedIdentifierSystem
	}
	return ns.AssigningAuthority()
}

// identifierSystem returns the FHIR Identifier.system value, applying the
// same per-endpoint override cx applies to the HL7 assigning authority.
func identifierSystem(ns *identifier.Namespace, target Target) string {
	return assigningAuthority(ns, target)
}

// escapeHL7 escapes the HL7 delimiter characters in free text (spec §4.1).
func escapeHL7(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\E\\")
	s = strings.ReplaceAll(s, "|", "\\F\\")
	s = strings.ReplaceAll(s, "^", "\\S\\")
	s = strings.ReplaceAll(s, "~", "\\R\\")
	s = strings.ReplaceAll(s, "&", "\\T\\")
	return s
}
