package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/platform/fhir"
	"github.com/meddatabridge/pam-bridge/pkg/fhirmodels"
)

// zbeExtensionURL is the proprietary Encounter extension carrying the
// ZBE-equivalent French movement attributes the FHIR core resources have
// no standard home for (SPEC_FULL.md §7 open-question decision).
const zbeExtensionURL = "https://bridge.internal/fhir/StructureDefinition/zbe-movement"

// GenerateFHIR builds a transaction Bundle of Patient, Organization,
// Location, Encounter — the FHIR-path analogue of GenerateHL7 (spec
// §4.9: "FHIR path builds a Bundle of Patient + Organization + Location +
// Encounter with analogous mapping; identifier.system is overridden
// identically").
func (g *Generator) GenerateFHIR(ctx context.Context, in Input) (*fhir.Bundle, error) {
	ns, err := g.resolveNamespaces(ctx, in.JuridicalEntityID)
	if err != nil {
		return nil, err
	}

	je, err := g.Structure.Get(ctx, in.JuridicalEntityID)
	if err != nil {
		return nil, fmt.Errorf("outbound: resolve juridical entity: %w", err)
	}

	org := organizationResource(je)

	var loc map[string]interface{}
	var locRef string
	if in.Venue != nil && in.Venue.CurrentLocationID != nil {
		node, err := g.Structure.Get(ctx, *in.Venue.CurrentLocationID)
		if err != nil {
			return nil, fmt.Errorf("outbound: resolve location: %w", err)
		}
		if node != nil {
			loc = locationResource(node)
			locRef = fhir.FormatReference("Location", node.ID.String())
		}
	}

	patID := uuid.New().String()
	if in.Patient != nil {
		patID = in.Patient.ID.String()
	}
	pat := patientResource(in.Patient, ns, in.Target, patID)
	enc := encounterResource(in, ns, locRef, fhir.FormatReference("Patient", patID))

	now := time.Now().UTC()
	entries := []fhir.BundleEntry{
		bundleEntry(pat, "Patient"),
		bundleEntry(org, "Organization"),
	}
	if loc != nil {
		entries = append(entries, bundleEntry(loc, "Location"))
	}
	entries = append(entries, bundleEntry(enc, "Encounter"))

	return &fhir.Bundle{
		ResourceType: "Bundle",
		Type:         "transaction",
		Timestamp:    &now,
		Entry:        entries,
	}, nil
}

func bundleEntry(resource interface{}, resourceType string) fhir.BundleEntry {
	raw, _ := json.Marshal(resource)
	return fhir.BundleEntry{
		Resource: raw,
		Request:  &fhir.BundleRequest{Method: "POST", URL: resourceType},
	}
}

// patientResource renders a Patient resource: identifiers carry type
// PI (IPP) and AN (NDA, if a dossier identifier is known), with system
// overridden per target exactly as the HL7 CX assigning authority is
// (spec §6 "Patient identifiers carry system ... overridden per endpoint").
func patientResource(pat *patient.Patient, ns *namespaceSet, target Target, id string) map[string]interface{} {
	res := map[string]interface{}{
		"resourceType": "Patient",
		"id":           id,
	}
	if pat == nil {
		return res
	}

	var identifiers []fhir.Identifier
	if primary := pat.PrimaryIdentifier(ns.ipp.ID); primary != nil {
		identifiers = append(identifiers, fhir.Identifier{
			System: identifierSystem(ns.ipp, target),
			Value:  primary.Value,
			Type:   &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "PI"}}},
		})
	}
	for _, ext := range pat.ExternalIdentifiers {
		if ext.NamespaceID == ns.nda.ID {
			identifiers = append(identifiers, fhir.Identifier{
				System: identifierSystem(ns.nda, target),
				Value:  ext.Value,
				Type:   &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "AN"}}},
			})
		}
	}

	res["identifier"] = identifiers
	res["name"] = []fhir.HumanName{{Family: pat.FamilyName, Given: pat.GivenNames}}
	res["gender"] = fhirGender(pat.Sex)
	if !pat.BirthDate.IsZero() {
		res["birthDate"] = pat.BirthDate.UTC().Format("2006-01-02")
	}
	return res
}

func fhirGender(s patient.Sex) string {
	switch s {
	case patient.SexMale:
		return "male"
	case patient.SexFemale:
		return "female"
	case patient.SexOther:
		return "other"
	default:
		return "unknown"
	}
}

// organizationResource renders the owning juridical entity as an
// Organization — the structure hierarchy's FHIR-visible counterpart
// described in SPEC_FULL.md §5.
func organizationResource(je *structure.Node) map[string]interface{} {
	res := map[string]interface{}{"resourceType": "Organization"}
	if je == nil {
		return res
	}
	res["id"] = je.ID.String()
	res["name"] = je.Label
	res["identifier"] = []fhir.Identifier{{Value: je.Code}}
	return res
}

// locationResource renders one structure node as a Location resource.
func locationResource(n *structure.Node) map[string]interface{} {
	res := map[string]interface{}{
		"resourceType": "Location",
		"id":           n.ID.String(),
		"name":         n.Label,
		"identifier":   []fhir.Identifier{{Value: n.Code}},
	}
	if n.ParentID != nil {
		res["partOf"] = fhir.Reference{Reference: fhir.FormatReference("Location", n.ParentID.String())}
	}
	return res
}

// encounterResource renders the venue/movement pair as an Encounter,
// with the ZBE-equivalent movement attributes on the proprietary
// extension (spec §6: "Encounter carries identifier with type VN,
// status derived from venue status, class from dossier type, and a
// location[] list").
func encounterResource(in Input, ns *namespaceSet, locRef, patRef string) map[string]interface{} {
	res := map[string]interface{}{
		"resourceType": "Encounter",
		"id":           uuid.New().String(),
		"status":       encounterStatus(in.Venue),
		"class":        fhir.Coding{Code: encounterClass(in.Dossier)},
		"subject":      fhir.Reference{Reference: patRef},
	}
	if in.Venue != nil {
		res["identifier"] = []fhir.Identifier{{
			System: identifierSystem(ns.vn, in.Target),
			Value:  in.Venue.SequenceNumber,
			Type:   &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "VN"}}},
		}}
	}
	if locRef != "" {
		res["location"] = []map[string]interface{}{
			{"location": fhir.Reference{Reference: locRef}},
		}
	}
	res["extension"] = []map[string]interface{}{movementExtension(in.Movement)}
	return res
}

// movementExtension carries the ZBE-equivalent attributes a standard
// Encounter has no field for: movement sequence, action, historic flag,
// original trigger, medical/care UF codes and labels, nature.
func movementExtension(m venue.Movement) map[string]interface{} {
	sub := []map[string]interface{}{
		{"url": "sequence", "valueInteger": m.Sequence},
		{"url": "action", "valueCode": string(m.Action)},
		{"url": "historic", "valueBoolean": m.Historic},
		{"url": "medicalUFCode", "valueString": m.MedicalUFCode},
		{"url": "medicalUFLabel", "valueString": m.MedicalUFLabel},
		{"url": "nature", "valueString": m.Nature},
	}
	if m.OriginalTrigger != nil {
		sub = append(sub, map[string]interface{}{"url": "originalTrigger", "valueCode": *m.OriginalTrigger})
	}
	if m.CareUFCode != nil {
		sub = append(sub, map[string]interface{}{"url": "careUFCode", "valueString": *m.CareUFCode})
	}
	if m.CareUFLabel != nil {
		sub = append(sub, map[string]interface{}{"url": "careUFLabel", "valueString": *m.CareUFLabel})
	}
	return map[string]interface{}{
		"url":       zbeExtensionURL,
		"extension": sub,
	}
}

// encounterStatus derives the FHIR Encounter.status from the venue's
// operational status (spec §6).
func encounterStatus(v *venue.Venue) string {
	if v == nil {
		return "unknown"
	}
	switch v.Status {
	case statemachine.StatusPreAdmitted:
		return fhirmodels.EncounterStatusPlanned
	case statemachine.StatusActive:
		return fhirmodels.EncounterStatusInProgress
	case statemachine.StatusOnLeave:
		return fhirmodels.EncounterStatusOnLeave
	case statemachine.StatusDischarged:
		return fhirmodels.EncounterStatusFinished
	case statemachine.StatusCancelled:
		return fhirmodels.EncounterStatusCancelled
	default:
		return "unknown"
	}
}

func encounterClass(d *dossier.Dossier) string {
	if d == nil {
		return ""
	}
	switch d.Type {
	case dossier.TypeHospitalise:
		return fhirmodels.EncounterClassInpatient
	case dossier.TypeAmbulatoire:
		return fhirmodels.EncounterClassAmbulatory
	case dossier.TypeUrgences:
		return fhirmodels.EncounterClassEmergency
	default:
		return fhirmodels.EncounterClassAmbulatory
	}
}
