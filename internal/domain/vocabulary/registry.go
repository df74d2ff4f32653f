package vocabulary

import "fmt"

// defaultMappings is the trigger table from spec §4.3: the literal semantic
// codes ADMISSION_CONFIRMED and DISCHARGE are named directly by the spec's
// testable properties (§8 scenario 6); the rest extend the same vocabulary
// in the same style.
var defaultMappings = []Mapping{
	{SemanticCode: "ADMISSION_CONFIRMED", Trigger: "ADT^A01", Role: RoleAdmission, DefaultNature: NatureS},
	{SemanticCode: "TRANSFER_CONFIRMED", Trigger: "ADT^A02", Role: RoleTransfer, DefaultNature: NatureM},
	{SemanticCode: "DISCHARGE", Trigger: "ADT^A03", Role: RoleDischarge, DefaultNature: NatureD},
	{SemanticCode: "OUTPATIENT_REGISTERED", Trigger: "ADT^A04", Role: RoleAdmission, DefaultNature: NatureS},
	{SemanticCode: "PRE_ADMISSION_CONFIRMED", Trigger: "ADT^A05", Role: RoleAdmission, DefaultNature: NatureS},
	{SemanticCode: "PATIENT_CLASS_CHANGED_TO_INPATIENT", Trigger: "ADT^A06", Role: RoleUpdate, DefaultNature: NatureM},
	{SemanticCode: "PATIENT_CLASS_CHANGED_TO_OUTPATIENT", Trigger: "ADT^A07", Role: RoleUpdate, DefaultNature: NatureM},
	{SemanticCode: "PATIENT_INFO_UPDATED", Trigger: "ADT^A08", Role: RoleUpdate, DefaultNature: NatureNone},
	{SemanticCode: "ADMISSION_CANCELLED", Trigger: "ADT^A11", Role: RoleAdmission, DefaultNature: NatureS},
	{SemanticCode: "TRANSFER_CANCELLED", Trigger: "ADT^A12", Role: RoleTransfer, DefaultNature: NatureNone},
	{SemanticCode: "DISCHARGE_CANCELLED", Trigger: "ADT^A13", Role: RoleDischarge, DefaultNature: NatureS},
	{SemanticCode: "STRUCTURE_UPDATED", Trigger: "MFN^M05", Role: RoleLifecycle, DefaultNature: NatureNone},
	{SemanticCode: "PATIENT_UPDATED", Trigger: "ADT^A31", Role: RoleLifecycle, DefaultNature: NatureNone},
	{SemanticCode: "PATIENT_MERGED", Trigger: "ADT^A40", Role: RoleLifecycle, DefaultNature: NatureNone},
}

// Registry is a read-mostly, process-lifetime bidirectional lookup between
// semantic event codes and HL7 triggers. It is initialized once at startup
// from defaultMappings and never mutated afterward (spec §4.3).
type Registry struct {
	byTrigger map[string]Mapping
	byCode    map[string]Mapping
}

// NewRegistry builds a Registry from the built-in mapping table.
func NewRegistry() *Registry {
	r := &Registry{
		byTrigger: make(map[string]Mapping, len(defaultMappings)),
		byCode:    make(map[string]Mapping, len(defaultMappings)),
	}
	for _, m := range defaultMappings {
		r.byTrigger[m.Trigger] = m
		r.byCode[m.SemanticCode] = m
	}
	return r
}

// ByTrigger resolves a trigger such as "ADT^A01" to its mapping.
func (r *Registry) ByTrigger(trigger string) (Mapping, error) {
	m, ok := r.byTrigger[trigger]
	if !ok {
		return Mapping{}, fmt.Errorf("vocabulary: unknown trigger %q", trigger)
	}
	return m, nil
}

// BySemanticCode resolves a semantic event code back to its mapping.
func (r *Registry) BySemanticCode(code string) (Mapping, error) {
	m, ok := r.byCode[code]
	if !ok {
		return Mapping{}, fmt.Errorf("vocabulary: unknown semantic code %q", code)
	}
	return m, nil
}

// DefaultNatureForTrigger returns the ZBE-9 nature a trigger implies absent
// an explicit value on the wire, and whether the trigger carries a nature
// at all (lifecycle triggers such as MFN^M05 or ADT^A31 do not).
func (r *Registry) DefaultNatureForTrigger(trigger string) (Nature, bool) {
	m, ok := r.byTrigger[trigger]
	if !ok || m.DefaultNature == NatureNone {
		return NatureNone, false
	}
	return m.DefaultNature, true
}

// IsLegalNature reports whether n is one of the six natures spec §4.3
// permits on the wire.
func IsLegalNature(n Nature) bool {
	return LegalNatures[n]
}
