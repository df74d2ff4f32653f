package vocabulary

// Nature is the movement nature code carried in ZBE-9 (spec §3, §4.3).
type Nature string

const (
	NatureS    Nature = "S"  // hospitalisation entry
	NatureH    Nature = "H"  // hospitalisation de jour
	NatureM    Nature = "M"  // mutation
	NatureL    Nature = "L"  // consultation externe
	NatureD    Nature = "D"  // discharge
	NatureSM   Nature = "SM" // seance
	NatureNone Nature = ""
)

// LegalNatures is the set of natures accepted on ZBE-9 (spec §4.3).
var LegalNatures = map[Nature]bool{
	NatureS: true, NatureH: true, NatureM: true,
	NatureL: true, NatureD: true, NatureSM: true,
}

// MessageRole classifies what kind of administrative event a trigger
// represents (spec §3 "ScenarioTemplateStep").
type MessageRole string

const (
	RoleLifecycle MessageRole = "lifecycle"
	RoleAdmission MessageRole = "admission"
	RoleTransfer  MessageRole = "transfer"
	RoleDischarge MessageRole = "discharge"
	RoleUpdate    MessageRole = "update"
)

// Mapping is one bidirectional entry between a semantic event code and its
// wire-level trigger, role, and default nature.
type Mapping struct {
	SemanticCode  string
	Trigger       string // e.g. "ADT^A01"
	Role          MessageRole
	DefaultNature Nature
}
