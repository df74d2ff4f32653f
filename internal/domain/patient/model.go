package patient

import (
	"time"

	"github.com/google/uuid"
)

// Sex is administrative sex (spec §3 Patient).
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexOther   Sex = "other"
	SexUnknown Sex = "unknown"
)

// NationalIDType distinguishes the French national identifier variants.
type NationalIDType string

const (
	NationalIDNIR  NationalIDType = "NIR"
	NationalIDINSC NationalIDType = "INS-C"
)

// Reliability is the identity-reliability code carried alongside the
// national identifier (spec §3 Patient).
type Reliability string

const (
	ReliabilityValidated Reliability = "VALI"
	ReliabilityQualified Reliability = "QUAL"
	ReliabilityProvisory Reliability = "PROV"
	ReliabilityEmpty     Reliability = "VIDE"
	ReliabilityDoubtful  Reliability = "DOUTE"
	ReliabilityDouble    Reliability = "DOUB"
)

// BirthPlace is free text plus an optional INSEE code and country.
type BirthPlace struct {
	Text      string
	InseeCode *string
	Country   string
}

// NationalIdentifier is the patient's national-level identifier (NIR or
// INS-C), which is reconciled against the national registry independent
// of any local namespace allocation (spec §3 Patient).
type NationalIdentifier struct {
	Type          NationalIDType
	Value         string
	InRegistry    bool
	LastQueryDate *time.Time
}

// ExternalIdentifier is one (namespace, value) pair a patient is known by
// in a local system (spec §3 Patient: "Owns zero or more external
// identifiers, each a pair (namespace, value)"). Invariant: exactly one
// primary per (patient, namespace type) — enforced by the service, not
// representable structurally since a patient may hold several values in
// the same namespace type across juridical entities.
type ExternalIdentifier struct {
	NamespaceID uuid.UUID
	Value       string
	Primary     bool
}

// Patient is the stable identity of a person (spec §3 Patient). Never
// hard-deleted: mutated by identity-update events, merged by ADT^A40/A31.
type Patient struct {
	ID                  uuid.UUID
	FamilyName          string
	GivenNames          []string
	BirthDate           time.Time
	Sex                 Sex
	BirthPlace          BirthPlace
	NationalIdentifier  *NationalIdentifier
	Reliability         Reliability
	ExternalIdentifiers []ExternalIdentifier
	CreatedAt           time.Time
	UpdatedAt           time.Time
	// MergedIntoID is set when this patient was absorbed by another via
	// ADT^A40; the patient row is kept (never hard-deleted) but is no
	// longer a resolution target.
	MergedIntoID *uuid.UUID
}

// PrimaryIdentifier returns the primary external identifier allocated
// under namespaceID, or nil if none.
func (p *Patient) PrimaryIdentifier(namespaceID uuid.UUID) *ExternalIdentifier {
	for i := range p.ExternalIdentifiers {
		if p.ExternalIdentifiers[i].NamespaceID == namespaceID && p.ExternalIdentifiers[i].Primary {
			return &p.ExternalIdentifiers[i]
		}
	}
	return nil
}
