package identifier

import (
	"time"

	"github.com/google/uuid"
)

// NamespaceType enumerates the identifier kinds the bridge allocates or
// validates (spec §3 "Identifier namespace").
type NamespaceType string

const (
	TypeIPP       NamespaceType = "IPP"
	TypeNDA       NamespaceType = "NDA"
	TypeVN        NamespaceType = "VN"
	TypeMVT       NamespaceType = "MVT"
	TypeINS       NamespaceType = "INS"
	TypeStructure NamespaceType = "STRUCTURE"
)

// GenerationMode controls how Allocate produces a candidate value.
type GenerationMode string

const (
	ModeFixedPrefixPattern GenerationMode = "fixed-prefix-pattern"
	ModeNumericRange       GenerationMode = "numeric-range"
	ModeExternal           GenerationMode = "external"
)

// hl7TypeCode maps a NamespaceType to its two-letter HL7 CX identifier
// type code (spec §4.2 "Wire encoding in HL7 CX composite").
var hl7TypeCode = map[NamespaceType]string{
	TypeIPP: "PI",
	TypeNDA: "AN",
	TypeVN:  "VN",
	TypeMVT: "VN",
	TypeINS: "NI",
}

// HL7TypeCode returns the two-letter CX type code for t, or "" if unknown.
func (t NamespaceType) HL7TypeCode() string {
	return hl7TypeCode[t]
}

// Namespace is a named value pool (spec §3).
type Namespace struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	SystemURI          string        `db:"system_uri" json:"system_uri"`
	OID                *string       `db:"oid" json:"oid,omitempty"`
	Type               NamespaceType `db:"type" json:"type"`
	JuridicalEntityID  *uuid.UUID    `db:"juridical_entity_id" json:"juridical_entity_id,omitempty"`
	GenerationMode     GenerationMode `db:"generation_mode" json:"generation_mode"`
	PrefixPattern      *string       `db:"prefix_pattern" json:"prefix_pattern,omitempty"`
	RangeMin           *int64        `db:"range_min" json:"range_min,omitempty"`
	RangeMax           *int64        `db:"range_max" json:"range_max,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

// AssigningAuthority returns the value placed in the CX assigning-authority
// component: the namespace OID if present, else the system URI.
func (n *Namespace) AssigningAuthority() string {
	if n.OID != nil && *n.OID != "" {
		return *n.OID
	}
	return n.SystemURI
}

// Allocation records one assigned identifier value under a namespace.
type Allocation struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	NamespaceID uuid.UUID     `db:"namespace_id" json:"namespace_id"`
	Type        NamespaceType `db:"type" json:"type"`
	SystemURI   string        `db:"system_uri" json:"system_uri"`
	Value       string        `db:"value" json:"value"`
	AllocatedAt time.Time     `db:"allocated_at" json:"allocated_at"`
}

// CXComponent renders value under namespace ns as an HL7 CX composite:
// value^^^assigning-authority^type-code.
func CXComponent(ns *Namespace, value string) string {
	return value + "^^^" + ns.AssigningAuthority() + "^" + ns.HL7TypeCode()
}
