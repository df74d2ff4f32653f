package dossier

import (
	"time"

	"github.com/google/uuid"
)

// Type is the dossier type (spec §3 Dossier).
type Type string

const (
	TypeHospitalise Type = "HOSPITALISE"
	TypeUrgences    Type = "URGENCES"
	TypeExterne     Type = "EXTERNE"
	TypeAmbulatoire Type = "AMBULATOIRE"
)

// Dossier is an admission folder bound to exactly one patient and one
// juridical entity (spec §3 Dossier).
type Dossier struct {
	ID                uuid.UUID
	PatientID         uuid.UUID
	JuridicalEntityID uuid.UUID
	SequenceNumber    string // unique per juridical entity
	AdmitTime         time.Time
	Type              Type
	MedicalUFCode     *string
	HousingUFCode     *string
	CareUFCode        *string
}
