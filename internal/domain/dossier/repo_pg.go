package dossier

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meddatabridge/pam-bridge/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const dossierCols = `id, patient_id, juridical_entity_id, sequence_number, admit_time, type, medical_uf_code, housing_uf_code, care_uf_code`

func (r *repoPG) Create(ctx context.Context, d *Dossier) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dossier (id, patient_id, juridical_entity_id, sequence_number, admit_time, type, medical_uf_code, housing_uf_code, care_uf_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.PatientID, d.JuridicalEntityID, d.SequenceNumber, d.AdmitTime, d.Type, d.MedicalUFCode, d.HousingUFCode, d.CareUFCode,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dossier, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+dossierCols+` FROM dossier WHERE id = $1`, id)
	return scanDossier(row)
}

func (r *repoPG) GetActiveForPatient(ctx context.Context, patientID, juridicalEntityID uuid.UUID) (*Dossier, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+dossierCols+` FROM dossier d
		WHERE d.patient_id = $1 AND d.juridical_entity_id = $2
		AND EXISTS (SELECT 1 FROM venue v WHERE v.dossier_id = d.id AND v.status NOT IN ('DISCHARGED','CANCELLED'))
		ORDER BY d.admit_time DESC LIMIT 1`,
		patientID, juridicalEntityID,
	)
	d, err := scanDossier(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *repoPG) Repoint(ctx context.Context, dossierID, newPatientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE dossier SET patient_id = $2 WHERE id = $1`, dossierID, newPatientID)
	return err
}

func scanDossier(row pgx.Row) (*Dossier, error) {
	var d Dossier
	err := row.Scan(&d.ID, &d.PatientID, &d.JuridicalEntityID, &d.SequenceNumber, &d.AdmitTime, &d.Type,
		&d.MedicalUFCode, &d.HousingUFCode, &d.CareUFCode)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
