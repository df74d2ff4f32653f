package patient

import (
	"context"
	"encoding/json"

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

const patientCols = `id, family_name, given_names, birth_date, sex, birth_place, national_identifier, reliability, external_identifiers, created_at, updated_at, merged_into_id`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	birthPlace, err := json.Marshal(p.BirthPlace)
	if err != nil {
		return err
	}
	nationalID, err := json.Marshal(p.NationalIdentifier)
	if err != nil {
		return err
	}
	externalIDs, err := json.Marshal(p.ExternalIdentifiers)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, family_name, given_names, birth_date, sex, birth_place, national_identifier, reliability, external_identifiers)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.FamilyName, p.GivenNames, p.BirthDate, p.Sex, birthPlace, nationalID, p.Reliability, externalIDs,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	birthPlace, err := json.Marshal(p.BirthPlace)
	if err != nil {
		return err
	}
	nationalID, err := json.Marshal(p.NationalIdentifier)
	if err != nil {
		return err
	}
	externalIDs, err := json.Marshal(p.ExternalIdentifiers)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE patient SET family_name=$2, given_names=$3, birth_date=$4, sex=$5, birth_place=$6,
			national_identifier=$7, reliability=$8, external_identifiers=$9, updated_at=now(), merged_into_id=$10
		WHERE id=$1`,
		p.ID, p.FamilyName, p.GivenNames, p.BirthDate, p.Sex, birthPlace, nationalID, p.Reliability, externalIDs, p.MergedIntoID,
	)
	return err
}

func (r *repoPG) FindByExternalIdentifier(ctx context.Context, namespaceID uuid.UUID, value string) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE external_identifiers @> jsonb_build_array(jsonb_build_object('NamespaceID', $1::text, 'Value', $2::text))`,
		namespaceID, value,
	)
	p, err := scanPatient(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) AddExternalIdentifier(ctx context.Context, patientID uuid.UUID, id ExternalIdentifier) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE patient SET external_identifiers = external_identifiers || $2::jsonb, updated_at = now()
		WHERE id = $1`,
		patientID, raw,
	)
	return err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birthPlace, nationalID, externalIDs []byte
	err := row.Scan(&p.ID, &p.FamilyName, &p.GivenNames, &p.BirthDate, &p.Sex, &birthPlace, &nationalID,
		&p.Reliability, &externalIDs, &p.CreatedAt, &p.UpdatedAt, &p.MergedIntoID)
	if err != nil {
		return nil, err
	}
	if len(birthPlace) > 0 {
		if err := json.Unmarshal(birthPlace, &p.BirthPlace); err != nil {
			return nil, err
		}
	}
	if len(nationalID) > 0 {
		if err := json.Unmarshal(nationalID, &p.NationalIdentifier); err != nil {
			return nil, err
		}
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &p.ExternalIdentifiers); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
