package venue

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

const venueCols = `id, dossier_id, sequence_number, start_ts, end_ts, status, current_location_id, movements`

func (r *repoPG) Create(ctx context.Context, v *Venue) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	movements, err := json.Marshal(v.Movements)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO venue (id, dossier_id, sequence_number, start_ts, end_ts, status, current_location_id, movements)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.DossierID, v.SequenceNumber, v.Start, v.End, v.Status, v.CurrentLocationID, movements,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+venueCols+` FROM venue WHERE id = $1`, id)
	v, err := scanVenue(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *repoPG) GetCurrentForDossier(ctx context.Context, dossierID uuid.UUID) (*Venue, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+venueCols+` FROM venue
		WHERE dossier_id = $1
		ORDER BY start_ts DESC LIMIT 1`,
		dossierID,
	)
	v, err := scanVenue(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *repoPG) ListForDossier(ctx context.Context, dossierID uuid.UUID) ([]*Venue, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+venueCols+` FROM venue
		WHERE dossier_id = $1
		ORDER BY start_ts ASC`,
		dossierID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, v *Venue) error {
	movements, err := json.Marshal(v.Movements)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE venue SET end_ts=$2, status=$3, current_location_id=$4, movements=$5 WHERE id=$1`,
		v.ID, v.End, v.Status, v.CurrentLocationID, movements,
	)
	return err
}

func (r *repoPG) AppendMovement(ctx context.Context, venueID uuid.UUID, m Movement) error {
	v, err := r.GetByID(ctx, venueID)
	if err != nil {
		return err
	}
	if v == nil {
		return pgx.ErrNoRows
	}
	v.Movements = append(v.Movements, m)
	return r.Update(ctx, v)
}

func scanVenue(row pgx.Row) (*Venue, error) {
	var v Venue
	var movements []byte
	err := row.Scan(&v.ID, &v.DossierID, &v.SequenceNumber, &v.Start, &v.End, &v.Status, &v.CurrentLocationID, &movements)
	if err != nil {
		return nil, err
	}
	if len(movements) > 0 {
		if err := json.Unmarshal(movements, &v.Movements); err != nil {
			return nil, err
		}
	}
	return &v, nil
}
