package endpoint

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

const endpointCols = `id, name, kind, juridical_entity_id, host, port, inbox_path, outbox_path, file_glob,
	poll_seconds_interval, base_url, tls_ca_bundle, forced_identifier_system, forced_identifier_oid,
	sending_app, sending_fac, receiving_app, receiving_fac, created_at`

func (r *repoPG) Create(ctx context.Context, e *Endpoint) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO endpoint (`+endpointCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.Name, e.Kind, e.JuridicalEntityID, e.Host, e.Port, e.InboxPath, e.OutboxPath, e.FileGlob,
		e.PollSecondsInterval, e.BaseURL, e.TLSCABundle, e.ForcedIdentifierSystem, e.ForcedIdentifierOID,
		e.SendingApp, e.SendingFac, e.ReceivingApp, e.ReceivingFac, e.CreatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+endpointCols+` FROM endpoint WHERE id = $1`, id)
	e, err := scanEndpoint(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *repoPG) List(ctx context.Context) ([]*Endpoint, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+endpointCols+` FROM endpoint ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, e *Endpoint) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE endpoint SET name=$2, host=$3, port=$4, inbox_path=$5, outbox_path=$6, file_glob=$7,
			poll_seconds_interval=$8, base_url=$9, tls_ca_bundle=$10, forced_identifier_system=$11,
			forced_identifier_oid=$12, sending_app=$13, sending_fac=$14, receiving_app=$15, receiving_fac=$16
		WHERE id = $1`,
		e.ID, e.Name, e.Host, e.Port, e.InboxPath, e.OutboxPath, e.FileGlob,
		e.PollSecondsInterval, e.BaseURL, e.TLSCABundle, e.ForcedIdentifierSystem,
		e.ForcedIdentifierOID, e.SendingApp, e.SendingFac, e.ReceivingApp, e.ReceivingFac,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM endpoint WHERE id = $1`, id)
	return err
}

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var e Endpoint
	err := row.Scan(
		&e.ID, &e.Name, &e.Kind, &e.JuridicalEntityID, &e.Host, &e.Port, &e.InboxPath, &e.OutboxPath, &e.FileGlob,
		&e.PollSecondsInterval, &e.BaseURL, &e.TLSCABundle, &e.ForcedIdentifierSystem, &e.ForcedIdentifierOID,
		&e.SendingApp, &e.SendingFac, &e.ReceivingApp, &e.ReceivingFac, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
