package identifier

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meddatabridge/pam-bridge/internal/platform/db"
)

// ErrAlreadyAssigned is returned by RecordAllocation when the (type,
// system, value) triple violates the store's uniqueness constraint.
var ErrAlreadyAssigned = errors.New("identifier: value already assigned")

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

const nsCols = `id, system_uri, oid, type, juridical_entity_id, generation_mode, prefix_pattern, range_min, range_max, created_at`

func (r *repoPG) GetNamespace(ctx context.Context, namespaceType NamespaceType, juridicalEntityID *uuid.UUID) (*Namespace, error) {
	var row pgx.Row
	if juridicalEntityID != nil {
		row = r.conn(ctx).QueryRow(ctx,
			`SELECT `+nsCols+` FROM identifier_namespace WHERE type = $1 AND juridical_entity_id = $2`,
			namespaceType, *juridicalEntityID)
	} else {
		row = r.conn(ctx).QueryRow(ctx,
			`SELECT `+nsCols+` FROM identifier_namespace WHERE type = $1 AND juridical_entity_id IS NULL`,
			namespaceType)
	}
	return scanNamespace(row)
}

func (r *repoPG) GetNamespaceByID(ctx context.Context, id uuid.UUID) (*Namespace, error) {
	return scanNamespace(r.conn(ctx).QueryRow(ctx, `SELECT `+nsCols+` FROM identifier_namespace WHERE id = $1`, id))
}

func (r *repoPG) CreateNamespace(ctx context.Context, ns *Namespace) error {
	ns.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO identifier_namespace (id, system_uri, oid, type, juridical_entity_id, generation_mode, prefix_pattern, range_min, range_max)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ns.ID, ns.SystemURI, ns.OID, ns.Type, ns.JuridicalEntityID, ns.GenerationMode, ns.PrefixPattern, ns.RangeMin, ns.RangeMax,
	)
	return err
}

func (r *repoPG) IsAssigned(ctx context.Context, namespaceType NamespaceType, systemURI, value string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM identifier_allocation WHERE type = $1 AND system_uri = $2 AND value = $3)`,
		namespaceType, systemURI, value,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) RecordAllocation(ctx context.Context, a *Allocation) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO identifier_allocation (id, namespace_id, type, system_uri, value)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.NamespaceID, a.Type, a.SystemURI, a.Value,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

func (r *repoPG) CountAssigned(ctx context.Context, namespaceID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM identifier_allocation WHERE namespace_id = $1`, namespaceID,
	).Scan(&count)
	return count, err
}

func scanNamespace(row pgx.Row) (*Namespace, error) {
	var n Namespace
	err := row.Scan(&n.ID, &n.SystemURI, &n.OID, &n.Type, &n.JuridicalEntityID, &n.GenerationMode, &n.PrefixPattern, &n.RangeMin, &n.RangeMax, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
