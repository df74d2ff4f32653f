package structure

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

const nodeCols = `id, kind, code, label, parent_id, juridical_entity_id, virtual`

func (r *repoPG) FindByCode(ctx context.Context, k Kind, code string, juridicalEntityID *uuid.UUID) ([]*Node, error) {
	var rows pgx.Rows
	var err error
	if juridicalEntityID != nil {
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+nodeCols+` FROM structure_node WHERE kind = $1 AND code = $2 AND juridical_entity_id = $3`,
			k, code, *juridicalEntityID)
	} else {
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+nodeCols+` FROM structure_node WHERE kind = $1 AND code = $2 AND juridical_entity_id IS NULL`,
			k, code)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Node, error) {
	n, err := scanNode(r.conn(ctx).QueryRow(ctx, `SELECT `+nodeCols+` FROM structure_node WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return n, err
}

func (r *repoPG) Create(ctx context.Context, n *Node) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO structure_node (id, kind, code, label, parent_id, juridical_entity_id, virtual)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.Kind, n.Code, n.Label, n.ParentID, n.JuridicalEntityID, n.Virtual,
	)
	return err
}

func (r *repoPG) ReplaceVirtual(ctx context.Context, id uuid.UUID, label string, parentID *uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE structure_node SET label = $2, parent_id = $3, virtual = false WHERE id = $1`,
		id, label, parentID,
	)
	return err
}

func (r *repoPG) ListByJuridicalEntity(ctx context.Context, juridicalEntityID uuid.UUID) ([]*Node, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+nodeCols+` FROM structure_node WHERE juridical_entity_id = $1`, juridicalEntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repoPG) AutoCreateEnabled(ctx context.Context, juridicalEntityID uuid.UUID) (bool, error) {
	var enabled bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT auto_create_uf FROM juridical_entity_policy WHERE juridical_entity_id = $1`,
		juridicalEntityID,
	).Scan(&enabled)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return enabled, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanNode(row scannable) (*Node, error) {
	var n Node
	if err := row.Scan(&n.ID, &n.Kind, &n.Code, &n.Label, &n.ParentID, &n.JuridicalEntityID, &n.Virtual); err != nil {
		return nil, err
	}
	return &n, nil
}
