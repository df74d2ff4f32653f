package messagelog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meddatabridge/pam-bridge/internal/platform/db"
)

// ErrNotPending is returned by Transition when the entry has already left
// the pending status (spec §3: the single-transition invariant).
var ErrNotPending = errors.New("messagelog: entry is no longer pending")

// ErrDuplicateControlID is returned by Create when the control id already
// exists (spec §4.7 DUPLICATE_CONTROL_ID).
var ErrDuplicateControlID = errors.New("messagelog: DUPLICATE_CONTROL_ID")

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

func (r *repoPG) ControlIDExists(ctx context.Context, controlID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM message_log WHERE control_id = $1)`, controlID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO message_log (id, control_id, trigger_code, direction, correlation_id, raw, timestamp, status, endpoint_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.ControlID, e.Trigger, e.Direction, e.CorrelationID, e.Raw, e.Timestamp, e.Status, e.EndpointID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateControlID
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var e Entry
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, control_id, trigger_code, direction, correlation_id, raw, timestamp, status, endpoint_id
		FROM message_log WHERE id = $1`, id,
	).Scan(&e.ID, &e.ControlID, &e.Trigger, &e.Direction, &e.CorrelationID, &e.Raw, &e.Timestamp, &e.Status, &e.EndpointID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Find builds its WHERE clause incrementally since Filter's three fields
// are all independently optional (unlike the single-filter lookups
// elsewhere in this tree, e.g. structure.Repository.FindByCode).
func (r *repoPG) Find(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	var where []string
	var args []interface{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.CorrelationID != nil {
		add("correlation_id = $%d", *f.CorrelationID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.EndpointID != nil {
		add("endpoint_id = $%d", *f.EndpointID)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT count(*) FROM message_log %s`, whereSQL)
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	listSQL := fmt.Sprintf(`
		SELECT id, control_id, trigger_code, direction, correlation_id, raw, timestamp, status, endpoint_id
		FROM message_log %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, whereSQL, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ControlID, &e.Trigger, &e.Direction, &e.CorrelationID, &e.Raw, &e.Timestamp, &e.Status, &e.EndpointID); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, status Status, diagnostics []Diagnostic) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE message_log SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, StatusPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	for _, d := range diagnostics {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO message_log_diagnostic (message_log_id, code, severity, message)
			VALUES ($1,$2,$3,$4)`,
			id, d.Code, d.Severity, d.Message,
		); err != nil {
			return err
		}
	}
	return nil
}
