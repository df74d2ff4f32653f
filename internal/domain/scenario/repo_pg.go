package scenario

import (
	"context"
	"encoding/json"
	"errors"

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

const templateCols = `id, key, name, description, category, tags, protocols, time_config, steps, created_at`

func (r *repoPG) CreateTemplate(ctx context.Context, t *ScenarioTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}
	protocols, err := json.Marshal(t.Protocols)
	if err != nil {
		return err
	}
	timeConfig, err := json.Marshal(t.TimeConfig)
	if err != nil {
		return err
	}
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO scenario_template (id, key, name, description, category, tags, protocols, time_config, steps, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.Key, t.Name, t.Description, t.Category, tags, protocols, timeConfig, steps, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ErrDuplicateKey{Key: t.Key}
	}
	return err
}

func (r *repoPG) GetTemplateByKey(ctx context.Context, key string) (*ScenarioTemplate, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM scenario_template WHERE key = $1`, key)
	t, err := scanTemplate(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *repoPG) GetTemplateByID(ctx context.Context, id uuid.UUID) (*ScenarioTemplate, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM scenario_template WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *repoPG) ListTemplates(ctx context.Context) ([]*ScenarioTemplate, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+templateCols+` FROM scenario_template ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScenarioTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM scenario_template WHERE id = $1`, id)
	return err
}

func scanTemplate(row pgx.Row) (*ScenarioTemplate, error) {
	var t ScenarioTemplate
	var tags, protocols, timeConfig, steps []byte
	err := row.Scan(&t.ID, &t.Key, &t.Name, &t.Description, &t.Category, &tags, &protocols, &timeConfig, &steps, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, err
		}
	}
	if len(protocols) > 0 {
		if err := json.Unmarshal(protocols, &t.Protocols); err != nil {
			return nil, err
		}
	}
	if len(timeConfig) > 0 {
		if err := json.Unmarshal(timeConfig, &t.TimeConfig); err != nil {
			return nil, err
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &t.Steps); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

const runCols = `id, template_id, endpoint_id, protocol, ipp_prefix_override, nda_prefix_override,
	allocated_ipp, allocated_nda, allocated_vn, dry_run, stop_on_error, started, finished, steps, status, cancelled`

func (r *repoPG) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO scenario_run (id, template_id, endpoint_id, protocol, ipp_prefix_override, nda_prefix_override,
			allocated_ipp, allocated_nda, allocated_vn, dry_run, stop_on_error, started, finished, steps, status, cancelled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		run.ID, run.TemplateID, run.EndpointID, run.Protocol, run.IPPPrefixOverride, run.NDAPrefixOverride,
		run.AllocatedIPP, run.AllocatedNDA, run.AllocatedVN, run.DryRun, run.StopOnError,
		run.Started, run.Finished, steps, run.Status, run.Cancelled,
	)
	return err
}

func (r *repoPG) UpdateRun(ctx context.Context, run *Run) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE scenario_run SET finished=$2, steps=$3, status=$4, cancelled=$5
		WHERE id = $1`,
		run.ID, run.Finished, steps, run.Status, run.Cancelled,
	)
	return err
}

func (r *repoPG) GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+runCols+` FROM scenario_run WHERE id = $1`, id)
	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (r *repoPG) ListRuns(ctx context.Context, templateID *uuid.UUID) ([]*Run, error) {
	var rows pgx.Rows
	var err error
	if templateID != nil {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+runCols+` FROM scenario_run WHERE template_id = $1 ORDER BY started DESC`, *templateID)
	} else {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+runCols+` FROM scenario_run ORDER BY started DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var steps []byte
	err := row.Scan(&run.ID, &run.TemplateID, &run.EndpointID, &run.Protocol, &run.IPPPrefixOverride, &run.NDAPrefixOverride,
		&run.AllocatedIPP, &run.AllocatedNDA, &run.AllocatedVN, &run.DryRun, &run.StopOnError,
		&run.Started, &run.Finished, &steps, &run.Status, &run.Cancelled,
	)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &run.Steps); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
