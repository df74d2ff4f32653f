package scenario

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists scenario templates and their runs.
type Repository interface {
	CreateTemplate(ctx context.Context, t *ScenarioTemplate) error
	GetTemplateByKey(ctx context.Context, key string) (*ScenarioTemplate, error)
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*ScenarioTemplate, error)
	ListTemplates(ctx context.Context) ([]*ScenarioTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	CreateRun(ctx context.Context, r *Run) error
	UpdateRun(ctx context.Context, r *Run) error
	GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListRuns returns every run of templateID (every run, if nil), newest first, used by Statistics
	// (spec §4.10) — ascending by Started is not required of callers.
	ListRuns(ctx context.Context, templateID *uuid.UUID) ([]*Run, error)
}

// ErrDuplicateKey is returned by CreateTemplate (import path) when a
// template with the same key already exists and no override was requested
// (spec §6 "Import is atomic; duplicate key fails unless override_key is
// supplied").
type ErrDuplicateKey struct {
	Key string
}

func (e *ErrDuplicateKey) Error() string {
	return "scenario: template key " + e.Key + " already exists"
}
