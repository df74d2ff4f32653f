package messagelog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service records message log entries (spec §4.7, §3 MessageLog entry).
type Service struct {
	repo   Repository
	mirror Mirror // optional, nil when no EventStoreDB URL is configured
	logger zerolog.Logger
}

func NewService(repo Repository, mirror Mirror, logger zerolog.Logger) *Service {
	return &Service{repo: repo, mirror: mirror, logger: logger}
}

// Open creates a pending log entry for an inbound or outbound message,
// rejecting it with ErrDuplicateControlID if the control id has already
// been logged (spec §4.7).
func (s *Service) Open(ctx context.Context, e *Entry) error {
	exists, err := s.repo.ControlIDExists(ctx, e.ControlID)
	if err != nil {
		return fmt.Errorf("messagelog: check control id: %w", err)
	}
	if exists {
		return ErrDuplicateControlID
	}

	e.Status = StatusPending
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CorrelationID == uuid.Nil {
		e.CorrelationID = uuid.New()
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("messagelog: create entry: %w", err)
	}

	s.mirrorBestEffort(ctx, e)
	return nil
}

// Succeed transitions entry id from pending to success.
func (s *Service) Succeed(ctx context.Context, id uuid.UUID, diagnostics []Diagnostic) error {
	return s.repo.Transition(ctx, id, StatusSuccess, diagnostics)
}

// Fail transitions entry id from pending to error.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, diagnostics []Diagnostic) error {
	return s.repo.Transition(ctx, id, StatusError, diagnostics)
}

// Get returns the log entry with the given id, or nil if it doesn't
// exist, used by the admin read API.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Find returns log entries matching f for the admin read API, newest
// first.
func (s *Service) Find(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	return s.repo.Find(ctx, f, limit, offset)
}

// mirrorBestEffort appends to the optional durability mirror without
// failing the caller's message processing if the mirror is unreachable —
// the relational store, not the mirror, is the source of truth.
func (s *Service) mirrorBestEffort(ctx context.Context, e *Entry) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Append(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("control_id", e.ControlID).Msg("eventstore mirror append failed")
	}
}
