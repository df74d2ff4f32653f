package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
)

// ReplayOptions controls one run's execution (spec §4.10 Replay, and the
// CLI's `replay` subcommand flags in spec §6).
type ReplayOptions struct {
	DryRun      bool
	StopOnError bool
}

// Replay executes a materialized message sequence against an endpoint in
// order, honoring each step's scheduled delay, logging every transmission,
// and aggregating a RunStatus from the individual step outcomes (spec
// §4.10: "Replay executes the materialized sequence against a bound
// endpoint, sequentially, honoring (or collapsing) the step delays;
// dry-run renders and logs without transmitting").
func (s *Service) Replay(ctx context.Context, run *Run, template *ScenarioTemplate, rendered []RenderedMessage, schedule []time.Time, opts ReplayOptions) error {
	run.DryRun = opts.DryRun
	run.StopOnError = opts.StopOnError
	run.Started = time.Now().UTC()
	run.Status = RunSuccess

	if err := s.Repo.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("scenario: replay: create run: %w", err)
	}

	for i, msg := range rendered {
		scheduledAt := time.Time{}
		if i < len(schedule) {
			scheduledAt = schedule[i]
		}
		if !opts.DryRun && i > 0 {
			s.waitUntil(ctx, scheduledAt)
		}

		select {
		case <-ctx.Done():
			run.Cancelled = true
			run.Steps = append(run.Steps, RunStep{OrderIndex: i, ScheduledAt: scheduledAt, Status: StepSkipped})
			run.Status = worstRunStatus(run.Status, RunPartial)
			continue
		default:
		}

		step := s.executeStep(ctx, run, i, msg, scheduledAt, opts)
		run.Steps = append(run.Steps, step)
		if step.Status == StepError {
			run.Status = worstRunStatus(run.Status, RunPartial)
			if opts.StopOnError {
				for j := i + 1; j < len(rendered); j++ {
					run.Steps = append(run.Steps, RunStep{OrderIndex: j, Status: StepSkipped})
				}
				break
			}
		}
	}

	if s.allStepsErrored(run) {
		run.Status = RunError
	}

	finished := time.Now().UTC()
	run.Finished = &finished
	return s.Repo.UpdateRun(ctx, run)
}

// waitUntil sleeps until t, or returns early if ctx is cancelled.
func (s *Service) waitUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Service) executeStep(ctx context.Context, run *Run, index int, msg RenderedMessage, scheduledAt time.Time, opts ReplayOptions) RunStep {
	step := RunStep{OrderIndex: index, ScheduledAt: scheduledAt, RenderedHL7: msg.HL7}

	entry := &messagelog.Entry{
		ControlID:  fmt.Sprintf("%s-%d", run.ID, index),
		Direction:  messagelog.DirectionOutbound,
		Raw:        msg.HL7,
		Timestamp:  scheduledAt,
		EndpointID: run.EndpointID,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.Log.Open(ctx, entry); err != nil {
		step.Status = StepError
		step.ErrorKind = "LOG_OPEN_FAILED"
		step.Message = err.Error()
		return step
	}

	if opts.DryRun {
		now := time.Now().UTC()
		step.ExecutedAt = &now
		step.Status = StepSuccess
		s.Log.Succeed(ctx, entry.ID, nil)
		return step
	}

	var result struct {
		Success     bool
		AckCode     string
		FailureKind string
		Detail      string
	}

	if run.Protocol == ProtocolFHIR {
		res, err := s.Endpoints.SendFHIR(ctx, run.EndpointID, msg.FHIR)
		if err != nil {
			step.Status = StepError
			step.ErrorKind = "DISPATCH_ERROR"
			step.Message = err.Error()
			s.Log.Fail(ctx, entry.ID, []messagelog.Diagnostic{{Severity: messagelog.SeverityError, Message: err.Error()}})
			return step
		}
		result.Success, result.AckCode, result.FailureKind, result.Detail = res.Success, res.AckCode, string(res.FailureKind), res.Detail
	} else {
		res, err := s.Endpoints.SendHL7(ctx, run.EndpointID, msg.HL7)
		if err != nil {
			step.Status = StepError
			step.ErrorKind = "DISPATCH_ERROR"
			step.Message = err.Error()
			s.Log.Fail(ctx, entry.ID, []messagelog.Diagnostic{{Severity: messagelog.SeverityError, Message: err.Error()}})
			return step
		}
		result.Success, result.AckCode, result.FailureKind, result.Detail = res.Success, res.AckCode, string(res.FailureKind), res.Detail
	}

	now := time.Now().UTC()
	step.ExecutedAt = &now
	step.AckCode = result.AckCode
	if result.Success {
		step.Status = StepSuccess
		s.Log.Succeed(ctx, entry.ID, nil)
	} else {
		step.Status = StepError
		step.ErrorKind = result.FailureKind
		step.Message = result.Detail
		s.Log.Fail(ctx, entry.ID, []messagelog.Diagnostic{{Severity: messagelog.SeverityError, Code: result.FailureKind, Message: result.Detail}})
	}
	return step
}

func (s *Service) allStepsErrored(run *Run) bool {
	if len(run.Steps) == 0 {
		return false
	}
	for _, st := range run.Steps {
		if st.Status != StepError {
			return false
		}
	}
	return true
}

// Cancel records that a run was cancelled. The actual mid-flight
// interruption happens through the context passed to Replay — the caller
// holding the run's cancel func is expected to call it; this persists the
// Cancelled flag on the row for callers that only have the run id (spec
// §4.10: "a run may be cancelled mid-flight; remaining steps are marked
// skipped, not attempted").
func (s *Service) Cancel(ctx context.Context, runID uuid.UUID) error {
	run, err := s.Repo.GetRunByID(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("scenario: run %s not found", runID)
	}
	run.Cancelled = true
	return s.Repo.UpdateRun(ctx, run)
}
