package scenario

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
)

// LaunchOptions controls one run launch, mirroring the CLI replay
// command's own flags (spec §6) so both surfaces share one
// materialize-then-replay code path.
type LaunchOptions struct {
	DryRun            bool
	StopOnError       bool
	IPPPrefixOverride string
	NDAPrefixOverride string
}

// LaunchRun materializes template against ep and replays it, the same
// two-call sequence the bridge-server CLI's replay command runs directly
// — factored out here so the scenario admin API can launch a run without
// duplicating that sequence.
func (s *Service) LaunchRun(ctx context.Context, tmpl *ScenarioTemplate, ep *endpoint.Endpoint, protocol Protocol, opts LaunchOptions) (*Run, error) {
	rendered, ids, schedule, err := s.Materialize(ctx, tmpl, protocol, ep.JuridicalEntityID, ep.Target(), MaterializeOptions{
		IPPPrefixOverride: opts.IPPPrefixOverride,
		NDAPrefixOverride: opts.NDAPrefixOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario: launch: materialize: %w", err)
	}

	run := &Run{
		ID:           uuid.New(),
		TemplateID:   tmpl.ID,
		EndpointID:   ep.ID,
		Protocol:     protocol,
		AllocatedIPP: ids.IPP,
		AllocatedNDA: ids.NDA,
		AllocatedVN:  ids.VN,
	}
	if err := s.Replay(ctx, run, tmpl, rendered, schedule, ReplayOptions{
		DryRun:      opts.DryRun,
		StopOnError: opts.StopOnError,
	}); err != nil {
		return run, fmt.Errorf("scenario: launch: replay: %w", err)
	}
	return run, nil
}
