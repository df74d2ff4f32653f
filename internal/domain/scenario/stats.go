package scenario

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Statistics is an aggregation over a window of runs (spec §4.10
// Statistics: "count, success rate, ACK code distribution, mean duration,
// computed on demand from the run log, never stored as derived state").
type Statistics struct {
	RunCount        int
	SuccessCount    int
	PartialCount    int
	ErrorCount      int
	SuccessRate     float64
	AckDistribution map[string]int
	MeanDuration    time.Duration
}

// Stats computes Statistics over every run of templateID (or every run, if
// nil), recomputed fresh from the stored runs each call.
func (s *Service) Stats(ctx context.Context, templateID *uuid.UUID) (*Statistics, error) {
	runs, err := s.Repo.ListRuns(ctx, templateID)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{AckDistribution: make(map[string]int)}
	var totalDuration time.Duration
	var finishedCount int

	for _, r := range runs {
		stats.RunCount++
		switch r.Status {
		case RunSuccess:
			stats.SuccessCount++
		case RunPartial:
			stats.PartialCount++
		case RunError:
			stats.ErrorCount++
		}

		if r.Finished != nil {
			totalDuration += r.Finished.Sub(r.Started)
			finishedCount++
		}

		for _, step := range r.Steps {
			switch {
			case step.AckCode != "":
				stats.AckDistribution[step.AckCode]++
			case step.ErrorKind != "":
				stats.AckDistribution[step.ErrorKind]++
			}
		}
	}

	if stats.RunCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.RunCount)
	}
	if finishedCount > 0 {
		stats.MeanDuration = totalDuration / time.Duration(finishedCount)
	}
	return stats, nil
}
