package scenario

import (
	"fmt"
	"math/rand"
	"time"
)

// jitter returns a uniform random duration in [minMinutes, maxMinutes],
// overridable by tests that need a deterministic schedule.
var jitter = func(minMinutes, maxMinutes int) time.Duration {
	if maxMinutes <= minMinutes {
		return time.Duration(minMinutes) * time.Minute
	}
	span := maxMinutes - minMinutes
	return time.Duration(minMinutes+rand.Intn(span+1)) * time.Minute
}

// shiftTimes computes the absolute wall-clock schedule for a materialized
// run's n steps (spec §4.10 Time shifting): the anchor mode picks the first
// step's timestamp, preserve_intervals controls whether the snapshot's
// inter-step deltas survive or collapse to zero, and an optional per-step
// jitter is applied independently after shifting.
func (s *Service) shiftTimes(t *ScenarioTemplate, n int) ([]time.Time, error) {
	if n == 0 {
		return nil, nil
	}
	cfg := t.TimeConfig

	var anchor time.Time
	switch cfg.Anchor {
	case AnchorFixed:
		if cfg.FixedStart == nil {
			return nil, fmt.Errorf("scenario: time config anchor=fixed requires a start timestamp")
		}
		anchor = *cfg.FixedStart
	case AnchorSliding:
		anchor = time.Now().UTC().AddDate(0, 0, cfg.OffsetDays)
	default: // AnchorNone: replay at the snapshot's own captured timestamps
		if len(t.Steps) > 0 && !t.Steps[0].CapturedAt.IsZero() {
			anchor = t.Steps[0].CapturedAt
		} else {
			anchor = time.Now().UTC()
		}
	}

	schedule := make([]time.Time, n)
	for i, step := range t.Steps {
		var ts time.Time
		switch {
		case cfg.Anchor == AnchorNone && !step.CapturedAt.IsZero():
			ts = step.CapturedAt
		case i == 0:
			ts = anchor
		case cfg.PreserveIntervals:
			ts = schedule[i-1].Add(time.Duration(step.DelayFromPrevious) * time.Second)
		default:
			ts = schedule[i-1]
		}
		if cfg.JitterMaxMinutes > 0 || cfg.JitterMinMinutes > 0 {
			ts = ts.Add(jitter(cfg.JitterMinMinutes, cfg.JitterMaxMinutes))
		}
		schedule[i] = ts
	}
	return schedule, nil
}
