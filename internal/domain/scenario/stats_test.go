package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_AggregatesAcrossRuns(t *testing.T) {
	repo := newFakeScenarioRepo()
	s := &Service{Repo: repo}

	tmplID := uuid.New()
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	finishedA := started.Add(2 * time.Minute)
	finishedB := started.Add(4 * time.Minute)

	runA := &Run{ID: uuid.New(), TemplateID: tmplID, Status: RunSuccess, Started: started, Finished: &finishedA,
		Steps: []RunStep{{AckCode: "AA"}, {AckCode: "AA"}}}
	runB := &Run{ID: uuid.New(), TemplateID: tmplID, Status: RunError, Started: started, Finished: &finishedB,
		Steps: []RunStep{{ErrorKind: "ACK_REJECTED"}}}
	repo.runs[runA.ID] = runA
	repo.runs[runB.ID] = runB

	stats, err := s.Stats(context.Background(), &tmplID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RunCount)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 0, stats.PartialCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.0001)
	assert.Equal(t, 2, stats.AckDistribution["AA"])
	assert.Equal(t, 1, stats.AckDistribution["ACK_REJECTED"])
	assert.Equal(t, 3*time.Minute, stats.MeanDuration)
}

func TestStats_NoRunsReturnsZeroValueStatistics(t *testing.T) {
	repo := newFakeScenarioRepo()
	s := &Service{Repo: repo}

	stats, err := s.Stats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RunCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Equal(t, time.Duration(0), stats.MeanDuration)
	assert.Empty(t, stats.AckDistribution)
}

func TestStats_UnfinishedRunsExcludedFromMeanDuration(t *testing.T) {
	repo := newFakeScenarioRepo()
	s := &Service{Repo: repo}

	run := &Run{ID: uuid.New(), Status: RunPartial, Started: time.Now()}
	repo.runs[run.ID] = run

	stats, err := s.Stats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RunCount)
	assert.Equal(t, 1, stats.PartialCount)
	assert.Equal(t, time.Duration(0), stats.MeanDuration)
}
