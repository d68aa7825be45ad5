package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/logger"
)

type fakePruner struct {
	backlog int64
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.backlog, int64(limit))
	f.backlog -= n
	return n, nil
}

func newRetentionJob(t *testing.T, repo *fakePruner, retention time.Duration) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Repository: repo,
		Retention:  retention,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDrainsBacklogInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	repo := &fakePruner{backlog: 25}
	job := newRetentionJob(t, repo, 0)
	job.batch = 10
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.cutoffs, 3)
	assert.Zero(t, repo.backlog)
	for _, cutoff := range repo.cutoffs {
		assert.Equal(t, now.Add(-defaultOutboxRetention), cutoff)
	}
}

func TestOutboxRetentionUsesConfiguredWindow(t *testing.T) {
	repo := &fakePruner{}
	job := newRetentionJob(t, repo, 48*time.Hour)
	now := time.Now()
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.cutoffs, 1, "an empty first batch ends the run")
	assert.Equal(t, now.UTC().Add(-48*time.Hour), repo.cutoffs[0])
}

func TestOutboxRetentionStopsOnErrorOrCancel(t *testing.T) {
	repo := &fakePruner{err: errors.New("statement timeout")}
	assert.ErrorContains(t, newRetentionJob(t, repo, 0).Run(context.Background()), "statement timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo = &fakePruner{backlog: 5}
	assert.ErrorIs(t, newRetentionJob(t, repo, 0).Run(ctx), context.Canceled)
	assert.Empty(t, repo.cutoffs)
}

func TestNewOutboxRetentionJobRequiresDeps(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Repository: &fakePruner{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	assert.Error(t, err)
}
