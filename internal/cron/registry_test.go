package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryRejectsInvalidJobs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubJob{name: "scan"}, time.Hour))

	assert.Error(t, r.Register(nil, time.Hour))
	assert.Error(t, r.Register(&stubJob{}, time.Hour))
	assert.ErrorContains(t, r.Register(&stubJob{name: "scan"}, time.Minute), "registered twice")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDueHonoursCadence(t *testing.T) {
	r := NewRegistry()
	hourly := &stubJob{name: "hourly"}
	daily := &stubJob{name: "daily"}
	always := &stubJob{name: "always"}
	require.NoError(t, r.Register(hourly, time.Hour))
	require.NoError(t, r.Register(daily, 24*time.Hour))
	require.NoError(t, r.Register(always, 0))

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, []Job{hourly, daily, always}, r.Due(start), "everything is due before its first run")

	for _, job := range r.Due(start) {
		r.MarkRun(job.Name(), start)
	}
	assert.Equal(t, []Job{always}, r.Due(start.Add(5*time.Minute)))
	assert.Equal(t, []Job{hourly, always}, r.Due(start.Add(time.Hour)))
	assert.Equal(t, []Job{hourly, daily, always}, r.Due(start.Add(24*time.Hour)))
}
