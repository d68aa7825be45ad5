package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their cadence. A job with no cadence runs on
// every tick.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*entry{}}
}

// Register adds job to run at most once per every. Names must be unique
// since they label metrics and logs.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("cron job is nil")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	if every < 0 {
		every = 0
	}
	e := &entry{job: job, every: every}
	r.entries = append(r.entries, e)
	r.byName[name] = e
	return nil
}

// Due lists the jobs whose cadence has elapsed at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, e := range r.entries {
		if e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRun records an attempt, failed or not, so a broken job waits for its
// next slot instead of retrying every tick.
func (r *Registry) MarkRun(name string, at time.Time) {
	if e, ok := r.byName[name]; ok {
		e.lastRun = at
	}
}

func (r *Registry) Len() int { return len(r.entries) }
