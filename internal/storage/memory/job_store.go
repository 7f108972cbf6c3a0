// Package memory provides an in-memory job store for development/testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// ErrTerminal is returned when an update targets a completed or failed job.
var ErrTerminal = errors.New("job is in a terminal state")

// JobStore provides an in-memory report.JobStore implementation.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]report.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]report.Job)}
}

// CreateJob stores a new job record.
func (s *JobStore) CreateJob(_ context.Context, job report.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (report.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return report.Job{}, report.ErrNotFound
	}
	return job, nil
}

// UpdateJob applies a partial update. Terminal records are immutable.
func (s *JobStore) UpdateJob(_ context.Context, jobID string, update report.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return report.ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	s.jobs[jobID] = ApplyUpdate(job, update)
	return nil
}

// ListJobs returns every job, newest submission first.
func (s *JobStore) ListJobs(_ context.Context) ([]report.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Submitted.After(out[j].Submitted)
	})
	return out, nil
}

// ApplyUpdate merges a partial update into a job record, stamping the
// finish time when the update makes the record terminal.
func ApplyUpdate(job report.Job, update report.JobUpdate) report.Job {
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Step != nil {
		job.Step = *update.Step
	}
	if update.ErrorText != nil {
		job.ErrorText = *update.ErrorText
	}
	if update.ResultURL != nil {
		job.ResultURL = *update.ResultURL
	}
	if update.PreviewImages != nil {
		job.PreviewImages = append([]string(nil), update.PreviewImages...)
	}
	if job.Status.Terminal() && job.Finished == nil {
		now := time.Now().UTC()
		job.Finished = &now
	}
	return job
}
