// Package badger provides a badgerhold-backed durable job store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/hbkim/keyword-reporter/internal/report"
	"github.com/hbkim/keyword-reporter/internal/storage/memory"
)

// JobStore persists job records in an embedded Badger database, so job
// state survives process restarts without an external database.
type JobStore struct {
	store *badgerhold.Store
}

// NewJobStore opens (or creates) the store under dir.
func NewJobStore(dir string) (*JobStore, error) {
	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(dir).WithLogger(nil)
	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return &JobStore{store: store}, nil
}

// Close releases the underlying database.
func (s *JobStore) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close job store: %w", err)
	}
	return nil
}

// CreateJob inserts a new job record.
func (s *JobStore) CreateJob(_ context.Context, job report.Job) error {
	if err := s.store.Insert(job.ID, job); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return errors.New("job already exists")
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (report.Job, error) {
	var job report.Job
	if err := s.store.Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return report.Job{}, report.ErrNotFound
		}
		return report.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob applies a partial update with read-then-write-whole-record
// semantics. The single-writer invariant makes this race-free per job.
// Terminal records are immutable.
func (s *JobStore) UpdateJob(ctx context.Context, jobID string, update report.JobUpdate) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return memory.ErrTerminal
	}
	job = memory.ApplyUpdate(job, update)
	if err := s.store.Update(jobID, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ListJobs returns every job, newest submission first.
func (s *JobStore) ListJobs(_ context.Context) ([]report.Job, error) {
	var jobs []report.Job
	if err := s.store.Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Submitted.After(jobs[j].Submitted)
	})
	return jobs, nil
}
