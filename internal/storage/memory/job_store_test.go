package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hbkim/keyword-reporter/internal/report"
)

func statusPtr(s report.JobStatus) *report.JobStatus { return &s }

func stringPtr(s string) *string { return &s }

func TestJobStore_CreateGetUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()

	job := report.Job{
		ID:        "job-1",
		Keyword:   "espresso",
		Status:    report.JobStatusPending,
		Submitted: time.Unix(100, 0).UTC(),
	}
	require.NoError(t, store.CreateJob(ctx, job))
	require.Error(t, store.CreateJob(ctx, job))

	require.NoError(t, store.UpdateJob(ctx, "job-1", report.JobUpdate{
		Status: statusPtr(report.JobStatusScraping),
		Step:   stringPtr("collecting sources"),
	}))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, report.JobStatusScraping, got.Status)
	require.Equal(t, "collecting sources", got.Step)
	require.Equal(t, "espresso", got.Keyword)
	require.Nil(t, got.Finished)
}

func TestJobStore_TerminalRecordsAreImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	require.NoError(t, store.CreateJob(ctx, report.Job{ID: "job-done", Status: report.JobStatusPending}))

	require.NoError(t, store.UpdateJob(ctx, "job-done", report.JobUpdate{
		Status: statusPtr(report.JobStatusCompleted),
	}))

	err := store.UpdateJob(ctx, "job-done", report.JobUpdate{
		Status: statusPtr(report.JobStatusFailed),
	})
	require.ErrorIs(t, err, ErrTerminal)

	got, err := store.GetJob(ctx, "job-done")
	require.NoError(t, err)
	require.Equal(t, report.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Finished)
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	require.NoError(t, store.CreateJob(ctx, report.Job{ID: "old", Submitted: time.Unix(100, 0)}))
	require.NoError(t, store.CreateJob(ctx, report.Job{ID: "new", Submitted: time.Unix(200, 0)}))

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "new", jobs[0].ID)
	require.Equal(t, "old", jobs[1].ID)
}
