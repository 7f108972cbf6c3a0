package report

import (
	"context"
	"time"
)

// JobStore persists job records. A job is only ever written by the task
// running it, so last-write-wins semantics are sufficient. Implementations
// must refuse updates to a record already in a terminal status.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJob(ctx context.Context, jobID string, update JobUpdate) error
	ListJobs(ctx context.Context) ([]Job, error)
}

// Queue provides enqueue/dequeue semantics for report jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Fetcher performs a single HTTP GET and returns the response body.
// The referer may be empty; asset hosts that require one get it set.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, referer string) ([]byte, error)
}

// Extractor turns a source page URL into an article, or no result.
// A false return means "skip this link"; extractors never fail a batch.
type Extractor interface {
	Extract(ctx context.Context, link SourceLink) (ScrapedArticle, bool)
}

// Rehoster downloads, validates, re-encodes and re-uploads one image.
// An empty second return means the candidate produced nothing usable.
type Rehoster interface {
	Rehost(ctx context.Context, candidate ImageCandidate) (string, bool)
}

// Merger combines the scraped articles into a single long-form report.
type Merger interface {
	Merge(ctx context.Context, keyword string, articles []ScrapedArticle) (MergedReport, error)
}

// Saver persists the merged report to the external document store.
type Saver interface {
	Save(ctx context.Context, req SaveRequest) (SaveResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
