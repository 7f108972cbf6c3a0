// Package report defines core types shared across subsystems.
package report

import "time"

// SourceKind identifies the blog platform a link points at.
type SourceKind string

// Known source kinds. Generic covers URL shapes without a dedicated
// extractor; those links always yield no result.
const (
	SourceTistory SourceKind = "TISTORY"
	SourceNaver   SourceKind = "NAVER"
	SourceGeneric SourceKind = "GENERIC"
)

// SourceLink is a candidate source page produced by link discovery.
type SourceLink struct {
	URL  string
	Kind SourceKind
}

// ScrapedArticle is one successfully extracted source page.
// Either Body is non-empty normalized text or Images holds at least
// one raw image URL; an article with neither is discarded upstream.
type ScrapedArticle struct {
	Title     string
	Body      string
	SourceURL string
	Kind      SourceKind
	Images    []string
	Referer   string
}

// ImageCandidate pairs a raw image URL with the page that referenced it.
// Some asset hosts reject referer-less requests.
type ImageCandidate struct {
	RawURL  string
	Referer string
}

// MergedReport is the output contract of a merge step, regardless of
// whether it came from the rewrite service or the local fallback.
type MergedReport struct {
	Title string   `json:"title"`
	Body  string   `json:"content"`
	Tags  []string `json:"tags"`
}

// JobStatus represents the lifecycle state of a report job.
type JobStatus string

// Job status values persisted in the job store. Completed and Failed
// are terminal; a terminal record is never written again.
const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusScraping  JobStatus = "SCRAPING"
	JobStatusMerging   JobStatus = "MERGING"
	JobStatusSaving    JobStatus = "SAVING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the persisted record for one keyword report run.
type Job struct {
	ID            string    `json:"id"`
	Keyword       string    `json:"keyword"`
	Status        JobStatus `json:"status"`
	Step          string    `json:"current_step,omitempty"`
	ErrorText     string    `json:"error_text,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	PreviewImages []string  `json:"preview_images,omitempty"`
	Submitted     time.Time `json:"submitted_at"`
	Finished      *time.Time `json:"finished_at,omitempty"`
}

// JobUpdate carries partial-field updates applied to a job record.
// Nil fields are left untouched.
type JobUpdate struct {
	Status        *JobStatus
	Step          *string
	ErrorText     *string
	ResultURL     *string
	PreviewImages []string
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Keyword   string
	Submitted int64
}

// SaveRequest is the payload handed to a persistence backend.
type SaveRequest struct {
	Title     string
	Body      string
	Tags      []string
	SourceURL string
	Images    []string
	TopImages []string
}

// SaveResult points at the externally persisted document.
type SaveResult struct {
	URL string
}
