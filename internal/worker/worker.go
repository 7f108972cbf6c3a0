// Package worker implements the report job execution loop.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/airtable"
	"github.com/hbkim/keyword-reporter/internal/metrics"
	"github.com/hbkim/keyword-reporter/internal/pipeline"
	"github.com/hbkim/keyword-reporter/internal/report"
)

// Step and failure messages surfaced on the job record. These are
// user-facing strings; observers poll them for progress.
const (
	msgMissingCredentials = "Notion credentials missing."
	msgNoDocuments        = "수집된 문서가 없습니다."

	stepCollecting   = "고품질 이미지 100장 빠른 수집 중..."
	stepQuickImages  = "대표 이미지 5장 즉시 최적화 중..."
	stepPreviewReady = "대표 이미지 확보 완료! 나머지 고화질 이미지 45장 처리 중..."
	stepOptimizing   = "이미지 최적화 진행 중... (%d/%d)"
	stepGeminiMerge  = "제미나이 AI가 5,000자 리포트 작성 중..."
	stepLocalMerge   = "수집된 문서를 통합 리포트로 정리 중..."
	stepSaving       = "노션으로 50장의 이미지와 리포트 전송 중..."
	stepDone         = "모든 작업 완료! 노션과 대시보드에서 결과를 확인하세요."
)

// Collector runs the scraping half of a job.
type Collector interface {
	Collect(ctx context.Context, keyword string) ([]report.ScrapedArticle, error)
	RehostAll(ctx context.Context, articles []report.ScrapedArticle, progress pipeline.Progress) []string
}

// Archiver mirrors a finished report into the secondary archive.
type Archiver interface {
	Archive(ctx context.Context, record airtable.Record) error
}

// Config controls Worker behavior.
type Config struct {
	// NotionReady reports whether the persistence credentials exist.
	// Jobs fail immediately without them; nothing is scraped.
	NotionReady bool
	// TopImageCount is how many hosted images become page properties.
	TopImageCount int
}

// Worker consumes queue items and drives each job through the
// SCRAPING, MERGING, and SAVING stages.
type Worker struct {
	queue     report.Queue
	jobStore  report.JobStore
	collector Collector
	merger    report.Merger
	fallback  report.Merger
	saver     report.Saver
	archiver  Archiver
	clock     report.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. merger may be nil, in which case every job
// merges with the fallback. archiver may be nil to skip archiving.
func New(
	queue report.Queue,
	jobStore report.JobStore,
	collector Collector,
	merger report.Merger,
	fallback report.Merger,
	saver report.Saver,
	archiver Archiver,
	clock report.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.TopImageCount <= 0 {
		cfg.TopImageCount = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		collector: collector,
		merger:    merger,
		fallback:  fallback,
		saver:     saver,
		archiver:  archiver,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item report.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if !w.cfg.NotionReady {
		w.failJob(ctx, item.JobID, msgMissingCredentials)
		return
	}

	w.updateJob(ctx, item.JobID, statusStep(report.JobStatusScraping, stepCollecting))

	articles, err := w.collector.Collect(ctx, item.Keyword)
	if err != nil {
		w.failJob(ctx, item.JobID, err.Error())
		return
	}
	if len(articles) == 0 {
		w.failJob(ctx, item.JobID, msgNoDocuments)
		return
	}
	for _, article := range articles {
		metrics.ObserveArticle(string(article.Kind))
	}

	w.updateJob(ctx, item.JobID, statusStep(report.JobStatusScraping, stepQuickImages))
	hosted := w.rehostImages(ctx, item.JobID, articles)

	merged, err := w.merge(ctx, item.JobID, item.Keyword, articles)
	if err != nil {
		w.failJob(ctx, item.JobID, err.Error())
		return
	}

	w.updateJob(ctx, item.JobID, statusStep(report.JobStatusSaving, stepSaving))

	topImages := hosted
	if len(topImages) > w.cfg.TopImageCount {
		topImages = topImages[:w.cfg.TopImageCount]
	}
	result, err := w.saver.Save(ctx, report.SaveRequest{
		Title:     merged.Title,
		Body:      merged.Body,
		Tags:      merged.Tags,
		SourceURL: articles[0].SourceURL,
		Images:    hosted,
		TopImages: topImages,
	})
	if err != nil {
		w.failJob(ctx, item.JobID, err.Error())
		return
	}

	w.archive(ctx, item.JobID, merged, hosted, articles[0].SourceURL)

	update := statusStep(report.JobStatusCompleted, stepDone)
	update.ResultURL = &result.URL
	w.updateJob(ctx, item.JobID, update)
	metrics.ObserveJob(string(report.JobStatusCompleted))
	w.logger.Info("job completed",
		zap.String("job_id", item.JobID),
		zap.String("keyword", item.Keyword),
		zap.Int("articles", len(articles)),
		zap.Int("images", len(hosted)))
}

// rehostImages runs the image half of SCRAPING, pushing preview images
// and progress text onto the job record as batches finish.
func (w *Worker) rehostImages(ctx context.Context, jobID string, articles []report.ScrapedArticle) []string {
	progress := pipeline.Progress{
		Preview: func(urls []string) {
			update := report.JobUpdate{PreviewImages: urls}
			step := stepPreviewReady
			update.Step = &step
			w.updateJob(ctx, jobID, update)
		},
		Step: func(done, total int) {
			step := fmt.Sprintf(stepOptimizing, done, total)
			w.updateJob(ctx, jobID, report.JobUpdate{Step: &step})
		},
	}
	return w.collector.RehostAll(ctx, articles, progress)
}

// merge runs the MERGING stage. A rewrite-service failure downgrades
// to the deterministic fallback; only a fallback failure kills the job.
func (w *Worker) merge(ctx context.Context, jobID, keyword string, articles []report.ScrapedArticle) (report.MergedReport, error) {
	if w.merger != nil {
		w.updateJob(ctx, jobID, statusStep(report.JobStatusMerging, stepGeminiMerge))
		merged, err := w.merger.Merge(ctx, keyword, articles)
		if err == nil {
			return merged, nil
		}
		w.logger.Warn("rewrite service failed, using local merge",
			zap.String("job_id", jobID),
			zap.Error(err))
	} else {
		w.updateJob(ctx, jobID, statusStep(report.JobStatusMerging, stepLocalMerge))
	}
	return w.fallback.Merge(ctx, keyword, articles)
}

// archive mirrors the report to the secondary archive. Failures are
// logged and never affect the job outcome.
func (w *Worker) archive(ctx context.Context, jobID string, merged report.MergedReport, images []string, sourceURL string) {
	if w.archiver == nil {
		return
	}
	err := w.archiver.Archive(ctx, airtable.Record{
		Title:     merged.Title,
		Content:   merged.Body,
		Status:    string(report.JobStatusCompleted),
		Images:    images,
		SourceURL: sourceURL,
	})
	if err != nil {
		w.logger.Warn("archive failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (w *Worker) failJob(ctx context.Context, jobID, message string) {
	status := report.JobStatusFailed
	w.updateJob(ctx, jobID, report.JobUpdate{Status: &status, ErrorText: &message})
	metrics.ObserveJob(string(report.JobStatusFailed))
	w.logger.Warn("job failed", zap.String("job_id", jobID), zap.String("error", message))
}

func (w *Worker) updateJob(ctx context.Context, jobID string, update report.JobUpdate) {
	if err := w.jobStore.UpdateJob(ctx, jobID, update); err != nil {
		w.logger.Error("job update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func statusStep(status report.JobStatus, step string) report.JobUpdate {
	return report.JobUpdate{Status: &status, Step: &step}
}
