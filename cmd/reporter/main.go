package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/airtable"
	"github.com/hbkim/keyword-reporter/internal/api"
	"github.com/hbkim/keyword-reporter/internal/clock/system"
	"github.com/hbkim/keyword-reporter/internal/config"
	"github.com/hbkim/keyword-reporter/internal/discovery"
	"github.com/hbkim/keyword-reporter/internal/dispatcher"
	"github.com/hbkim/keyword-reporter/internal/extract"
	"github.com/hbkim/keyword-reporter/internal/fetch"
	"github.com/hbkim/keyword-reporter/internal/id/uuid"
	"github.com/hbkim/keyword-reporter/internal/imaging"
	"github.com/hbkim/keyword-reporter/internal/logging"
	"github.com/hbkim/keyword-reporter/internal/merge"
	"github.com/hbkim/keyword-reporter/internal/metrics"
	"github.com/hbkim/keyword-reporter/internal/notion"
	"github.com/hbkim/keyword-reporter/internal/pipeline"
	queueMemory "github.com/hbkim/keyword-reporter/internal/queue/memory"
	"github.com/hbkim/keyword-reporter/internal/rehost"
	"github.com/hbkim/keyword-reporter/internal/report"
	storageBadger "github.com/hbkim/keyword-reporter/internal/storage/badger"
	storageMemory "github.com/hbkim/keyword-reporter/internal/storage/memory"
	"github.com/hbkim/keyword-reporter/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, closeStore, err := openJobStore(cfg)
	if err != nil {
		logger.Fatal("job store init failed", zap.Error(err))
	}
	defer closeStore()

	queue := queueMemory.NewQueue(cfg.Worker.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	searchFetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.SearchTimeout(),
	})
	pageFetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.PageTimeout(),
	})
	imageFetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.DownloadTimeout(),
	})

	finder := discovery.NewFinder(searchFetcher, discovery.Config{}, logger.Named("discovery"))
	extractors := extract.NewSet(pageFetcher, extract.Config{
		MaxImagesPerPage: cfg.Scrape.MaxImagesPerPage,
	}, logger.Named("extract"))

	encoder := imaging.New(imaging.Options{
		MinBytes:       cfg.Images.MinBytes,
		MinWidth:       cfg.Images.MinWidth,
		MinHeight:      cfg.Images.MinHeight,
		MinAspectRatio: cfg.Images.MinAspectRatio,
		MaxAspectRatio: cfg.Images.MaxAspectRatio,
		MaxSidePx:      cfg.Images.MaxSidePx,
		JPEGQuality:    cfg.Images.JPEGQuality,
	})
	uploadClient := &http.Client{Timeout: cfg.UploadTimeout()}
	backends := []rehost.Backend{
		rehost.NewTelegraph(cfg.Upload.TelegraphURL, cfg.Upload.VerifyPrimary, uploadClient, logger.Named("telegraph")),
		rehost.NewCatbox(cfg.Upload.CatboxURL, uploadClient),
	}
	rehoster := rehost.New(imageFetcher, encoder, backends, cfg.UploadCooldown(), rehost.Hooks{
		ImageOutcome: metrics.ObserveImage,
		UploadResult: metrics.ObserveUpload,
	}, logger.Named("rehost"))

	pipe := pipeline.New(finder, extractors, rehoster, pipeline.Config{
		LinkProbeBudget: cfg.Scrape.LinkProbeBudget,
		ArticleTarget:   cfg.Scrape.ArticleTarget,
		MinBodyRunes:    cfg.Scrape.MinBodyRunes,
		CandidateBudget: cfg.Images.CandidateBudget,
		AcceptCap:       cfg.Images.AcceptCap,
		QuickBatch:      cfg.Images.QuickBatch,
		PreviewCount:    cfg.Images.PreviewCount,
		ChunkSize:       cfg.Images.ChunkSize,
	}, logger.Named("pipeline"))

	var merger report.Merger
	if cfg.HasRewriteKey() {
		gemini, geminiErr := merge.NewGemini(ctx, cfg.Rewrite.GeminiAPIKey, cfg.Rewrite.Model, logger.Named("gemini"))
		if geminiErr != nil {
			logger.Warn("rewrite service init failed, jobs will use the local merge", zap.Error(geminiErr))
		} else {
			merger = gemini
		}
	}

	saver := notion.New(notion.Config{
		Token:      cfg.Notion.Token,
		DatabaseID: cfg.Notion.DatabaseID,
	}, &http.Client{Timeout: 30 * time.Second}, logger.Named("notion"))

	var archiver worker.Archiver
	if cfg.HasAirtable() {
		archiver = airtable.New(airtable.Config{
			Token:     cfg.Airtable.Token,
			BaseID:    cfg.Airtable.BaseID,
			TableName: cfg.Airtable.TableName,
		}, &http.Client{Timeout: 30 * time.Second}, logger.Named("airtable"))
	}

	workerCfg := worker.Config{
		NotionReady:   cfg.HasNotionCredentials(),
		TopImageCount: cfg.Images.PreviewCount,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			pipe,
			merger,
			merge.NewLocal(),
			saver,
			archiver,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobStore, dispatch, idGen, clock, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

// openJobStore picks the configured store backend. The close func is a
// no-op for the in-memory store.
func openJobStore(cfg config.Config) (report.JobStore, func(), error) {
	switch cfg.Storage.Provider {
	case "badger":
		store, err := storageBadger.NewJobStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				zap.L().Error("job store close failed", zap.Error(err))
			}
		}, nil
	case "memory":
		return storageMemory.NewJobStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
