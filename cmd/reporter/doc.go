// Package main hosts the keyword reporter service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and job management endpoints. A submitted keyword is
//     validated, persisted as a PENDING job via the JobStore, and enqueued for work; the response returns immediately.
//   - Dispatcher & queue: jobs flow through a bounded in-memory queue sized by config.Worker.QueueDepth and are
//     fanned out to a fixed worker pool sized by config.Worker.Concurrency. Context cancellation stops workers
//     cleanly on shutdown.
//   - Aggregation pipeline: each worker drives discovery (Naver search variants), per-platform extraction (Tistory
//     and Naver blog, goquery based), image validation/re-encoding, and rehosting through the telegra.ph -> catbox.moe
//     fallback chain, all under the probe/accept budgets from config.
//   - Merge & persistence: the article set is rewritten into a single long-form report by Gemini when a key is
//     configured, with a deterministic local merge as the fallback. The result is saved to a Notion database page
//     (batched block appends, image gallery, top-image columns) and optionally archived to Airtable.
//   - Configuration & plumbing: Viper populates config from env/files with a REPORTER_ prefix; zap provides
//     structured logging; Prometheus counters and histograms are exported via the /metrics handler. Job records live
//     in an embedded Badger store by default so state survives restarts.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; image rehosting batches fan out per chunk inside the
//     pipeline. Shutdown is coordinated via context cancellation propagated from main through dispatcher to workers.
//   - Credentials: Notion token and database ID are required per job (a job without them fails immediately);
//     the Gemini key and the Airtable trio are optional and degrade to the local merge / no archive.
//   - Observability: zap logs carry job IDs and keywords at state transitions; Prometheus tracks jobs by outcome,
//     articles by source, image verdicts, and uploads by host.
//
// Quick checklist:
//   - Configure env vars: REPORTER_SERVER_PORT, REPORTER_WORKER_CONCURRENCY, REPORTER_NOTION_TOKEN,
//     REPORTER_NOTION_DATABASE_ID, REPORTER_REWRITE_GEMINI_API_KEY, REPORTER_AIRTABLE_* and REPORTER_STORAGE_DIR
//     when the defaults do not fit.
//   - Run locally: go run ./cmd/reporter -config config.yaml (or rely solely on env overrides).
package main
