// Package rehost moves scraped blog images onto neutral hosting. Source
// hosts gate their assets behind referer checks and expire URLs, so every
// surviving image is downloaded, re-encoded, and uploaded before it is
// cited anywhere durable.
package rehost

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/imaging"
	"github.com/hbkim/keyword-reporter/internal/report"
)

// DefaultReferer is sent when a candidate carries no page of origin.
const DefaultReferer = "https://tistory.com/"

// Backend uploads a finished JPEG to one hosting provider.
type Backend interface {
	Name() string
	Upload(ctx context.Context, data []byte) (string, error)
}

// Hooks receive per-candidate outcomes. Nil funcs are skipped.
type Hooks struct {
	ImageOutcome func(verdict string)
	UploadResult func(host, outcome string)
}

// Service implements report.Rehoster over a download/validate/upload
// chain. Backends are tried in order with a fixed pause between
// attempts; each backend gets exactly one try per image.
type Service struct {
	fetcher  report.Fetcher
	encoder  *imaging.Encoder
	backends []Backend
	cooldown time.Duration
	hooks    Hooks
	logger   *zap.Logger
}

// New constructs a Service.
func New(fetcher report.Fetcher, encoder *imaging.Encoder, backends []Backend, cooldown time.Duration, hooks Hooks, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:  fetcher,
		encoder:  encoder,
		backends: backends,
		cooldown: cooldown,
		hooks:    hooks,
		logger:   logger,
	}
}

// Rehost downloads one candidate, validates and re-encodes it, and walks
// the backend chain until a host accepts it. A false return means the
// candidate is gone for good; rehosting never fails a job.
func (s *Service) Rehost(ctx context.Context, candidate report.ImageCandidate) (string, bool) {
	referer := candidate.Referer
	if referer == "" {
		referer = DefaultReferer
	}

	raw, err := s.fetcher.Fetch(ctx, candidate.RawURL, referer)
	if err != nil {
		s.logger.Debug("image download failed", zap.String("url", candidate.RawURL), zap.Error(err))
		s.observeImage("download_failed")
		return "", false
	}

	data, verdict := s.encoder.Process(raw)
	s.observeImage(string(verdict))
	if verdict != imaging.VerdictAccepted {
		s.logger.Debug("image rejected",
			zap.String("url", candidate.RawURL),
			zap.String("verdict", string(verdict)))
		return "", false
	}

	for i, backend := range s.backends {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", false
			case <-time.After(s.cooldown):
			}
		}

		url, err := backend.Upload(ctx, data)
		if err != nil {
			s.logger.Debug("upload failed",
				zap.String("backend", backend.Name()),
				zap.String("url", candidate.RawURL),
				zap.Error(err))
			s.observeUpload(backend.Name(), "failed")
			continue
		}
		s.observeUpload(backend.Name(), "ok")
		return url, true
	}
	return "", false
}

func (s *Service) observeImage(verdict string) {
	if s.hooks.ImageOutcome != nil {
		s.hooks.ImageOutcome(verdict)
	}
}

func (s *Service) observeUpload(host, outcome string) {
	if s.hooks.UploadResult != nil {
		s.hooks.UploadResult(host, outcome)
	}
}
