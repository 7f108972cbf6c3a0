// Package pipeline turns one keyword into scraped articles and a set of
// rehosted image URLs. It owns the probe and acceptance budgets that keep
// a single job from crawling forever.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// LinkFinder produces candidate source links for a keyword.
type LinkFinder interface {
	Discover(ctx context.Context, keyword string) ([]report.SourceLink, error)
}

// Config carries the pipeline budgets.
type Config struct {
	LinkProbeBudget int
	ArticleTarget   int
	MinBodyRunes    int

	CandidateBudget int
	AcceptCap       int
	QuickBatch      int
	PreviewCount    int
	ChunkSize       int
}

// Progress receives mid-job notifications. Nil funcs are skipped.
type Progress struct {
	// Preview fires once, after the quick batch, with the first few
	// hosted URLs so callers can surface early results.
	Preview func(urls []string)
	// Step fires periodically during the long tail with counts of
	// processed and total candidates.
	Step func(done, total int)
}

// Pipeline wires discovery, extraction, and rehosting for one keyword.
type Pipeline struct {
	finder   LinkFinder
	extract  report.Extractor
	rehoster report.Rehoster
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Pipeline.
func New(finder LinkFinder, extract report.Extractor, rehoster report.Rehoster, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		finder:   finder,
		extract:  extract,
		rehoster: rehoster,
		cfg:      cfg,
		logger:   logger,
	}
}

// Collect discovers links for the keyword and extracts articles until
// either the article target is met or the probe budget runs out. Links
// that fail extraction or carry too little content are skipped quietly.
// An empty result is not an error here; the caller decides what an
// empty harvest means for the job.
func (p *Pipeline) Collect(ctx context.Context, keyword string) ([]report.ScrapedArticle, error) {
	links, err := p.finder.Discover(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("discovering links for %q: %w", keyword, err)
	}
	if len(links) > p.cfg.LinkProbeBudget {
		links = links[:p.cfg.LinkProbeBudget]
	}

	articles := make([]report.ScrapedArticle, 0, p.cfg.ArticleTarget)
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return articles, err
		}

		article, ok := p.extract.Extract(ctx, link)
		if !ok {
			continue
		}
		if !p.acceptable(article) {
			p.logger.Debug("article below content floor", zap.String("url", link.URL))
			continue
		}

		articles = append(articles, article)
		if len(articles) >= p.cfg.ArticleTarget {
			break
		}
	}

	p.logger.Info("collection finished",
		zap.String("keyword", keyword),
		zap.Int("links", len(links)),
		zap.Int("articles", len(articles)))
	return articles, nil
}

// acceptable keeps an article when it has enough prose to summarize or
// at least one image worth salvaging.
func (p *Pipeline) acceptable(article report.ScrapedArticle) bool {
	if len([]rune(article.Body)) > p.cfg.MinBodyRunes {
		return true
	}
	return len(article.Images) > 0
}

// RehostAll pushes every image candidate from the articles through the
// rehoster. A small quick batch runs first so previews appear early;
// the remainder is processed in concurrent chunks until the accept cap
// is reached. Hosted URLs come back in candidate order.
func (p *Pipeline) RehostAll(ctx context.Context, articles []report.ScrapedArticle, progress Progress) []string {
	candidates := p.flatten(articles)
	if len(candidates) == 0 {
		if progress.Preview != nil {
			progress.Preview(nil)
		}
		return nil
	}

	hosted := make([]string, 0, p.cfg.AcceptCap)

	quick := p.cfg.QuickBatch
	if quick > len(candidates) {
		quick = len(candidates)
	}
	hosted = p.appendBatch(ctx, hosted, candidates[:quick])
	if progress.Preview != nil {
		n := p.cfg.PreviewCount
		if n > len(hosted) {
			n = len(hosted)
		}
		progress.Preview(hosted[:n])
	}

	rest := candidates[quick:]
	done := quick
	for chunkIdx := 0; len(rest) > 0 && len(hosted) < p.cfg.AcceptCap; chunkIdx++ {
		if ctx.Err() != nil {
			break
		}

		size := p.cfg.ChunkSize
		if size > len(rest) {
			size = len(rest)
		}
		hosted = p.appendBatch(ctx, hosted, rest[:size])
		rest = rest[size:]
		done += size

		if progress.Step != nil && chunkIdx%2 == 1 {
			progress.Step(done, len(candidates))
		}
	}

	if len(hosted) > p.cfg.AcceptCap {
		hosted = hosted[:p.cfg.AcceptCap]
	}
	return hosted
}

// flatten gathers image candidates across articles in article order,
// dropping duplicate URLs and stopping at the candidate budget. Each
// candidate carries its article's referer for asset hosts that refuse
// referer-less requests.
func (p *Pipeline) flatten(articles []report.ScrapedArticle) []report.ImageCandidate {
	seen := make(map[string]struct{})
	var out []report.ImageCandidate
	for _, article := range articles {
		for _, img := range article.Images {
			if _, dup := seen[img]; dup {
				continue
			}
			seen[img] = struct{}{}
			out = append(out, report.ImageCandidate{RawURL: img, Referer: article.Referer})
			if len(out) >= p.cfg.CandidateBudget {
				return out
			}
		}
	}
	return out
}

// appendBatch rehosts one batch concurrently and appends the survivors
// in their original candidate order.
func (p *Pipeline) appendBatch(ctx context.Context, hosted []string, batch []report.ImageCandidate) []string {
	results := make([]string, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range batch {
		g.Go(func() error {
			if url, ok := p.rehoster.Rehost(gctx, candidate); ok {
				results[i] = url
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, url := range results {
		if url == "" {
			continue
		}
		if len(hosted) >= p.cfg.AcceptCap {
			break
		}
		hosted = append(hosted, url)
	}
	return hosted
}
