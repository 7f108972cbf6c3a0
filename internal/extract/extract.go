// Package extract turns source-page URLs into scraped articles. One
// extractor exists per supported blog platform; unknown platforms yield
// no result instead of failing the batch.
package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// untitledPlaceholder stands in when no title candidate matches.
const untitledPlaceholder = "(untitled)"

// Config controls extraction behavior shared by all platforms.
type Config struct {
	MaxImagesPerPage int
}

// Set dispatches extraction by source kind behind a closed variant set.
type Set struct {
	tistory *Tistory
	naver   *Naver
}

// NewSet constructs extractors for every supported platform.
func NewSet(fetcher report.Fetcher, cfg Config, logger *zap.Logger) *Set {
	if cfg.MaxImagesPerPage <= 0 {
		cfg.MaxImagesPerPage = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		tistory: NewTistory(fetcher, cfg, logger.Named("tistory")),
		naver:   NewNaver(fetcher, cfg, logger.Named("naver")),
	}
}

// Extract dispatches to the platform extractor for the link's kind.
func (s *Set) Extract(ctx context.Context, link report.SourceLink) (report.ScrapedArticle, bool) {
	switch link.Kind {
	case report.SourceTistory:
		return s.tistory.Extract(ctx, link)
	case report.SourceNaver:
		return s.naver.Extract(ctx, link)
	default:
		return report.ScrapedArticle{}, false
	}
}

// firstWithNodes returns the first selector match that selects at least
// one node, or an empty selection.
func firstWithNodes(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return doc.Find("")
}

// firstTitle returns the first non-empty trimmed text among the selector
// candidates, falling back to the document title, then a placeholder.
func firstTitle(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	if text := strings.TrimSpace(doc.Find("title").Text()); text != "" {
		return text
	}
	return untitledPlaceholder
}

// collapseWhitespace trims and folds all whitespace runs into single
// spaces, per the article body invariant.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
