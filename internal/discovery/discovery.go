// Package discovery finds candidate source pages for a keyword by running
// a small set of search query variants and pattern-matching the results.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// DefaultSearchBaseURL is the search endpoint scraped for source links.
const DefaultSearchBaseURL = "https://search.naver.com/search.naver"

// minLinkLength filters out truncated or garbage matches.
const minLinkLength = 26

// Source-page URL shapes: tistory entry slugs, tistory numeric posts,
// and naver blog post paths.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://[a-z0-9.-]+\.tistory\.com/entry/[^\s"'>\\\]]+`),
	regexp.MustCompile(`https://[a-z0-9.-]+\.tistory\.com/[0-9]+`),
	regexp.MustCompile(`https://blog\.naver\.com/[a-z0-9_]+/[0-9]+`),
}

// markupArtifacts strips escaping the search page's markup wraps around
// URLs embedded in scripts and attributes.
var markupArtifacts = strings.NewReplacer(`\`, "", "&quot;", "", "%22", "")

// Config controls discovery behavior.
type Config struct {
	SearchBaseURL string
}

// Finder issues search queries and extracts deduplicated source links.
type Finder struct {
	fetcher report.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewFinder constructs a Finder.
func NewFinder(fetcher report.Fetcher, cfg Config, logger *zap.Logger) *Finder {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = DefaultSearchBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{fetcher: fetcher, cfg: cfg, logger: logger}
}

// queryVariants widens recall beyond a single phrasing: the keyword alone,
// a site-restricted form, a review-intent form, and a generic posting term.
func queryVariants(keyword string) []string {
	return []string{
		keyword,
		keyword + " site:tistory.com",
		keyword + " 블로그 리뷰",
		keyword + " 포스팅",
	}
}

// Discover returns the combined, deduplicated source links for a keyword
// in first-seen order. A failed search fetch drops that query's links
// only; an error comes back only when every query fails, meaning the
// search engine itself is unreachable.
func (f *Finder) Discover(ctx context.Context, keyword string) ([]report.SourceLink, error) {
	seen := make(map[string]struct{})
	var links []report.SourceLink
	var lastErr error
	failed := 0

	variants := queryVariants(keyword)
	for _, q := range variants {
		searchURL := fmt.Sprintf("%s?where=view&query=%s&qvt=0", f.cfg.SearchBaseURL, url.QueryEscape(q))
		body, err := f.fetcher.Fetch(ctx, searchURL, "")
		if err != nil {
			f.logger.Warn("search query failed", zap.String("query", q), zap.Error(err))
			failed++
			lastErr = err
			continue
		}
		for _, raw := range extractLinks(string(body)) {
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			links = append(links, report.SourceLink{URL: raw, Kind: KindForURL(raw)})
		}
	}

	if failed == len(variants) {
		return nil, fmt.Errorf("all search queries failed: %w", lastErr)
	}

	f.logger.Info("link discovery finished",
		zap.String("keyword", keyword),
		zap.Int("links", len(links)),
	)
	return links, nil
}

// extractLinks pattern-matches candidate URLs out of one search document.
// Escaping artifacts are stripped first: URLs embedded in scripts arrive
// JSON-escaped and would never match the patterns otherwise.
func extractLinks(doc string) []string {
	doc = markupArtifacts.Replace(doc)
	var out []string
	seen := make(map[string]struct{})
	for _, pattern := range linkPatterns {
		for _, match := range pattern.FindAllString(doc, -1) {
			if !acceptLink(match) {
				continue
			}
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			out = append(out, match)
		}
	}
	return out
}

// acceptLink drops links pointing back at the search engine and
// implausibly short matches.
func acceptLink(link string) bool {
	if strings.Contains(link, "search.naver.com") {
		return false
	}
	return len(link) >= minLinkLength
}

// KindForURL classifies a source URL by platform.
func KindForURL(rawURL string) report.SourceKind {
	switch {
	case strings.Contains(rawURL, "tistory.com"):
		return report.SourceTistory
	case strings.Contains(rawURL, "blog.naver.com"):
		return report.SourceNaver
	default:
		return report.SourceGeneric
	}
}
