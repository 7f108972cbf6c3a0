package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// Ordered candidates for the primary content container; themes vary
// widely, so the list covers the common skins.
var tistoryContainerSelectors = []string{
	".entry-content", ".tt_article_usr", ".article-view",
	"#article-view", ".inner_index", ".post-content",
}

var tistoryTitleSelectors = []string{"h1", "h2", ".title", ".tit_section"}

// Attributes that may carry the real image source, in priority order.
// Lazy-loading themes park the origin URL in data-* attributes.
var tistoryImageAttrs = []string{"src", "data-src", "data-origin", "data-url", "data-original-src"}

// Only images served from the platform's own asset hosts count as content.
var tistoryAssetHosts = []string{"tistory.com", "kakaocdn.net", "daumcdn.net"}

// Known non-content asset paths: emoticons, blog chrome, admin assets.
var tistoryBlockedPaths = []string{"attach/lib/emoticon", "static/img", "tistory_admin"}

// Tistory extracts articles from tistory.com source pages.
type Tistory struct {
	fetcher report.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewTistory constructs a Tistory extractor.
func NewTistory(fetcher report.Fetcher, cfg Config, logger *zap.Logger) *Tistory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tistory{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Extract fetches the page once and pulls a title, normalized body and a
// bounded image list. Any fetch or parse failure is a no-result.
func (t *Tistory) Extract(ctx context.Context, link report.SourceLink) (report.ScrapedArticle, bool) {
	body, err := t.fetcher.Fetch(ctx, link.URL, "")
	if err != nil {
		t.logger.Debug("page fetch failed", zap.String("url", link.URL), zap.Error(err))
		return report.ScrapedArticle{}, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.logger.Debug("page parse failed", zap.String("url", link.URL), zap.Error(err))
		return report.ScrapedArticle{}, false
	}

	container := firstWithNodes(doc, tistoryContainerSelectors)
	scope := container
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	var images []string
	seen := make(map[string]struct{})
	scope.Find("img").Each(func(_ int, img *goquery.Selection) {
		if len(images) >= t.cfg.MaxImagesPerPage {
			return
		}
		src := tistoryImageSource(img)
		if src == "" {
			return
		}
		final := normalizeTistoryImageURL(src)
		if _, dup := seen[final]; dup {
			return
		}
		seen[final] = struct{}{}
		images = append(images, final)
	})

	return report.ScrapedArticle{
		Title:     firstTitle(doc, tistoryTitleSelectors),
		Body:      collapseWhitespace(scope.Text()),
		SourceURL: link.URL,
		Kind:      report.SourceTistory,
		Images:    images,
		Referer:   link.URL,
	}, true
}

// tistoryImageSource walks the attribute candidates and returns the first
// value hosted on a platform asset domain, or "" when none qualifies or
// the asset sits under a blocked path.
func tistoryImageSource(img *goquery.Selection) string {
	var src string
	for _, attr := range tistoryImageAttrs {
		val, ok := img.Attr(attr)
		if ok && containsAny(val, tistoryAssetHosts) {
			src = val
			break
		}
	}
	if src == "" {
		return ""
	}
	src = strings.ReplaceAll(src, "&amp;", "&")
	if containsAny(src, tistoryBlockedPaths) {
		return ""
	}
	return src
}

// normalizeTistoryImageURL strips tracking query parameters, except on
// thumbnail/variant endpoints where the query selects the rendition.
func normalizeTistoryImageURL(src string) string {
	if strings.Contains(src, "/dna/") || strings.Contains(src, "/thumb/") {
		return src
	}
	if i := strings.IndexByte(src, '?'); i >= 0 {
		return src[:i]
	}
	return src
}
