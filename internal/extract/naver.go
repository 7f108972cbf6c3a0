package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// The listing page is a shell; the article lives in a frame document.
const naverFrameSelector = "#mainFrame"

// naverHost absolutizes host-relative frame URLs.
const naverHost = "https://blog.naver.com"

var naverTitleSelectors = []string{".se-title-text", ".htitle", ".itemSubjectBoldfont"}

var naverContainerSelectors = []string{".se-main-container", "#postViewArea", ".se_component_wrap"}

var naverImageAttrs = []string{"src", "data-lazy-src", "data-src", "data-origin"}

// naverTypeSuffix matches the rendition query so it can be rewritten to
// the fixed wide-display variant.
var naverTypeSuffix = regexp.MustCompile(`\?type=.*$`)

// Naver extracts articles from blog.naver.com source pages.
type Naver struct {
	fetcher report.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewNaver constructs a Naver extractor.
func NewNaver(fetcher report.Fetcher, cfg Config, logger *zap.Logger) *Naver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Naver{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Extract resolves the content frame, fetches it as a second document and
// mirrors the tistory extraction on it. Any failure along the way,
// including a missing frame, is a no-result.
func (n *Naver) Extract(ctx context.Context, link report.SourceLink) (report.ScrapedArticle, bool) {
	shell, err := n.fetcher.Fetch(ctx, link.URL, "")
	if err != nil {
		n.logger.Debug("shell fetch failed", zap.String("url", link.URL), zap.Error(err))
		return report.ScrapedArticle{}, false
	}
	shellDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(shell))
	if err != nil {
		return report.ScrapedArticle{}, false
	}

	frameSrc, ok := shellDoc.Find(naverFrameSelector).Attr("src")
	if !ok || frameSrc == "" {
		return report.ScrapedArticle{}, false
	}
	frameURL := frameSrc
	if !strings.HasPrefix(frameSrc, "http") {
		frameURL = naverHost + frameSrc
	}

	frame, err := n.fetcher.Fetch(ctx, frameURL, link.URL)
	if err != nil {
		n.logger.Debug("frame fetch failed", zap.String("url", frameURL), zap.Error(err))
		return report.ScrapedArticle{}, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(frame))
	if err != nil {
		return report.ScrapedArticle{}, false
	}

	container := firstWithNodes(doc, naverContainerSelectors)
	scope := container
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	var images []string
	seen := make(map[string]struct{})
	scope.Find("img").Each(func(_ int, img *goquery.Selection) {
		if len(images) >= n.cfg.MaxImagesPerPage {
			return
		}
		src := naverImageSource(img)
		if src == "" {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})

	return report.ScrapedArticle{
		Title:     firstTitle(doc, naverTitleSelectors),
		Body:      collapseWhitespace(scope.Text()),
		SourceURL: link.URL,
		Kind:      report.SourceNaver,
		Images:    images,
		Referer:   link.URL,
	}, true
}

// naverImageSource takes the first non-empty attribute candidate, keeps
// only platform-hosted non-icon assets and pins the wide rendition.
func naverImageSource(img *goquery.Selection) string {
	var src string
	for _, attr := range naverImageAttrs {
		if val, ok := img.Attr(attr); ok && val != "" {
			src = val
			break
		}
	}
	if src == "" || !strings.Contains(src, "pstatic.net") {
		return ""
	}
	if strings.Contains(src, "icon") || strings.Contains(src, "sticker") {
		return ""
	}
	return naverTypeSuffix.ReplaceAllString(src, "?type=w1100")
}
