// Package merge combines scraped articles into a single report. The
// Gemini merger produces a rewritten report; the local merger is the
// deterministic concatenation used whenever the rewrite service is
// unavailable or misbehaves.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/hbkim/keyword-reporter/internal/report"
)

const localTitleFormat = "[프로젝트] %s 통합 대백과 리포트"

var localTags = []string{"프리미엄", "자동수집"}

// Local implements report.Merger by stitching articles together verbatim.
// Output is byte-deterministic for a given keyword and article sequence.
type Local struct{}

// NewLocal constructs the fallback merger.
func NewLocal() Local { return Local{} }

// Merge implements report.Merger. It never fails.
func (Local) Merge(_ context.Context, keyword string, articles []report.ScrapedArticle) (report.MergedReport, error) {
	sections := make([]string, len(articles))
	for i, article := range articles {
		sections[i] = fmt.Sprintf("## [문서 %d] %s\n\n%s\n\n---", i+1, article.Title, article.Body)
	}

	tags := make([]string, 0, len(localTags)+1)
	tags = append(tags, keyword)
	tags = append(tags, localTags...)

	return report.MergedReport{
		Title: fmt.Sprintf(localTitleFormat, keyword),
		Body:  strings.Join(sections, "\n\n"),
		Tags:  tags,
	}, nil
}
