package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hbkim/keyword-reporter/internal/report"
)

// maxBodyPerArticle bounds how much of each article goes into the prompt.
const maxBodyPerArticle = 10000

const geminiPrompt = `당신은 대한민국 최고의 전문 콘텐츠 에디터이자 지식 큐레이터입니다.
주제: "%s"

임무: 드린 여러 블로그 글들을 분석하여, 독자가 이 문서 하나만 봐도 해당 주제를 완전히 마스터할 수 있도록 "초대형 프리미엄 리포트"를 작성하세요.

[필수 요구사항 - 절대 엄수]
1. 분량: 본문 내용은 반드시 공백 제외 **5000자 이상**으로 매우 상세하고 방대하게 작성하세요. (정보를 보충하거나 논리적 추론을 더해 깊이 있게 작성)
2. 구조화:
   - 제목: 주제를 완벽히 관통하는 매력적인 제목
   - 도입부: 주제의 중요성 및 배경 설명
   - 본문: 최소 5개 이상의 상세 섹션 (## 소제목 사용)
   - 결론: 요약 및 최종 의견
3. 스타일: 전문적이면서도 친절한 블로그 포스팅 톤을 유지하세요.
4. 해시태그: 내용과 관련된 검색 최적화(SEO) 해시태그를 10개 이상 생성하세요.
5. 리포맷팅: 수집된 원문의 말투에 얽매이지 말고, 당신만의 통찰력 있는 언어로 새롭게 "집대성"하세요.

제공된 데이터:
%s

응답은 반드시 아래의 JSON 형식으로만 출력하세요:
{
  "title": "리포트 제목",
  "content": "마크다운 형식의 5000자 이상 본문",
  "tags": ["해시태그1", "해시태그2", ...]
}`

// Models can generate content from a prompt. *genai.Client's Models
// field satisfies this through geminiModels; tests substitute a fake.
type contentGenerator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

// Gemini implements report.Merger over the Gemini API.
type Gemini struct {
	generator contentGenerator
	model     string
	logger    *zap.Logger
}

// NewGemini constructs a Gemini merger. It dials nothing; client
// construction fails only on malformed configuration.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{
		generator: geminiModels{client: client},
		model:     model,
		logger:    logger,
	}, nil
}

type geminiModels struct {
	client *genai.Client
}

func (g geminiModels) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Merge implements report.Merger. Response text may wrap the JSON in a
// markdown code fence, so the first brace-to-brace span is parsed.
func (g *Gemini) Merge(ctx context.Context, keyword string, articles []report.ScrapedArticle) (report.MergedReport, error) {
	text, err := g.generator.generate(ctx, g.model, fmt.Sprintf(geminiPrompt, keyword, promptContext(articles)))
	if err != nil {
		return report.MergedReport{}, fmt.Errorf("generating merged report: %w", err)
	}

	merged, err := parseReportJSON(text)
	if err != nil {
		return report.MergedReport{}, err
	}

	g.logger.Debug("gemini merge succeeded",
		zap.String("keyword", keyword),
		zap.Int("body_len", len(merged.Body)),
		zap.Int("tags", len(merged.Tags)))
	return merged, nil
}

// promptContext renders the articles into the prompt's document list.
func promptContext(articles []report.ScrapedArticle) string {
	sections := make([]string, len(articles))
	for i, article := range articles {
		body := article.Body
		if runes := []rune(body); len(runes) > maxBodyPerArticle {
			body = string(runes[:maxBodyPerArticle])
		}
		sections[i] = fmt.Sprintf("[문서 %d] 출처: %s\n제목: %s\n본문: %s", i+1, article.SourceURL, article.Title, body)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

func parseReportJSON(text string) (report.MergedReport, error) {
	span := jsonSpan.FindString(text)
	if span == "" {
		return report.MergedReport{}, fmt.Errorf("no JSON object in model response")
	}

	var merged report.MergedReport
	if err := json.Unmarshal([]byte(span), &merged); err != nil {
		return report.MergedReport{}, fmt.Errorf("parsing model response: %w", err)
	}
	if merged.Title == "" || merged.Body == "" {
		return report.MergedReport{}, fmt.Errorf("model response missing title or content")
	}
	return merged, nil
}
