// Package notion persists finished reports as pages in a Notion
// database. Notion has no official Go SDK, so this speaks the REST API
// directly.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hbkim/keyword-reporter/internal/report"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"

	// Notion rejects requests carrying more than 100 blocks and rich
	// text runs longer than 2000 characters; chunking stays under both.
	maxBlocksPerRequest = 100
	maxTextChunkRunes   = 1900
	maxTagRunes         = 100
)

// block is one Notion content block. The API's block schema is deeply
// polymorphic; maps beat a forest of single-use structs here.
type block = map[string]any

// Config carries the Notion credentials and target database.
type Config struct {
	Token      string
	DatabaseID string
	// BaseURL overrides the API host, for tests.
	BaseURL string
}

// Saver implements report.Saver against the Notion pages API.
type Saver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Saver.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Saver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{cfg: cfg, client: client, logger: logger}
}

// Save implements report.Saver. It creates the page with the first
// hundred blocks and appends the overflow in further batches.
func (s *Saver) Save(ctx context.Context, req report.SaveRequest) (report.SaveResult, error) {
	blocks := s.buildBlocks(req)

	initial := blocks
	if len(initial) > maxBlocksPerRequest {
		initial = initial[:maxBlocksPerRequest]
	}

	created, err := s.createPage(ctx, req, initial)
	if err != nil {
		return report.SaveResult{}, err
	}

	for start := maxBlocksPerRequest; start < len(blocks); start += maxBlocksPerRequest {
		end := start + maxBlocksPerRequest
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := s.appendBlocks(ctx, created.ID, blocks[start:end]); err != nil {
			return report.SaveResult{}, err
		}
	}

	s.logger.Info("report saved to notion",
		zap.String("page_id", created.ID),
		zap.Int("blocks", len(blocks)))
	return report.SaveResult{URL: created.URL}, nil
}

func (s *Saver) buildBlocks(req report.SaveRequest) []block {
	var blocks []block

	if req.SourceURL != "" {
		blocks = append(blocks, block{
			"object": "block",
			"type":   "callout",
			"callout": map[string]any{
				"rich_text": richText(fmt.Sprintf("수집된 대규모 원본 데이터입니다. (주요 출처: %s)", req.SourceURL)),
				"icon":      map[string]any{"emoji": "📚"},
				"color":     "blue_background",
			},
		})
	}

	blocks = append(blocks, markdownToBlocks(req.Body)...)

	if len(req.Images) > 0 {
		blocks = append(blocks, block{
			"object":    "block",
			"type":      "heading_2",
			"heading_2": map[string]any{"rich_text": richText("🖼️ 수집된 이미지 갤러리")},
		})
		for _, url := range req.Images {
			blocks = append(blocks, block{
				"object": "block",
				"type":   "image",
				"image": map[string]any{
					"type":     "external",
					"external": map[string]any{"url": url},
				},
			})
		}
	}
	return blocks
}

func (s *Saver) buildProperties(req report.SaveRequest) map[string]any {
	tags := make([]map[string]any, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tags = append(tags, map[string]any{"name": sanitizeTag(tag)})
	}

	sourceURL := req.SourceURL
	if sourceURL == "" {
		sourceURL = "https://www.notion.so"
	}

	properties := map[string]any{
		"title": map[string]any{
			"title": richText(req.Title),
		},
		"Tags": map[string]any{
			"multi_select": tags,
		},
		"Sources": map[string]any{
			"url": sourceURL,
		},
	}

	for i, url := range req.TopImages {
		key := fmt.Sprintf("image%d", i+1)
		properties[key] = map[string]any{
			"files": []map[string]any{{
				"name":     key + ".jpg",
				"type":     "external",
				"external": map[string]any{"url": url},
			}},
		}
	}
	return properties
}

type createdPage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Saver) createPage(ctx context.Context, req report.SaveRequest, children []block) (createdPage, error) {
	payload := map[string]any{
		"parent":     map[string]any{"database_id": s.cfg.DatabaseID},
		"properties": s.buildProperties(req),
		"children":   children,
	}

	var page createdPage
	if err := s.call(ctx, http.MethodPost, "/v1/pages", payload, &page); err != nil {
		return createdPage{}, fmt.Errorf("creating notion page: %w", err)
	}
	return page, nil
}

func (s *Saver) appendBlocks(ctx context.Context, pageID string, children []block) error {
	payload := map[string]any{"children": children}
	if err := s.call(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", payload, nil); err != nil {
		return fmt.Errorf("appending notion blocks: %w", err)
	}
	return nil
}

func (s *Saver) call(ctx context.Context, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notion API returned status %d: %s", resp.StatusCode, apiErrorMessage(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// apiErrorMessage pulls the human-readable message out of Notion's
// error envelope, falling back to the raw body.
func apiErrorMessage(data []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func richText(content string) []map[string]any {
	return []map[string]any{{"text": map[string]any{"content": content}}}
}

// sanitizeTag fits a tag into Notion's multi_select constraints: no
// commas, at most a hundred characters.
func sanitizeTag(tag string) string {
	tag = strings.ReplaceAll(tag, ",", "")
	if runes := []rune(tag); len(runes) > maxTagRunes {
		tag = string(runes[:maxTagRunes])
	}
	return tag
}

// markdownToBlocks converts the merged report's markdown-ish body into
// Notion blocks. Only the structures the mergers actually emit are
// handled: h2 headings, bullets, and plain paragraphs. Long lines are
// chunked so no rich text run exceeds the API limit.
func markdownToBlocks(markdown string) []block {
	var blocks []block
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		blockType := "paragraph"
		content := trimmed
		switch {
		case strings.HasPrefix(trimmed, "## "):
			blockType = "heading_2"
			content = strings.TrimPrefix(trimmed, "## ")
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			blockType = "bulleted_list_item"
			content = trimmed[2:]
		}

		for _, chunk := range chunkRunes(content, maxTextChunkRunes) {
			blocks = append(blocks, block{
				"object":  "block",
				"type":    blockType,
				blockType: map[string]any{"rich_text": richText(chunk)},
			})
		}
	}
	return blocks
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
