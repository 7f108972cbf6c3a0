// Package airtable archives finished reports to an Airtable base. The
// archive is best-effort: failures are logged and never bubble up.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.airtable.com"

// Config carries the Airtable credentials and target table.
type Config struct {
	Token     string
	BaseID    string
	TableName string
	// BaseURL overrides the API host, for tests.
	BaseURL string
}

// Record is the archive payload for one finished report.
type Record struct {
	Title     string
	Content   string
	Status    string
	Images    []string
	SourceURL string
}

// Saver posts report records to the Airtable records API.
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

type attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Archive stores one record. The error return exists for tests and
// logs; callers treat the archive as fire-and-forget.
func (s *Saver) Archive(ctx context.Context, record Record) error {
	attachments := make([]attachment, len(record.Images))
	for i, imageURL := range record.Images {
		attachments[i] = attachment{
			URL:      imageURL,
			Filename: fmt.Sprintf("image_%d.jpg", i+1),
		}
	}

	payload := map[string]any{
		"fields": map[string]any{
			"Name":          record.Title,
			"Content":       record.Content,
			"Status":        record.Status,
			"Attachments":   attachments,
			"Reference URL": record.SourceURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding airtable record: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s", s.cfg.BaseURL, s.cfg.BaseID, url.PathEscape(s.cfg.TableName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting airtable record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("airtable API returned status %d: %s", resp.StatusCode, data)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ID != "" {
		s.logger.Info("report archived to airtable", zap.String("record_id", created.ID))
	}
	return nil
}
