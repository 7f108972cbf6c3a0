package rehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Telegraph uploads to telegra.ph's anonymous media endpoint. The API
// answers a multipart POST with a JSON array of relative file paths.
type Telegraph struct {
	baseURL string
	verify  bool
	client  *http.Client
	logger  *zap.Logger
}

// NewTelegraph constructs the primary upload backend. When verify is
// set, each returned URL is confirmed with a HEAD request before being
// trusted; telegra.ph occasionally acks uploads it never stored.
func NewTelegraph(baseURL string, verify bool, client *http.Client, logger *zap.Logger) *Telegraph {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegraph{
		baseURL: strings.TrimRight(baseURL, "/"),
		verify:  verify,
		client:  client,
		logger:  logger,
	}
}

// Name implements Backend.
func (t *Telegraph) Name() string { return "telegraph" }

// Upload implements Backend.
func (t *Telegraph) Upload(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading to telegraph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telegraph upload returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("reading telegraph response: %w", err)
	}

	var files []struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal(payload, &files); err != nil || len(files) == 0 || files[0].Src == "" {
		return "", fmt.Errorf("unexpected telegraph response %q", truncateForLog(payload))
	}

	url := t.baseURL + files[0].Src
	if t.verify {
		if err := t.verifyStored(ctx, url); err != nil {
			return "", err
		}
	}
	t.logger.Debug("telegraph upload stored", zap.String("url", url))
	return url, nil
}

// verifyStored demotes phantom uploads to failures so the fallback
// backend gets its turn.
func (t *Telegraph) verifyStored(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("building verification request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("verifying telegraph upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegraph verification returned status %d", resp.StatusCode)
	}
	return nil
}

func truncateForLog(payload []byte) string {
	const max = 120
	s := string(payload)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
