package rehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Catbox uploads to catbox.moe's userapi endpoint. It answers a
// multipart POST with the hosted URL as a bare text body.
type Catbox struct {
	endpoint string
	client   *http.Client
}

// NewCatbox constructs the fallback upload backend.
func NewCatbox(endpoint string, client *http.Client) *Catbox {
	if client == nil {
		client = http.DefaultClient
	}
	return &Catbox{endpoint: endpoint, client: client}
}

// Name implements Backend.
func (c *Catbox) Name() string { return "catbox" }

// Upload implements Backend.
func (c *Catbox) Upload(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	part, err := writer.CreateFormFile("fileToUpload", "image.jpg")
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading to catbox: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catbox upload returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("reading catbox response: %w", err)
	}

	url := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(url, "http") {
		return "", fmt.Errorf("unexpected catbox response %q", truncateForLog(payload))
	}
	return url, nil
}
