package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config for the extraction endpoint client.
type Config struct {
	BaseURL string        // e.g. https://api.chartscan.dev
	APIKey  string        // bearer token, optional for self-hosted endpoints
	Timeout time.Duration // http client timeout
}

// Client calls the external extraction service: one request per document,
// OCR and entity reasoning happen server-side. The client validates the
// response envelope against a JSON schema before accepting it.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.chartscan.dev"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Extract implements Extractor over the HTTP endpoint.
func (c *Client) Extract(ctx context.Context, req Request) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("extract.start",
		"req_id", rid,
		"filename", req.Filename,
		"image_bytes", len(req.Image),
	)

	body := map[string]any{
		"filename":     req.Filename,
		"image_base64": base64.StdEncoding.EncodeToString(req.Image),
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/extract"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, err
	}

	// Validate the envelope before trusting it.
	schema := BuildEnvelopeJSONSchema()
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		c.logger.Error("extract.schema_validation_failed",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("extract.decode_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, fmt.Errorf("decode extraction response: %w", err)
	}

	c.logger.Info("extract.ok",
		"req_id", rid,
		"raw_text_len", len(out.RawText),
		"markup_len", len(out.StructuredOutput),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("extract.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s", failureMessage(resp.StatusCode, raw))
	}
	return raw, nil
}

// failureMessage pulls the server's human-readable reason out of an error
// body, falling back to a generic status line.
func failureMessage(status int, raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return fmt.Sprintf("extraction failed with status %d", status)
}
