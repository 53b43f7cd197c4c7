// Package analysisclient calls the external ESG analysis service.
package analysisclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// AnalyzePath is the analysis endpoint relative to the service base URL.
const AnalyzePath = "/api/esg/esg-analysis-api"

const defaultMaxResponseBytes = 64 << 20

// Config configures the analysis service client.
type Config struct {
	BaseURL string
	// MaxResponseBytes caps the response body; reports carry base64 PDFs.
	MaxResponseBytes int64
	// Optional OAuth2 client credentials; all three must be set to enable.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// HTTPClient overrides the transport (tests). It is wrapped when OAuth2 is enabled.
	HTTPClient *http.Client
}

// Client is the HTTP client for the analysis service. The call deadline is
// taken from the context; the client sets no timeout of its own.
type Client struct {
	endpoint string
	maxBytes int64
	hc       *http.Client
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("analysis service base url is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.TokenURL != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		hc = cc.Client(contextWithClient(hc))
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &Client{endpoint: base + AnalyzePath, maxBytes: maxBytes, hc: hc}, nil
}

// Analyze posts the organization descriptor and decodes the reply. Failures
// are returned as *CallError.
func (c *Client) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err, time.Since(started))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, transportError(ctx, err, time.Since(started))
	}
	if int64(len(raw)) > c.maxBytes {
		return nil, &CallError{Kind: KindDecode, StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", c.maxBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Kind: KindStatus, StatusCode: resp.StatusCode, Body: snippet(raw)}
	}

	var out model.AnalysisResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &CallError{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

func transportError(ctx context.Context, err error, elapsed time.Duration) error {
	kind := KindTransport
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		kind = KindCanceled
	}
	return &CallError{Kind: kind, Err: err, Elapsed: elapsed}
}

func snippet(b []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(b))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
