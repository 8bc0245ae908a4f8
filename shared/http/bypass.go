package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// flareSolverrResponse is the subset of the FlareSolverr reply we read.
type flareSolverrResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// Bypass fetches pages through a FlareSolverr-compatible service to get past
// Cloudflare challenges.
type Bypass struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

// NewBypass returns nil when endpoint is empty so callers can treat the
// bypass as optional.
func NewBypass(endpoint string, logger *slog.Logger) *Bypass {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bypass{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 90 * time.Second},
		Logger:   logger,
	}
}

// Fetch asks the bypass service to load targetURL and returns the rendered HTML.
func (b *Bypass) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	requestBody := map[string]any{
		"cmd":        "request.get",
		"url":        targetURL,
		"maxTimeout": 60000,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bypass request: %w", err)
	}

	b.Logger.Debug("Calling bypass service", "url", targetURL, "bypass_url", b.Endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint+"/v1", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create bypass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call bypass service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bypass response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bypass service returned status %d", resp.StatusCode)
	}

	var bypassResp flareSolverrResponse
	if err := json.Unmarshal(bodyBytes, &bypassResp); err != nil {
		return nil, fmt.Errorf("failed to decode bypass response: %w", err)
	}

	if bypassResp.Status != "ok" {
		return nil, fmt.Errorf("bypass service returned status %s: %s", bypassResp.Status, bypassResp.Message)
	}

	if bypassResp.Solution.Response == "" {
		return nil, fmt.Errorf("bypass service returned empty response")
	}

	// Challenge pages that slip through are tiny compared to a real post.
	if len(bypassResp.Solution.Response) < 2000 {
		b.Logger.Warn("Bypass service returned suspiciously short content",
			"url", targetURL,
			"length", len(bypassResp.Solution.Response))
	}

	return []byte(bypassResp.Solution.Response), nil
}
