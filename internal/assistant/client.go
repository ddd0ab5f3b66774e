package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"legal-rag/internal/models"
)

const maxErrorBody = 512

// RAGClient calls the investigation endpoint of the question answering
// service.
type RAGClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRAGClient creates a client for the service at baseURL. A zero timeout
// means no client-side limit beyond the request context.
func NewRAGClient(baseURL string, timeout time.Duration) *RAGClient {
	return &RAGClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Investigate posts question to /investigation and returns the answer.
// Every transport, status or decoding failure is reported as
// models.ErrRemoteCall.
func (c *RAGClient) Investigate(ctx context.Context, question string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: rag api url is not configured", models.ErrRemoteCall)
	}
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/investigation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRemoteCall, err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("url", url).Msg("Calling investigation API")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling investigation API: %w", models.ErrRemoteCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: investigation API returned %d: %s",
			models.ErrRemoteCall, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Answer *string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding investigation response: %w", models.ErrRemoteCall, err)
	}
	if out.Answer == nil {
		return "", fmt.Errorf("%w: investigation response has no answer", models.ErrRemoteCall)
	}
	return *out.Answer, nil
}
