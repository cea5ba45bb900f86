// Package knowledge is the HTTP client for the passage-search service that
// backs reading-cue context. Lookups are best-effort: a failed or empty
// search degrades the reply to conversation-only context.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultTop is how many passages a search asks for when the caller does not
// say otherwise.
const DefaultTop = 3

// Searcher finds passages relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, top int) ([]string, error)
}

type searchRequest struct {
	Query string `json:"query"`
	Top   int    `json:"top"`
}

type searchResponse struct {
	Passages []struct {
		Text  string  `json:"text"`
		Score float64 `json:"score,omitempty"`
	} `json:"passages"`
}

type clientImpl struct {
	httpClient  *http.Client
	apiKey      string
	apiEndpoint string
	logger      *slog.Logger
}

// NewClient builds a Searcher for the service at baseURL. apiKey may be empty
// for unauthenticated deployments.
func NewClient(logger *slog.Logger, apiKey, baseURL string) Searcher {
	return &clientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey:      apiKey,
		apiEndpoint: baseURL,
		logger:      logger.With("component", "knowledge_client"),
	}
}

func (c *clientImpl) Search(ctx context.Context, query string, top int) ([]string, error) {
	startTime := time.Now()

	if top <= 0 {
		top = DefaultTop
	}

	body, err := json.Marshal(searchRequest{Query: query, Top: top})
	if err != nil {
		return nil, err
	}

	endpoint, err := url.JoinPath(c.apiEndpoint, "search")
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "personad/1.0")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordSearch(time.Since(startTime).Seconds(), false)
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		recordSearch(time.Since(startTime).Seconds(), false)
		return nil, fmt.Errorf("failed to read knowledge response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		recordSearch(time.Since(startTime).Seconds(), false)
		return nil, fmt.Errorf("knowledge search returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var searchResp searchResponse
	if err := json.Unmarshal(responseBody, &searchResp); err != nil {
		recordSearch(time.Since(startTime).Seconds(), false)
		return nil, fmt.Errorf("failed to parse knowledge response: %w", err)
	}

	passages := make([]string, 0, len(searchResp.Passages))
	for _, p := range searchResp.Passages {
		if p.Text != "" {
			passages = append(passages, p.Text)
		}
	}

	recordSearch(time.Since(startTime).Seconds(), true)
	c.logger.Debug("Knowledge search completed",
		"query_chars", len(query),
		"passages", len(passages),
		"duration", time.Since(startTime),
	)
	return passages, nil
}
