// Package completion is the HTTP client for the text-completion backend.
// The backend takes a raw prompt plus sampling parameters and returns sampled
// continuations; retries with fresh sampling are how the generation engine
// gets variation between attempts.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Transport-level retry configuration.
const (
	maxRetries   = 3
	baseDelay    = 1 * time.Second
	maxDelay     = 30 * time.Second
	jitterFactor = 0.2 // 20% jitter
)

// Sampling defaults tuned for in-character dialogue.
const (
	DefaultTemperature     = 0.865
	DefaultPresencePenalty = 0.23
	DefaultMaxTokens       = 250
)

// DefaultStops terminate sampling when the model starts writing the next
// transcript line instead of finishing its own.
var DefaultStops = []string{">:", "> :", "<", "<|", "\n(", "(Sources"}

type Client interface {
	CreateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

type CompletionRequest struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	MaxTokens       int      `json:"max_tokens,omitempty"`
	Temperature     float64  `json:"temperature,omitempty"`
	PresencePenalty float64  `json:"presence_penalty,omitempty"`
	Stop            []string `json:"stop,omitempty"`
}

type CompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason,omitempty"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// FirstText returns the first choice's text. The backend may return several
// continuations; only the first is used.
func (r CompletionResponse) FirstText() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Text
}

type clientImpl struct {
	httpClient  *http.Client
	apiKey      string
	apiEndpoint string
	logger      *slog.Logger
}

// isRetryableStatusCode returns true if the HTTP status code indicates a retryable error.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// isRetryableError returns true if the error is a network/timeout error that should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// calculateBackoff returns the delay for the given attempt using exponential backoff with jitter.
func calculateBackoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := time.Duration(float64(delay) * jitterFactor * (2*rand.Float64() - 1))
	return delay + jitter
}

func NewClient(logger *slog.Logger, apiKey, proxyURL, baseURL string) (Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   10,
	}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &clientImpl{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   300 * time.Second,
		},
		apiKey:      apiKey,
		apiEndpoint: baseURL,
		logger:      logger.With("component", "completion_client"),
	}, nil
}

func (c *clientImpl) CreateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	startTime := time.Now()

	c.logger.Debug("Sending completion request",
		"model", req.Model,
		"prompt_chars", len(req.Prompt),
		"max_tokens", req.MaxTokens,
	)

	body, err := json.Marshal(req)
	if err != nil {
		return CompletionResponse{}, err
	}

	endpoint, err := url.JoinPath(c.apiEndpoint, "completions")
	if err != nil {
		return CompletionResponse{}, err
	}

	var responseBody []byte
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			RecordCompletionRetry(req.Model)
			delay := calculateBackoff(attempt - 1)
			c.logger.Warn("Retrying completion request",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-ctx.Done():
				return CompletionResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
		if err != nil {
			return CompletionResponse{}, err
		}

		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", "personad/1.0")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableError(err) && attempt < maxRetries {
				lastErr = err
				continue
			}
			return CompletionResponse{}, err
		}

		responseBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if isRetryableError(err) && attempt < maxRetries {
				lastErr = err
				continue
			}
			return CompletionResponse{}, err
		}

		c.logger.Debug("Completion response received", "status", resp.Status, "attempt", attempt)

		if resp.StatusCode == http.StatusOK {
			break // Success
		}

		if isRetryableStatusCode(resp.StatusCode) && attempt < maxRetries {
			lastErr = fmt.Errorf("completion API error: %s", resp.Status)
			continue
		}

		c.logger.Error("Completion backend returned non-OK status", "status", resp.Status, "body", string(responseBody))
		RecordCompletionRequest(req.Model, time.Since(startTime).Seconds(), false, 0, 0)
		return CompletionResponse{}, fmt.Errorf("completion API error: %s", resp.Status)
	}

	var complResp CompletionResponse
	if err := json.Unmarshal(responseBody, &complResp); err != nil {
		c.logger.Error("Failed to decode completion response", "error", err, "body_length", len(responseBody))
		RecordCompletionRequest(req.Model, time.Since(startTime).Seconds(), false, 0, 0)
		return CompletionResponse{}, err
	}

	if len(complResp.Choices) == 0 {
		c.logger.Error("Completion backend returned no choices", "model", complResp.Model)
		RecordCompletionRequest(req.Model, time.Since(startTime).Seconds(), false, 0, 0)
		return CompletionResponse{}, errors.New("completion backend returned no choices")
	}

	c.logger.Info("Completion response parsed",
		"model", complResp.Model,
		"choices", len(complResp.Choices),
		"prompt_tokens", complResp.Usage.PromptTokens,
		"completion_tokens", complResp.Usage.CompletionTokens,
	)

	RecordCompletionRequest(req.Model, time.Since(startTime).Seconds(), true,
		complResp.Usage.PromptTokens, complResp.Usage.CompletionTokens)

	return complResp, nil
}
