package app

import (
	"context"

	"github.com/runixer/personad/internal/completion"
	"github.com/runixer/personad/internal/config"
)

// completionBackend adapts the completion HTTP client to the generation
// engine's Backend contract, carrying the configured sampling parameters.
type completionBackend struct {
	client completion.Client
	cfg    config.CompletionConfig
}

func newCompletionBackend(client completion.Client, cfg config.CompletionConfig) *completionBackend {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = completion.DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = completion.DefaultTemperature
	}
	if cfg.PresencePenalty == 0 {
		cfg.PresencePenalty = completion.DefaultPresencePenalty
	}
	if len(cfg.Stop) == 0 {
		cfg.Stop = completion.DefaultStops
	}
	return &completionBackend{client: client, cfg: cfg}
}

func (b *completionBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateCompletion(ctx, completion.CompletionRequest{
		Model:           b.cfg.Model,
		Prompt:          prompt,
		MaxTokens:       b.cfg.MaxTokens,
		Temperature:     b.cfg.Temperature,
		PresencePenalty: b.cfg.PresencePenalty,
		Stop:            b.cfg.Stop,
	})
	if err != nil {
		return "", err
	}
	return resp.FirstText(), nil
}
