// Package engine drives the generation loop: render a prompt frame once, ask
// the completion backend for samples, and retry with fresh sampling until a
// candidate passes every registered validator or the attempt budget runs out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/runixer/personad/internal/frame"
)

// maxAttempts bounds the generate/validate loop. Each retry reuses the same
// rendered prompt; variation comes from the backend's own sampling.
const maxAttempts = 5

// ErrGenerationExhausted is returned when every attempt was rejected by a
// validator or produced an empty completion.
var ErrGenerationExhausted = errors.New("generation attempts exhausted")

// Backend produces one completion sample for a prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Validator vetoes candidate responses. Validate returns true to reject the
// candidate; a response is accepted only when no validator rejects it.
type Validator interface {
	Name() string
	Validate(ctx context.Context, response, finalPrompt string) bool
}

// Engine runs the retry-validated generation loop.
type Engine struct {
	backend    Backend
	validators []Validator
	logger     *slog.Logger
}

// New creates an Engine over the given backend.
func New(backend Backend, logger *slog.Logger, validators ...Validator) *Engine {
	return &Engine{
		backend:    backend,
		validators: validators,
		logger:     logger.With("component", "engine"),
	}
}

// AddValidator appends a validator to the rejection chain.
func (e *Engine) AddValidator(v Validator) {
	e.validators = append(e.validators, v)
}

// Result is an accepted completion plus the attempt that produced it.
type Result struct {
	Text     string
	Prompt   string
	Attempts int
}

// Complete renders the frame and loops generate/validate until a candidate is
// accepted. The first accepted candidate is returned immediately; remaining
// attempts are not spent. All-rejected or all-empty attempts end in
// ErrGenerationExhausted.
func (e *Engine) Complete(ctx context.Context, f *frame.Frame) (string, error) {
	res, err := e.Generate(ctx, f)
	return res.Text, err
}

// Generate is Complete with the rendered prompt and attempt count attached.
// On error, Result still carries the prompt and the attempts spent.
func (e *Engine) Generate(ctx context.Context, f *frame.Frame) (Result, error) {
	prompt := f.Render()
	start := time.Now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := e.backend.Complete(ctx, prompt)
		if err != nil {
			recordGeneration(attempt, false, time.Since(start).Seconds())
			return Result{Prompt: prompt, Attempts: attempt},
				fmt.Errorf("completion backend failed on attempt %d: %w", attempt, err)
		}

		response, sanitized := Sanitize(response)
		if sanitized {
			e.logger.Debug("sanitized completion artifacts", "attempt", attempt)
		}

		if response == "" {
			e.logger.Warn("empty completion", "attempt", attempt)
			continue
		}

		if rejectedBy := e.validate(ctx, response, prompt); rejectedBy != "" {
			e.logger.Debug("completion rejected",
				"attempt", attempt,
				"validator", rejectedBy,
				"response_chars", len(response),
			)
			continue
		}

		recordGeneration(attempt, true, time.Since(start).Seconds())
		return Result{Text: response, Prompt: prompt, Attempts: attempt}, nil
	}

	recordGeneration(maxAttempts, false, time.Since(start).Seconds())
	return Result{Prompt: prompt, Attempts: maxAttempts},
		fmt.Errorf("no accepted completion after %d attempts: %w", maxAttempts, ErrGenerationExhausted)
}

// validate runs every validator concurrently and joins before deciding.
// Returns the name of one rejecting validator, or "" when all pass.
func (e *Engine) validate(ctx context.Context, response, prompt string) string {
	if len(e.validators) == 0 {
		return ""
	}

	rejects := make([]bool, len(e.validators))
	var wg sync.WaitGroup
	for i, v := range e.validators {
		wg.Add(1)
		go func(i int, v Validator) {
			defer wg.Done()
			rejects[i] = v.Validate(ctx, response, prompt)
		}(i, v)
	}
	wg.Wait()

	for i, rejected := range rejects {
		if rejected {
			recordRejection(e.validators[i].Name())
			return e.validators[i].Name()
		}
	}
	return ""
}

// Sanitize strips sampling artifacts the backend is known to leak: leading
// speech-cue echoes ("<Name>:") and surrounding whitespace. Returns the
// cleaned response and whether anything was removed.
func Sanitize(response string) (string, bool) {
	cleaned := strings.TrimSpace(response)

	// A completion that re-emits the trailing speech cue starts with
	// "<...>:" and the echoed cue must go, keeping the dialogue.
	if strings.HasPrefix(cleaned, "<") {
		if end := strings.Index(cleaned, ">:"); end != -1 {
			cleaned = strings.TrimSpace(cleaned[end+2:])
		}
	}

	return cleaned, cleaned != response
}
