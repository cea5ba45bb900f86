// Package abilities short-circuits generation for messages a persona can
// answer deterministically. Each ability pairs a trigger pattern with a
// responder; the first matching ability answers and the reply engine is
// skipped entirely.
package abilities

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// Responder produces an answer for a matched message. matches holds the full
// match followed by capture groups, as returned by FindStringSubmatch.
type Responder func(ctx context.Context, text string, matches []string) (string, error)

type ability struct {
	name    string
	pattern *regexp.Regexp
	respond Responder
}

// Dispatcher tries registered abilities against incoming text in registration
// order.
type Dispatcher struct {
	abilities []ability
	logger    *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("component", "abilities"),
	}
}

// Register adds an ability. Registration order is match priority.
func (d *Dispatcher) Register(name, pattern string, respond Responder) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for ability %q: %w", name, err)
	}
	d.abilities = append(d.abilities, ability{name: name, pattern: re, respond: respond})
	return nil
}

// RegisterTemplate adds an ability whose answer is a fixed template. Capture
// group references ($1, ${name}) are expanded from the match.
func (d *Dispatcher) RegisterTemplate(name, pattern, template string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for ability %q: %w", name, err)
	}
	respond := func(_ context.Context, text string, _ []string) (string, error) {
		var out []byte
		for _, idx := range re.FindAllStringSubmatchIndex(text, 1) {
			out = re.ExpandString(out, template, text, idx)
		}
		if len(out) == 0 {
			return template, nil
		}
		return string(out), nil
	}
	d.abilities = append(d.abilities, ability{name: name, pattern: re, respond: respond})
	return nil
}

// TrySolve returns the first matching ability's answer, or "" when no ability
// matches. A responder failure is logged and falls through to the next
// ability, never to the caller.
func (d *Dispatcher) TrySolve(ctx context.Context, text string) string {
	if d == nil {
		return ""
	}
	for _, a := range d.abilities {
		matches := a.pattern.FindStringSubmatch(text)
		if matches == nil {
			continue
		}
		answer, err := a.respond(ctx, text, matches)
		if err != nil {
			d.logger.Warn("Ability responder failed", "ability", a.name, "error", err)
			recordSolve(a.name, false)
			continue
		}
		if answer != "" {
			recordSolve(a.name, true)
			return answer
		}
	}
	return ""
}
