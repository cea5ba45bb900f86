// Package router fans incoming messages out to the personas they address.
// A persona is addressed by token, "&name" by default, matched
// case-insensitively anywhere in the message.
package router

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultPrefix marks addressing tokens in message text.
const DefaultPrefix = "&"

// Responder generates a reply for a conversation. Satisfied by
// persona.Persona.
type Responder interface {
	Name() string
	GenerateReply(ctx context.Context, conversation string) (string, error)
}

// Sink receives each finished task's outcome. Called once per matched
// persona, from that persona's goroutine, in no particular order.
type Sink func(ctx context.Context, personaName, reply string, err error)

// Router dispatches messages to registered personas.
type Router struct {
	prefix string
	sink   Sink
	logger *slog.Logger

	mu       sync.RWMutex
	personas []Responder

	wg sync.WaitGroup
}

// New creates a Router. Empty prefix falls back to DefaultPrefix; a nil sink
// discards outcomes.
func New(logger *slog.Logger, prefix string, sink Sink) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if sink == nil {
		sink = func(context.Context, string, string, error) {}
	}
	return &Router{
		prefix: prefix,
		sink:   sink,
		logger: logger.With("component", "router"),
	}
}

// Register adds a persona to the dispatch set. Safe during dispatching;
// in-flight dispatches keep working against the set they snapshotted.
func (r *Router) Register(p Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas = append(r.personas, p)
}

// Dispatch scans the message for addressing tokens and starts one generation
// task per matched persona. Returns the number of tasks started; zero means
// no persona was addressed.
func (r *Router) Dispatch(ctx context.Context, message string) int {
	r.mu.RLock()
	snapshot := make([]Responder, len(r.personas))
	copy(snapshot, r.personas)
	r.mu.RUnlock()

	var matched []Responder
	for _, p := range snapshot {
		if containsToken(message, r.prefix+p.Name()) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return 0
	}

	// All matched tokens are stripped once; every task sees the same
	// cleaned conversation.
	conversation := message
	for _, p := range matched {
		conversation = stripToken(conversation, r.prefix+p.Name())
	}
	conversation = strings.TrimSpace(conversation)

	recordDispatch(len(matched))
	for _, p := range matched {
		r.wg.Add(1)
		go func(p Responder) {
			defer r.wg.Done()
			start := time.Now()
			reply, err := p.GenerateReply(ctx, conversation)
			if err != nil {
				r.logger.Warn("persona reply failed",
					"persona", p.Name(),
					"duration", time.Since(start),
					"error", err,
				)
			}
			r.sink(ctx, p.Name(), reply, err)
		}(p)
	}
	return len(matched)
}

// Wait blocks until all in-flight tasks have delivered to the sink.
func (r *Router) Wait() {
	r.wg.Wait()
}

func tokenPattern(token string) *regexp.Regexp {
	// Word boundary on the right only: the prefix character itself is
	// usually a non-word rune, so \b before it would not match.
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(token) + `\b`)
}

func containsToken(message, token string) bool {
	return tokenPattern(token).MatchString(message)
}

func stripToken(message, token string) string {
	stripped := tokenPattern(token).ReplaceAllString(message, "")
	// Collapse doubled spaces left behind by token removal.
	return strings.ReplaceAll(stripped, "  ", " ")
}
