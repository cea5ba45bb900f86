// Package selector picks the most relevant context fragments for a reply
// under a strict character budget. Ranking is delegated to an external
// relevance collaborator; this package owns budget enforcement and failure
// containment: a selection that cannot be made degrades to "no extra
// context", never to a failed reply.
package selector

import (
	"context"
	"log/slog"
	"time"
)

// Default per-call character budgets. Facts are kept tight; example dialogues
// carry the persona's voice and get more room.
const (
	DefaultFactBudget    = 180
	DefaultExampleBudget = 710
)

// Ranker orders candidates by relevance to a query, most relevant first.
// Implementations must be deterministic for a fixed candidate set.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []string, topK int) ([]string, error)
}

// Selector enforces character budgets over ranked candidates.
type Selector struct {
	ranker Ranker
	logger *slog.Logger
}

// New creates a Selector. A nil ranker is a valid no-op state: every
// selection returns empty.
func New(ranker Ranker, logger *slog.Logger) *Selector {
	return &Selector{
		ranker: ranker,
		logger: logger.With("component", "selector"),
	}
}

// Select ranks candidates against the query and greedily accepts them in rank
// order while the next item still fits the budget. Items are whole or absent:
// the result is always a prefix of the ranked list. Collaborator failures are
// swallowed and logged; the reply proceeds with less context.
func (s *Selector) Select(ctx context.Context, query string, candidates []string, budgetChars int) []string {
	if s.ranker == nil || len(candidates) == 0 {
		return nil
	}

	start := time.Now()
	ranked, err := s.ranker.Rank(ctx, query, candidates, len(candidates))
	if err != nil {
		s.logger.Warn("ranking failed, degrading to empty selection",
			"error", err,
			"candidates", len(candidates),
		)
		recordSelection(time.Since(start).Seconds(), 0, true)
		return nil
	}

	selected := Truncate(ranked, budgetChars)
	recordSelection(time.Since(start).Seconds(), len(selected), false)
	return selected
}

// Truncate returns the longest prefix of items whose cumulative length stays
// within budgetChars. It never splits an item.
func Truncate(items []string, budgetChars int) []string {
	var selected []string
	total := 0
	for _, item := range items {
		if total+len(item) > budgetChars {
			break
		}
		selected = append(selected, item)
		total += len(item)
	}
	return selected
}
