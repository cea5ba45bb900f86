package persona

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/personad/internal/abilities"
	"github.com/runixer/personad/internal/engine"
	"github.com/runixer/personad/internal/selector"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type capturingBackend struct {
	prompts  []string
	response string
	err      error
}

func (b *capturingBackend) Complete(_ context.Context, prompt string) (string, error) {
	b.prompts = append(b.prompts, prompt)
	if b.err != nil {
		return "", b.err
	}
	return b.response, nil
}

type capturingRanker struct {
	queries []string
}

func (r *capturingRanker) Rank(_ context.Context, query string, candidates []string, topK int) ([]string, error) {
	r.queries = append(r.queries, query)
	if topK < len(candidates) {
		return candidates[:topK], nil
	}
	return candidates, nil
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, int) ([]string, error) {
	return nil, errors.New("index offline")
}

type fixedSearcher struct {
	passages []string
}

func (s fixedSearcher) Search(context.Context, string, int) ([]string, error) {
	return s.passages, nil
}

func newTestPersona(t *testing.T, opts Options) *Persona {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "Luna"
	}
	p, err := New(testLogger(), opts)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresName(t *testing.T) {
	_, err := New(testLogger(), Options{})
	assert.Error(t, err)
}

func TestAddFacts_GrowthOnlyDedup(t *testing.T) {
	p := newTestPersona(t, Options{})

	p.AddFacts("likes tea", "hates rain", "likes tea", "  ")
	assert.Equal(t, 2, p.FactCount())

	// Reloading the same corpus changes nothing.
	p.AddFacts("likes tea", "hates rain")
	assert.Equal(t, 2, p.FactCount())

	p.AddFacts("collects maps")
	assert.Equal(t, 3, p.FactCount())
}

func TestAddExamples_Dedup(t *testing.T) {
	p := newTestPersona(t, Options{})

	p.AddExamples(
		Example{User: "hi", Reply: "Hello!"},
		Example{User: "hi", Reply: "Hello!"},
		Example{User: "", Reply: "dropped"},
	)
	assert.Equal(t, 1, p.ExampleCount())
}

func TestGenerateReply_NoBackend(t *testing.T) {
	p := newTestPersona(t, Options{})

	_, err := p.GenerateReply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestGenerateReply_AbilityShortCircuits(t *testing.T) {
	backend := &capturingBackend{response: "generated"}
	d := abilities.NewDispatcher(testLogger())
	require.NoError(t, d.RegisterTemplate("ping", `\bping\b`, "pong"))

	p := newTestPersona(t, Options{
		Engine:    engine.New(backend, testLogger()),
		Abilities: d,
	})

	reply, err := p.GenerateReply(context.Background(), "ping me please")

	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
	assert.Empty(t, backend.prompts, "backend must not be called when an ability answers")
}

func TestGenerateReply_PromptCarriesSelectedContext(t *testing.T) {
	backend := &capturingBackend{response: "I do like tea."}
	ranker := &capturingRanker{}

	p := newTestPersona(t, Options{
		Engine:    engine.New(backend, testLogger()),
		Selector:  selector.New(ranker, testLogger()),
		Knowledge: fixedSearcher{passages: []string{"Tea is a brewed drink."}},
	})
	p.AddFacts("likes tea")
	p.AddExamples(Example{User: "what do you drink?", Reply: "Tea, always."})

	reply, err := p.GenerateReply(context.Background(), "alice: do you like tea?")

	require.NoError(t, err)
	assert.Equal(t, "I do like tea.", reply)
	require.Len(t, backend.prompts, 1)
	prompt := backend.prompts[0]
	assert.Contains(t, prompt, "likes tea")
	assert.Contains(t, prompt, "Tea, always.")
	assert.Contains(t, prompt, "Tea is a brewed drink.")
	assert.Contains(t, prompt, "alice: do you like tea?")
	assert.Contains(t, prompt, "<Luna>:")
}

func TestGenerateReply_QueryIsConversationTail(t *testing.T) {
	backend := &capturingBackend{response: "ok"}
	ranker := &capturingRanker{}

	p := newTestPersona(t, Options{
		Engine:   engine.New(backend, testLogger()),
		Selector: selector.New(ranker, testLogger()),
	})
	p.AddFacts("a fact")

	long := strings.Repeat("x", 500) + " the actual question"
	_, err := p.GenerateReply(context.Background(), long)

	require.NoError(t, err)
	require.NotEmpty(t, ranker.queries)
	for _, q := range ranker.queries {
		assert.LessOrEqual(t, len([]rune(q)), 120)
		assert.True(t, strings.HasSuffix(q, "the actual question"))
	}
}

func TestGenerateReply_ConversationBounded(t *testing.T) {
	backend := &capturingBackend{response: "ok"}

	p := newTestPersona(t, Options{Engine: engine.New(backend, testLogger())})

	conversation := "EARLY_MARKER " + strings.Repeat("y", 900) + " LATE_MARKER"
	_, err := p.GenerateReply(context.Background(), conversation)

	require.NoError(t, err)
	require.Len(t, backend.prompts, 1)
	assert.NotContains(t, backend.prompts[0], "EARLY_MARKER")
	assert.Contains(t, backend.prompts[0], "LATE_MARKER")
}

func TestGenerateReply_TranslatorsRunInOrder(t *testing.T) {
	backend := &capturingBackend{response: "base"}
	p := newTestPersona(t, Options{Engine: engine.New(backend, testLogger())})

	p.AddTranslator(func(_ context.Context, r string) (string, error) { return r + "+1", nil })
	p.AddTranslator(func(_ context.Context, r string) (string, error) { return r + "+2", nil })

	reply, err := p.GenerateReply(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "base+1+2", reply)

	original, ok := p.OriginalReply("base+1+2")
	require.True(t, ok)
	assert.Equal(t, "base", original)
}

func TestGenerateReply_TranslatorErrorAborts(t *testing.T) {
	backend := &capturingBackend{response: "base"}
	p := newTestPersona(t, Options{Engine: engine.New(backend, testLogger())})

	p.AddTranslator(func(context.Context, string) (string, error) {
		return "", errors.New("emoji service down")
	})

	_, err := p.GenerateReply(context.Background(), "hi")

	assert.ErrorContains(t, err, "post-processing failed")
	_, ok := p.OriginalReply("base")
	assert.False(t, ok, "failed replies must not be cached")
}

func TestGenerateReply_KnowledgeFailureDegrades(t *testing.T) {
	backend := &capturingBackend{response: "still fine"}

	p := newTestPersona(t, Options{
		Engine:    engine.New(backend, testLogger()),
		Knowledge: failingSearcher{},
	})

	reply, err := p.GenerateReply(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "still fine", reply)
}

func TestGenerateReply_BackendErrorPropagates(t *testing.T) {
	backend := &capturingBackend{err: errors.New("rate limited")}
	p := newTestPersona(t, Options{Engine: engine.New(backend, testLogger())})

	_, err := p.GenerateReply(context.Background(), "hi")

	assert.ErrorContains(t, err, "rate limited")
}

func TestReplyCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newReplyCache(2)
	c.put("a", "orig-a")
	c.put("b", "orig-b")

	_, ok := c.original("a") // refresh a
	require.True(t, ok)

	c.put("c", "orig-c") // evicts b

	_, ok = c.original("b")
	assert.False(t, ok)
	got, ok := c.original("a")
	require.True(t, ok)
	assert.Equal(t, "orig-a", got)
	assert.Equal(t, 2, c.len())
}

func TestMatches_CaseInsensitive(t *testing.T) {
	p := newTestPersona(t, Options{Name: "Luna"})

	assert.True(t, p.Matches("luna"))
	assert.True(t, p.Matches("LUNA"))
	assert.False(t, p.Matches("lun"))
}
