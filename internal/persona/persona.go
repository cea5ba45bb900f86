// Package persona assembles a character's reply: deterministic abilities
// first, then relevance-selected facts, dialogue examples, and knowledge
// passages folded into the prompt frame, then the retry-validated generation
// loop and the post-translator chain.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runixer/personad/internal/abilities"
	"github.com/runixer/personad/internal/engine"
	"github.com/runixer/personad/internal/frame"
	"github.com/runixer/personad/internal/knowledge"
	"github.com/runixer/personad/internal/replylog"
	"github.com/runixer/personad/internal/selector"
)

const (
	// queryTailChars is how much trailing conversation is used as the
	// relevance query for fact/example selection and knowledge search.
	queryTailChars = 120

	// conversationTailChars bounds the conversation fed into the prompt.
	conversationTailChars = 800

	// DefaultKnowledgeBudget caps knowledge passage characters in the prompt.
	DefaultKnowledgeBudget = 350
)

// ErrNoBackend is returned by GenerateReply when the persona was built
// without a generation engine.
var ErrNoBackend = errors.New("persona has no completion backend configured")

// Translator rewrites a generated reply before delivery. Translators run in
// registration order; any failure aborts the reply.
type Translator func(ctx context.Context, reply string) (string, error)

// Example is one user/reply exchange demonstrating the persona's voice.
type Example struct {
	User  string
	Reply string
}

// Options configures a Persona. Name is required; everything else has a
// usable zero value.
type Options struct {
	Name         string
	Introduction string
	IsAI         bool
	ResponseType string
	Annotation   string

	FactBudget      int
	ExampleBudget   int
	KnowledgeBudget int
	KnowledgeTop    int
	ReplyCacheSize  int

	Engine    *engine.Engine
	Selector  *selector.Selector
	Knowledge knowledge.Searcher
	Abilities *abilities.Dispatcher
	ReplyLog  *replylog.Logger
}

// Persona is one addressable character. Fact and example corpora only grow;
// duplicates are dropped on insert so repeated loads stay idempotent.
type Persona struct {
	name   string
	prompt *frame.Prompt
	logger *slog.Logger

	facts       []string
	factSet     map[string]struct{}
	examples    []string
	exampleSet  map[string]struct{}
	translators []Translator

	factBudget      int
	exampleBudget   int
	knowledgeBudget int
	knowledgeTop    int

	engine    *engine.Engine
	selector  *selector.Selector
	knowledge knowledge.Searcher
	abilities *abilities.Dispatcher
	replyLog  *replylog.Logger
	replies   *replyCache
}

func New(logger *slog.Logger, opts Options) (*Persona, error) {
	if opts.Name == "" {
		return nil, errors.New("persona name is required")
	}

	prompt := frame.NewPrompt(opts.Name)
	prompt.SetIntroduction(opts.Introduction)
	prompt.SetIsAI(opts.IsAI)
	if opts.ResponseType != "" {
		prompt.SetResponseType(opts.ResponseType)
	}
	if opts.Annotation != "" {
		prompt.SetPreResponseAnnotation(opts.Annotation)
	}

	sel := opts.Selector
	if sel == nil {
		sel = selector.New(nil, logger)
	}

	p := &Persona{
		name:            opts.Name,
		prompt:          prompt,
		logger:          logger.With("component", "persona", "persona", opts.Name),
		factSet:         make(map[string]struct{}),
		exampleSet:      make(map[string]struct{}),
		factBudget:      opts.FactBudget,
		exampleBudget:   opts.ExampleBudget,
		knowledgeBudget: opts.KnowledgeBudget,
		knowledgeTop:    opts.KnowledgeTop,
		engine:          opts.Engine,
		selector:        sel,
		knowledge:       opts.Knowledge,
		abilities:       opts.Abilities,
		replyLog:        opts.ReplyLog,
		replies:         newReplyCache(opts.ReplyCacheSize),
	}

	if p.factBudget <= 0 {
		p.factBudget = selector.DefaultFactBudget
	}
	if p.exampleBudget <= 0 {
		p.exampleBudget = selector.DefaultExampleBudget
	}
	if p.knowledgeBudget <= 0 {
		p.knowledgeBudget = DefaultKnowledgeBudget
	}
	if p.knowledgeTop <= 0 {
		p.knowledgeTop = knowledge.DefaultTop
	}

	return p, nil
}

// Name returns the persona's addressing token.
func (p *Persona) Name() string {
	return p.name
}

// Matches reports whether token addresses this persona. Case-insensitive.
func (p *Persona) Matches(token string) bool {
	return strings.EqualFold(token, p.name)
}

// AddFacts appends new facts to the corpus. Duplicates are dropped; order of
// first insertion is preserved.
func (p *Persona) AddFacts(facts ...string) {
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, seen := p.factSet[f]; seen {
			continue
		}
		p.factSet[f] = struct{}{}
		p.facts = append(p.facts, f)
	}
}

// AddExamples appends dialogue examples, rendered as transcript snippets in
// the persona's voice. Duplicates are dropped.
func (p *Persona) AddExamples(examples ...Example) {
	for _, ex := range examples {
		if ex.User == "" || ex.Reply == "" {
			continue
		}
		rendered := fmt.Sprintf("<User>: %s\n<%s>: %s", ex.User, p.name, ex.Reply)
		if _, seen := p.exampleSet[rendered]; seen {
			continue
		}
		p.exampleSet[rendered] = struct{}{}
		p.examples = append(p.examples, rendered)
	}
}

// AddTranslator appends a post-processing step to the delivery chain.
func (p *Persona) AddTranslator(t Translator) {
	p.translators = append(p.translators, t)
}

// FactCount returns the size of the fact corpus.
func (p *Persona) FactCount() int {
	return len(p.facts)
}

// ExampleCount returns the size of the example corpus.
func (p *Persona) ExampleCount() int {
	return len(p.examples)
}

// OriginalReply resolves a delivered reply back to the raw engine output it
// was translated from.
func (p *Persona) OriginalReply(final string) (string, bool) {
	return p.replies.original(final)
}

// GenerateReply produces the persona's reply to the conversation. Abilities
// short-circuit generation; otherwise facts, examples, and knowledge are
// gathered concurrently, the prompt frame is populated, and the generation
// loop runs. Context gathering failures degrade the prompt, never the reply.
func (p *Persona) GenerateReply(ctx context.Context, conversation string) (string, error) {
	if p.engine == nil {
		return "", ErrNoBackend
	}

	start := time.Now()

	if answer := p.abilities.TrySolve(ctx, conversation); answer != "" {
		recordReply(p.name, "ability", time.Since(start).Seconds())
		return answer, nil
	}

	conversation = tail(conversation, conversationTailChars)
	query := tail(conversation, queryTailChars)

	var facts, examples, passages []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		facts = p.selector.Select(gctx, query, p.facts, p.factBudget)
		return nil
	})
	g.Go(func() error {
		examples = p.selector.Select(gctx, query, p.examples, p.exampleBudget)
		return nil
	})
	if p.knowledge != nil {
		g.Go(func() error {
			found, err := p.knowledge.Search(gctx, query, p.knowledgeTop)
			if err != nil {
				p.logger.Warn("knowledge search degraded", "error", err)
				return nil
			}
			passages = found
			return nil
		})
	}
	// Goroutines never return errors; degraded lookups leave empty slices.
	_ = g.Wait()

	prompt := p.prompt.Clone()
	prompt.UseFacts(facts)
	prompt.UseExamples(examples)
	if len(passages) > 0 {
		kept := selector.Truncate(passages, p.knowledgeBudget)
		if len(kept) > 0 {
			prompt.UseKnowledge(strings.Join(kept, "\n"))
		}
	}
	prompt.SetConversation(conversation)

	res, err := p.engine.Generate(ctx, prompt.Frame)
	if err != nil {
		p.audit(conversation, res, "", time.Since(start), false, err)
		recordReply(p.name, "error", time.Since(start).Seconds())
		return "", err
	}

	final := res.Text
	for _, translate := range p.translators {
		final, err = translate(ctx, final)
		if err != nil {
			p.audit(conversation, res, "", time.Since(start), false, err)
			recordReply(p.name, "error", time.Since(start).Seconds())
			return "", fmt.Errorf("post-processing failed: %w", err)
		}
	}

	p.replies.put(final, res.Text)
	p.audit(conversation, res, final, time.Since(start), true, nil)
	recordReply(p.name, "generated", time.Since(start).Seconds())
	return final, nil
}

func (p *Persona) audit(conversation string, res engine.Result, final string, duration time.Duration, success bool, genErr error) {
	if p.replyLog == nil {
		return
	}
	entry := replylog.Entry{
		Persona:      p.name,
		Conversation: conversation,
		Prompt:       res.Prompt,
		Response:     final,
		Attempts:     res.Attempts,
		Duration:     duration,
		Success:      success,
	}
	if genErr != nil {
		entry.ErrorMessage = genErr.Error()
	}
	p.replyLog.Log(entry)
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
