package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runixer/personad/internal/abilities"
	"github.com/runixer/personad/internal/completion"
	"github.com/runixer/personad/internal/config"
	"github.com/runixer/personad/internal/engine"
	"github.com/runixer/personad/internal/knowledge"
	"github.com/runixer/personad/internal/persona"
	"github.com/runixer/personad/internal/preset"
	"github.com/runixer/personad/internal/ranker"
	"github.com/runixer/personad/internal/replylog"
	"github.com/runixer/personad/internal/router"
	"github.com/runixer/personad/internal/selector"
	"github.com/runixer/personad/internal/storage"
)

// Services holds the wired reply pipeline: clients, personas, and the router
// in front of them. Built once at startup by SetupServices.
type Services struct {
	Personas    []*persona.Persona
	Router      *router.Router
	ReplyLogger *replylog.Logger

	rankerClient *ranker.Client
}

// SetupServices wires the reply pipeline from configuration: completion
// backend, optional ranker and knowledge clients, one persona per config
// entry, and the router over all of them. The sink receives every finished
// reply. store may be nil when the reply log is disabled.
func SetupServices(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	store *storage.SQLiteStore,
	sink router.Sink,
) (*Services, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	services := &Services{}

	completionClient, err := completion.NewClient(logger, cfg.Completion.APIKey, cfg.Completion.ProxyURL, cfg.Completion.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	backend := newCompletionBackend(completionClient, cfg.Completion)

	var sel *selector.Selector
	if cfg.Ranker.Enabled {
		rankerClient, err := ranker.NewClient(ctx, logger, cfg.Ranker.APIKey, cfg.Ranker.FolderID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create ranker client: %w", err)
		}
		services.rankerClient = rankerClient
		sel = selector.New(rankerClient, logger)
		logger.Info("Relevance ranking enabled")
	} else {
		sel = selector.New(nil, logger)
		logger.Info("Relevance ranking disabled, context selection is a no-op")
	}

	var searcher knowledge.Searcher
	if cfg.Knowledge.Enabled {
		searcher = knowledge.NewClient(logger, cfg.Knowledge.APIKey, cfg.Knowledge.BaseURL)
		logger.Info("Knowledge search enabled", "base_url", cfg.Knowledge.BaseURL)
	}

	services.ReplyLogger = replylog.NewLogger(store, logger, cfg.ReplyLog.Enabled && store != nil)

	presets, err := preset.NewLibrary()
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}

	eng := engine.New(backend, logger, engine.DefaultValidators(cfg.Generation.MaxResponseChars)...)
	if len(cfg.Generation.BannedSubstrings) > 0 {
		eng.AddValidator(engine.BannedContent{Substrings: cfg.Generation.BannedSubstrings})
	}

	services.Router = router.New(logger, cfg.Router.Prefix, sink)
	for i, pcfg := range cfg.Personas {
		p, err := buildPersona(logger, cfg, pcfg, presets, eng, sel, searcher, services.ReplyLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to build persona %d (%s): %w", i, pcfg.Name, err)
		}
		services.Personas = append(services.Personas, p)
		services.Router.Register(p)
	}
	logger.Info("Personas registered", "count", len(services.Personas))

	return services, nil
}

func buildPersona(
	logger *slog.Logger,
	cfg *config.Config,
	pcfg config.PersonaConfig,
	presets *preset.Library,
	eng *engine.Engine,
	sel *selector.Selector,
	searcher knowledge.Searcher,
	replyLogger *replylog.Logger,
) (*persona.Persona, error) {
	opts := persona.Options{
		Name:         pcfg.Name,
		Introduction: pcfg.Introduction,
		ResponseType: pcfg.ResponseType,
		Annotation:   pcfg.Annotation,

		FactBudget:      cfg.Selection.FactBudget,
		ExampleBudget:   cfg.Selection.ExampleBudget,
		KnowledgeBudget: cfg.Selection.KnowledgeBudget,
		KnowledgeTop:    cfg.Knowledge.Top,
		ReplyCacheSize:  pcfg.ReplyCacheSize,

		Engine:    eng,
		Selector:  sel,
		Knowledge: searcher,
		ReplyLog:  replyLogger,
	}

	if pcfg.Preset != "" {
		resolved, err := presets.Resolve(pcfg.Preset, pcfg.Name, pcfg.Introduction)
		if err != nil {
			return nil, err
		}
		opts.Introduction = resolved.Introduction
		opts.IsAI = resolved.IsAI
		if opts.ResponseType == "" {
			opts.ResponseType = resolved.ResponseType
		}
		if opts.Annotation == "" {
			opts.Annotation = resolved.Annotation
		}
	}
	if pcfg.IsAI != nil {
		opts.IsAI = *pcfg.IsAI
	}

	if len(pcfg.Abilities) > 0 {
		d := abilities.NewDispatcher(logger)
		for _, a := range pcfg.Abilities {
			if err := d.RegisterTemplate(a.Name, a.Pattern, a.Answer); err != nil {
				return nil, err
			}
		}
		opts.Abilities = d
	}

	p, err := persona.New(logger, opts)
	if err != nil {
		return nil, err
	}

	p.AddFacts(pcfg.Facts...)
	for _, ex := range pcfg.Examples {
		p.AddExamples(persona.Example{User: ex.User, Reply: ex.Reply})
	}

	return p, nil
}

// Close releases clients that hold connections.
func (s *Services) Close() {
	if s.rankerClient != nil {
		_ = s.rankerClient.Close()
	}
}
