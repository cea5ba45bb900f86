package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// CompletionConfig targets the text-completion backend.
type CompletionConfig struct {
	APIKey          string   `yaml:"api_key" env:"PERSONAD_COMPLETION_API_KEY"`
	BaseURL         string   `yaml:"base_url" env:"PERSONAD_COMPLETION_BASE_URL"`
	ProxyURL        string   `yaml:"proxy_url" env:"PERSONAD_COMPLETION_PROXY_URL"`
	Model           string   `yaml:"model" env:"PERSONAD_COMPLETION_MODEL"`
	MaxTokens       int      `yaml:"max_tokens"`
	Temperature     float64  `yaml:"temperature"`
	PresencePenalty float64  `yaml:"presence_penalty"`
	Stop            []string `yaml:"stop"`
}

// RankerConfig targets the embeddings service used for relevance ranking.
// Disabled means personas fall back to no context selection.
type RankerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"PERSONAD_RANKER_ENABLED"`
	APIKey   string `yaml:"api_key" env:"PERSONAD_RANKER_API_KEY"`
	FolderID string `yaml:"folder_id" env:"PERSONAD_RANKER_FOLDER_ID"`
}

// KnowledgeConfig targets the passage-search service.
type KnowledgeConfig struct {
	Enabled bool   `yaml:"enabled" env:"PERSONAD_KNOWLEDGE_ENABLED"`
	BaseURL string `yaml:"base_url" env:"PERSONAD_KNOWLEDGE_BASE_URL"`
	APIKey  string `yaml:"api_key" env:"PERSONAD_KNOWLEDGE_API_KEY"`
	Top     int    `yaml:"top"`
}

// SelectionConfig sets the character budgets for prompt context.
type SelectionConfig struct {
	FactBudget      int `yaml:"fact_budget"`
	ExampleBudget   int `yaml:"example_budget"`
	KnowledgeBudget int `yaml:"knowledge_budget"`
}

// GenerationConfig tunes the response validators.
type GenerationConfig struct {
	MaxResponseChars int      `yaml:"max_response_chars"`
	BannedSubstrings []string `yaml:"banned_substrings"`
}

// ReplyLogConfig controls the generation audit trail.
type ReplyLogConfig struct {
	Enabled   bool   `yaml:"enabled" env:"PERSONAD_REPLY_LOG_ENABLED"`
	Retention string `yaml:"retention"`
}

// DefaultReplyLogRetention is the pruning age when retention is unset or
// invalid.
const DefaultReplyLogRetention = 30 * 24 * time.Hour

// GetRetention returns the parsed retention duration.
func (r *ReplyLogConfig) GetRetention() time.Duration {
	if r.Retention == "" {
		return DefaultReplyLogRetention
	}
	d, err := time.ParseDuration(r.Retention)
	if err != nil {
		return DefaultReplyLogRetention
	}
	return d
}

// ExampleConfig is one user/reply exchange in a persona's voice.
type ExampleConfig struct {
	User  string `yaml:"user"`
	Reply string `yaml:"reply"`
}

// AbilityConfig is a pattern-triggered canned answer.
type AbilityConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Answer  string `yaml:"answer"`
}

// PersonaConfig declares one addressable persona.
type PersonaConfig struct {
	Name         string `yaml:"name"`
	Avatar       string `yaml:"avatar"`
	Preset       string `yaml:"preset"`
	Introduction string `yaml:"introduction"`
	IsAI         *bool  `yaml:"is_ai"` // overrides the preset when set
	ResponseType string `yaml:"response_type"`
	Annotation   string `yaml:"annotation"`

	ReplyCacheSize int `yaml:"reply_cache_size"`

	Facts     []string        `yaml:"facts"`
	Examples  []ExampleConfig `yaml:"examples"`
	Abilities []AbilityConfig `yaml:"abilities"`
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"PERSONAD_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"PERSONAD_SERVER_PORT"`
		DebugMode  bool   `yaml:"debug_mode" env:"PERSONAD_SERVER_DEBUG"`
		Auth       struct {
			Enabled  bool   `yaml:"enabled" env:"PERSONAD_AUTH_ENABLED"`
			Username string `yaml:"username" env:"PERSONAD_AUTH_USERNAME"`
			Password string `yaml:"password" env:"PERSONAD_AUTH_PASSWORD"`
		} `yaml:"auth"`
	} `yaml:"server"`
	Router struct {
		Prefix string `yaml:"prefix" env:"PERSONAD_ROUTER_PREFIX"`
	} `yaml:"router"`
	Completion CompletionConfig `yaml:"completion"`
	Ranker     RankerConfig     `yaml:"ranker"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Selection  SelectionConfig  `yaml:"selection"`
	Generation GenerationConfig `yaml:"generation"`
	ReplyLog   ReplyLogConfig   `yaml:"reply_log"`
	Database   struct {
		Path string `yaml:"path" env:"PERSONAD_DATABASE_PATH"`
	} `yaml:"database"`
	Personas []PersonaConfig `yaml:"personas"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	// First, load the embedded default config
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	// If a path is specified and the file exists, merge user config on top
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			// Environment expansion keeps secrets out of the file itself
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	// Override with environment variables using cleanenv
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
// Useful for generating example config files.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures, including a
// per-item diagnostic for every malformed persona example.
func (c *Config) Validate() error {
	var errs []error

	if c.Completion.APIKey == "" {
		errs = append(errs, errors.New("completion.api_key is required"))
	}
	if c.Completion.BaseURL == "" {
		errs = append(errs, errors.New("completion.base_url is required"))
	}
	if c.Completion.Model == "" {
		errs = append(errs, errors.New("completion.model is required"))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, fmt.Errorf("completion.temperature must be between 0 and 2, got %f", c.Completion.Temperature))
	}

	if c.Ranker.Enabled {
		if c.Ranker.APIKey == "" {
			errs = append(errs, errors.New("ranker.api_key is required when ranker.enabled is true"))
		}
		if c.Ranker.FolderID == "" {
			errs = append(errs, errors.New("ranker.folder_id is required when ranker.enabled is true"))
		}
	}

	if c.Knowledge.Enabled && c.Knowledge.BaseURL == "" {
		errs = append(errs, errors.New("knowledge.base_url is required when knowledge.enabled is true"))
	}

	if c.ReplyLog.Enabled && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required when reply_log.enabled is true"))
	}
	if c.ReplyLog.Retention != "" {
		if _, err := time.ParseDuration(c.ReplyLog.Retention); err != nil {
			errs = append(errs, fmt.Errorf("reply_log.retention: invalid duration format %q: %w", c.ReplyLog.Retention, err))
		}
	}

	if c.Server.Auth.Enabled && c.Server.Auth.Username == "" {
		errs = append(errs, errors.New("server.auth.username is required when server.auth.enabled is true"))
	}

	if c.Selection.FactBudget <= 0 {
		errs = append(errs, fmt.Errorf("selection.fact_budget must be positive, got %d", c.Selection.FactBudget))
	}
	if c.Selection.ExampleBudget <= 0 {
		errs = append(errs, fmt.Errorf("selection.example_budget must be positive, got %d", c.Selection.ExampleBudget))
	}
	if c.Generation.MaxResponseChars <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_response_chars must be positive, got %d", c.Generation.MaxResponseChars))
	}

	if len(c.Personas) == 0 {
		errs = append(errs, errors.New("at least one persona is required"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Personas {
		errs = append(errs, c.validatePersona(i, p, seen)...)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) validatePersona(i int, p PersonaConfig, seen map[string]bool) []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, fmt.Errorf("personas[%d].name is required", i))
	} else {
		key := strings.ToLower(p.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("personas[%d].name %q is already used; names are matched case-insensitively", i, p.Name))
		}
		seen[key] = true
	}

	if (p.Preset == "" || p.Preset == "custom") && p.Introduction == "" {
		errs = append(errs, fmt.Errorf("personas[%d].introduction is required without a preset", i))
	}

	// Every malformed example is reported individually, not dropped.
	for j, ex := range p.Examples {
		if ex.User == "" || ex.Reply == "" {
			errs = append(errs, fmt.Errorf("personas[%d].examples[%d]: both user and reply are required", i, j))
		}
	}

	for j, a := range p.Abilities {
		if a.Pattern == "" {
			errs = append(errs, fmt.Errorf("personas[%d].abilities[%d].pattern is required", i, j))
			continue
		}
		if _, err := regexp.Compile(a.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("personas[%d].abilities[%d].pattern: %w", i, j, err))
		}
		if a.Answer == "" {
			errs = append(errs, fmt.Errorf("personas[%d].abilities[%d].answer is required", i, j))
		}
	}

	return errs
}
