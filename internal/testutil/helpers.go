package testutil

import (
	"io"
	"log/slog"

	"github.com/runixer/personad/internal/config"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a validated config with test defaults and one persona.
func TestConfig() *config.Config {
	cfg, err := config.LoadDefault()
	if err != nil {
		panic(err)
	}
	cfg.Completion.APIKey = "test-key"
	cfg.ReplyLog.Enabled = false
	cfg.Personas = []config.PersonaConfig{
		{
			Name:         "TestPersona",
			Introduction: "A persona used in tests.",
			Facts:        []string{"Exists only in tests."},
			Examples: []config.ExampleConfig{
				{User: "hello", Reply: "Hello back."},
			},
		},
	}
	return cfg
}
