package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/personad/internal/completion"
	"github.com/runixer/personad/internal/config"
	"github.com/runixer/personad/internal/testutil"
)

func TestSetupServices(t *testing.T) {
	cfg := testutil.TestConfig()

	services, err := SetupServices(context.Background(), testutil.TestLogger(), cfg, nil, nil)
	require.NoError(t, err)
	defer services.Close()

	require.Len(t, services.Personas, 1)
	assert.Equal(t, "TestPersona", services.Personas[0].Name())
	assert.NotNil(t, services.Router)
	assert.False(t, services.ReplyLogger.Enabled(), "reply log must stay off without a store")
	assert.Equal(t, 1, services.Personas[0].FactCount())
	assert.Equal(t, 1, services.Personas[0].ExampleCount())
}

func TestSetupServices_PresetPersona(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Personas = []config.PersonaConfig{
		{Name: "Ada", Preset: "character", Introduction: "A pioneering programmer."},
	}

	services, err := SetupServices(context.Background(), testutil.TestLogger(), cfg, nil, nil)
	require.NoError(t, err)
	defer services.Close()

	require.Len(t, services.Personas, 1)
	assert.Equal(t, "Ada", services.Personas[0].Name())
}

func TestSetupServices_BadAbilityPattern(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Personas[0].Abilities = []config.AbilityConfig{
		{Name: "bad", Pattern: "[", Answer: "x"},
	}

	_, err := SetupServices(context.Background(), testutil.TestLogger(), cfg, nil, nil)
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestSetupServices_MissingLogger(t *testing.T) {
	_, err := SetupServices(context.Background(), nil, testutil.TestConfig(), nil, nil)
	assert.Error(t, err)
}

func TestCompletionBackend_Defaults(t *testing.T) {
	b := newCompletionBackend(nil, config.CompletionConfig{Model: "m"})

	assert.Equal(t, completion.DefaultMaxTokens, b.cfg.MaxTokens)
	assert.InDelta(t, completion.DefaultTemperature, b.cfg.Temperature, 1e-9)
	assert.InDelta(t, completion.DefaultPresencePenalty, b.cfg.PresencePenalty, 1e-9)
	assert.Equal(t, completion.DefaultStops, b.cfg.Stop)
}
