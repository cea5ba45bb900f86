package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
server:
  listen_port: "9001"
completion:
  api_key: "test_api_key"
  model: "test-model"
knowledge:
  enabled: true
  base_url: "https://kb.example.com"
personas:
  - name: "Luna"
    introduction: "A sardonic astronomer."
    facts:
      - "Luna lives in an observatory."
    examples:
      - user: "what do you see tonight?"
        reply: "Mostly clouds, tragically."
    abilities:
      - name: "greeting"
        pattern: "(?i)\\bhello\\b"
        answer: "Well met."
database:
  path: "test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "9001", cfg.Server.ListenPort)
	assert.Equal(t, "test_api_key", cfg.Completion.APIKey)
	assert.Equal(t, "test-model", cfg.Completion.Model)
	assert.True(t, cfg.Knowledge.Enabled)
	assert.Equal(t, "test.db", cfg.Database.Path)

	require.Len(t, cfg.Personas, 1)
	p := cfg.Personas[0]
	assert.Equal(t, "Luna", p.Name)
	assert.Equal(t, []string{"Luna lives in an observatory."}, p.Facts)
	require.Len(t, p.Examples, 1)
	assert.Equal(t, "what do you see tonight?", p.Examples[0].User)
	require.Len(t, p.Abilities, 1)
	assert.Equal(t, "Well met.", p.Abilities[0].Answer)
}

func TestLoad_FileNotExists_FallsBackToDefault(t *testing.T) {
	cfg, err := Load("non_existent_file.yaml")
	assert.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.ListenPort)
}

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.ListenPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "&", cfg.Router.Prefix)
	assert.Equal(t, 250, cfg.Completion.MaxTokens)
	assert.InDelta(t, 0.865, cfg.Completion.Temperature, 1e-9)
	assert.InDelta(t, 0.23, cfg.Completion.PresencePenalty, 1e-9)
	assert.Contains(t, cfg.Completion.Stop, "(Sources")
	assert.Equal(t, 180, cfg.Selection.FactBudget)
	assert.Equal(t, 710, cfg.Selection.ExampleBudget)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "api-key-from-env")

	path := writeTempConfig(t, `
completion:
  api_key: "${TEST_API_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "api-key-from-env", cfg.Completion.APIKey)
}

func TestLoad_CleanenvOverrides(t *testing.T) {
	t.Setenv("PERSONAD_COMPLETION_MODEL", "model-from-env")
	t.Setenv("PERSONAD_ROUTER_PREFIX", "@")

	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "model-from-env", cfg.Completion.Model)
	assert.Equal(t, "@", cfg.Router.Prefix)
}

func TestLoad_MergesWithDefaults(t *testing.T) {
	path := writeTempConfig(t, `completion:
  api_key: "my-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "my-key", cfg.Completion.APIKey)
	// Defaults preserved for fields the user did not set
	assert.Equal(t, "8080", cfg.Server.ListenPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "personad.db", cfg.Database.Path)
	assert.Equal(t, 2000, cfg.Generation.MaxResponseChars)
}

func validBaseConfig() *Config {
	cfg, _ := LoadDefault()
	cfg.Completion.APIKey = "key"
	cfg.Personas = []PersonaConfig{
		{Name: "Luna", Introduction: "An astronomer."},
	}
	return cfg
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validBaseConfig().Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Completion.APIKey = ""
	cfg.Completion.Model = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "completion.api_key is required")
	assert.ErrorContains(t, err, "completion.model is required")
}

func TestValidate_NoPersonas(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Personas = nil

	assert.ErrorContains(t, cfg.Validate(), "at least one persona is required")
}

func TestValidate_DuplicatePersonaNames(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Personas = append(cfg.Personas, PersonaConfig{Name: "LUNA", Introduction: "x"})

	assert.ErrorContains(t, cfg.Validate(), "case-insensitively")
}

func TestValidate_MalformedExamplesReportedIndividually(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Personas[0].Examples = []ExampleConfig{
		{User: "ok", Reply: "ok"},
		{User: "missing reply"},
		{Reply: "missing user"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "personas[0].examples[1]")
	assert.ErrorContains(t, err, "personas[0].examples[2]")
	assert.NotContains(t, err.Error(), "examples[0]")
}

func TestValidate_AbilityPatterns(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Personas[0].Abilities = []AbilityConfig{
		{Name: "bad", Pattern: "[", Answer: "x"},
		{Name: "empty", Pattern: "", Answer: "x"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "abilities[0].pattern")
	assert.ErrorContains(t, err, "abilities[1].pattern is required")
}

func TestValidate_RankerRequirements(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Ranker.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "ranker.api_key")
	assert.ErrorContains(t, err, "ranker.folder_id")
}

func TestValidate_ReplyLogRetention(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ReplyLog.Retention = "not-a-duration"

	assert.ErrorContains(t, cfg.Validate(), "reply_log.retention")

	cfg.ReplyLog.Retention = "72h"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 72*60*60, int(cfg.ReplyLog.GetRetention().Seconds()))
}

func TestValidate_IntroductionRequiredWithoutPreset(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Personas[0].Introduction = ""

	assert.ErrorContains(t, cfg.Validate(), "personas[0].introduction is required")

	cfg.Personas[0].Preset = "character"
	cfg.Personas[0].Introduction = ""
	// Preset templates may still demand an introduction at resolve time,
	// but config-level validation only insists for custom/no preset.
	assert.NoError(t, cfg.Validate())
}
