package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ProviderLocal, cfg.Agent.Provider)
	assert.Equal(t, 1000, cfg.Agent.MaxMessageLength)
	assert.Equal(t, 5, cfg.Agent.HistoryWindow)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, DefaultFallbackReply, cfg.Agent.FallbackReply)
	assert.Zero(t, cfg.Database.Retention)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "advisor.yaml")
	yaml := `
port: "9000"
database:
  driver: memory
agent:
  llm_provider: grpc
  llm_grpc_addr: localhost:50051
  llm_timeout: 5s
  history_window: 3
rate_limit:
  requests: 10
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HISTORY_WINDOW", "8")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, ProviderGRPC, cfg.Agent.Provider)
	assert.Equal(t, 5*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 8, cfg.Agent.HistoryWindow, "env overrides file")
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"gemini without key", func(c *Config) { c.Agent.Provider = ProviderGemini }},
		{"unknown provider", func(c *Config) { c.Agent.Provider = "claude" }},
		{"zero timeout", func(c *Config) { c.Agent.Timeout = 0 }},
		{"zero max length", func(c *Config) { c.Agent.MaxMessageLength = 0 }},
		{"rate limit without window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero queue", func(c *Config) { c.ConversationLog.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Defaults().Validate())
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LLM_TIMEOUT", "soon")
	t.Setenv("MAX_MESSAGE_LENGTH", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 1000, cfg.Agent.MaxMessageLength)
}
