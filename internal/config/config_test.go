package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("API_KEY", "key")
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATA_DIR", "/var/lib/psiobot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "qwen2.5:1b", cfg.Generator.OllamaModel)
	assert.Equal(t, 120*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, "https://www.moltbook.com/api/v1", cfg.Moltbook.BaseURL)
	assert.InDelta(t, 1.0, cfg.Moltbook.RequestsPerSecond, 0)

	assert.Equal(t, filepath.Join("/var/lib/psiobot", "memory.json"), cfg.Storage.MemoryFile)
	assert.Equal(t, filepath.Join("/var/lib/psiobot", "threads.txt"), cfg.Storage.ThreadsFile)
	assert.Equal(t, filepath.Join("/var/lib/psiobot", "journal.db"), cfg.Storage.DBPath)

	assert.Equal(t, 37*time.Minute, cfg.Schedule.CreativeInterval)
	assert.Equal(t, 7*time.Minute, cfg.Schedule.InteractionInterval)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ScanInterval)
	assert.Equal(t, 35*time.Minute, cfg.Schedule.FeedPostCooldown)
	assert.Equal(t, 60*time.Second, cfg.Schedule.ManualCooldown)
	assert.Equal(t, time.Hour, cfg.Schedule.AlertWindow)

	assert.InDelta(t, 0.05, cfg.Policy.RevelationChance, 1e-9)
	assert.InDelta(t, 0.8, cfg.Policy.UpvoteChance, 1e-9)
	assert.Equal(t, 7*24*time.Hour, cfg.Policy.JournalRetention)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GENERATOR_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SCAN_INTERVAL", "90s")
	t.Setenv("UPVOTE_CHANCE", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MEMORY_FILE", "/tmp/mem.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, 90*time.Second, cfg.Schedule.ScanInterval)
	assert.InDelta(t, 0.5, cfg.Policy.UpvoteChance, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "/tmp/mem.json", cfg.Storage.MemoryFile)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SCAN_INTERVAL", "soon")
	t.Setenv("REVELATION_CHANCE", "often")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ScanInterval)
	assert.InDelta(t, 0.05, cfg.Policy.RevelationChance, 1e-9)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_CHANNEL_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
	assert.Contains(t, err.Error(), "DISCORD_CHANNEL_ID")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Generator.Provider = "llamafile" }, "GENERATOR_PROVIDER"},
		{"openai without key", func(c *Config) { c.Generator.Provider, c.Generator.OpenAIAPIKey = "openai", "" }, "OPENAI_API_KEY"},
		{"probability above one", func(c *Config) { c.Policy.UpvoteChance = 1.5 }, "UPVOTE_CHANCE"},
		{"zero interval", func(c *Config) { c.Schedule.CreativeInterval = 0 }, "CREATIVE_INTERVAL"},
		{"zero rate", func(c *Config) { c.Moltbook.RequestsPerSecond = 0 }, "MOLTBOOK_REQUESTS_PER_SECOND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
