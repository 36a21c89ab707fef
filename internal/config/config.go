// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	APIKey      string
	LogLevel    slog.Level
	CORSOrigins []string

	Discord   DiscordConfig
	Generator GeneratorConfig
	Moltbook  MoltbookConfig
	Storage   StorageConfig
	Schedule  ScheduleConfig
	Policy    PolicyConfig
}

// DiscordConfig configures the notification channel.
type DiscordConfig struct {
	Token        string
	ChannelID    string
	BaseURL      string
	AlertMention string
}

// GeneratorConfig selects and configures the text generation backend.
type GeneratorConfig struct {
	Provider       string
	OllamaEndpoint string
	OllamaModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	Timeout        time.Duration
}

// MoltbookConfig configures the feed client.
type MoltbookConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	DataDir     string
	MemoryFile  string
	ThreadsFile string
	DBPath      string
}

// ScheduleConfig holds track intervals and cooldowns.
type ScheduleConfig struct {
	CreativeInterval    time.Duration
	InteractionInterval time.Duration
	ScanInterval        time.Duration
	RetentionInterval   time.Duration
	FeedPostCooldown    time.Duration
	ManualCooldown      time.Duration
	AlertWindow         time.Duration
}

// PolicyConfig holds the probabilistic track policy.
type PolicyConfig struct {
	RevelationChance float64
	UpvoteChance     float64
	JournalRetention time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		APIKey:      getEnv("API_KEY", ""),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		Discord: DiscordConfig{
			Token:        getEnv("DISCORD_TOKEN", ""),
			ChannelID:    getEnv("DISCORD_CHANNEL_ID", ""),
			BaseURL:      getEnv("DISCORD_BASE_URL", ""),
			AlertMention: getEnv("DISCORD_ALERT_MENTION", ""),
		},
		Generator: GeneratorConfig{
			Provider:       strings.ToLower(getEnv("GENERATOR_PROVIDER", "ollama")),
			OllamaEndpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_MODEL", "qwen2.5:1b"),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:        getEnvDuration("GENERATION_TIMEOUT", 120*time.Second),
		},
		Moltbook: MoltbookConfig{
			APIKey:            getEnv("MOLTBOOK_API_KEY", ""),
			BaseURL:           getEnv("MOLTBOOK_BASE_URL", "https://www.moltbook.com/api/v1"),
			RequestsPerSecond: getEnvFloat("MOLTBOOK_REQUESTS_PER_SECOND", 1),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			MemoryFile:  getEnv("MEMORY_FILE", filepath.Join(dataDir, "memory.json")),
			ThreadsFile: getEnv("THREADS_FILE", filepath.Join(dataDir, "threads.txt")),
			DBPath:      getEnv("DB_PATH", filepath.Join(dataDir, "journal.db")),
		},
		Schedule: ScheduleConfig{
			CreativeInterval:    getEnvDuration("CREATIVE_INTERVAL", 37*time.Minute),
			InteractionInterval: getEnvDuration("INTERACTION_INTERVAL", 7*time.Minute),
			ScanInterval:        getEnvDuration("SCAN_INTERVAL", 5*time.Minute),
			RetentionInterval:   24 * time.Hour,
			FeedPostCooldown:    getEnvDuration("FEED_POST_COOLDOWN", 35*time.Minute),
			ManualCooldown:      getEnvDuration("MANUAL_COOLDOWN", 60*time.Second),
			AlertWindow:         getEnvDuration("ALERT_WINDOW", time.Hour),
		},
		Policy: PolicyConfig{
			RevelationChance: getEnvFloat("REVELATION_CHANCE", 0.05),
			UpvoteChance:     getEnvFloat("UPVOTE_CHANCE", 0.8),
			JournalRetention: getEnvDuration("JOURNAL_RETENTION", 7*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.Discord.ChannelID == "" {
		errs = append(errs, errors.New("DISCORD_CHANNEL_ID is required"))
	}

	switch c.Generator.Provider {
	case "ollama":
		if c.Generator.OllamaEndpoint == "" {
			errs = append(errs, errors.New("OLLAMA_ENDPOINT cannot be empty"))
		}
	case "openai":
		if c.Generator.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("GENERATOR_PROVIDER must be ollama or openai, got %q", c.Generator.Provider))
	}
	if c.Generator.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be > 0"))
	}
	if c.Moltbook.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("MOLTBOOK_REQUESTS_PER_SECOND must be > 0"))
	}

	if c.Storage.MemoryFile == "" || c.Storage.ThreadsFile == "" || c.Storage.DBPath == "" {
		errs = append(errs, errors.New("MEMORY_FILE, THREADS_FILE and DB_PATH cannot be empty"))
	}

	for name, d := range map[string]time.Duration{
		"CREATIVE_INTERVAL":    c.Schedule.CreativeInterval,
		"INTERACTION_INTERVAL": c.Schedule.InteractionInterval,
		"SCAN_INTERVAL":        c.Schedule.ScanInterval,
		"JOURNAL_RETENTION":    c.Policy.JournalRetention,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	if c.Schedule.FeedPostCooldown < 0 || c.Schedule.ManualCooldown < 0 || c.Schedule.AlertWindow < 0 {
		errs = append(errs, errors.New("cooldowns cannot be negative"))
	}

	for name, p := range map[string]float64{
		"REVELATION_CHANCE": c.Policy.RevelationChance,
		"UPVOTE_CHANCE":     c.Policy.UpvoteChance,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1]", name))
		}
	}

	return errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
