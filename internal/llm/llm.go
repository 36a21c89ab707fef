// Package llm talks to the text-generation service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Generator produces text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

var errEmptyResponse = errors.New("empty response from model")

// Config selects and configures a provider.
type Config struct {
	Provider string
	Endpoint string // ollama server URL or OpenAI-compatible base URL
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New returns the Generator for cfg.Provider.
func New(cfg Config) (Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Endpoint, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", cfg.Provider)
	}
}

// clean strips whitespace and wrapping quotes models like to add.
func clean(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
