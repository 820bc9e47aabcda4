// Package llm turns a ranked claim context into an answer using a hosted or
// local language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDisabled is returned by NewClient when no provider is configured.
var ErrDisabled = errors.New("answer generation disabled")

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, p Prompt) (*Response, error)
}

// Prompt is a system instruction plus the user turn.
type Prompt struct {
	System string
	User   string
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// Config selects and tunes a provider.
type Config struct {
	Provider     string        `yaml:"provider" mapstructure:"provider"` // "none", "anthropic" or "ollama"
	Model        string        `yaml:"model" mapstructure:"model"`
	AnthropicKey string        `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	OllamaURL    string        `yaml:"ollama_url" mapstructure:"ollama_url"`
	MaxTokens    int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NewClient creates an LLM client based on the provider setting.
func NewClient(cfg Config) (Client, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case "", "none":
		return nil, ErrDisabled
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model, cfg.MaxTokens, cfg.Timeout), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
