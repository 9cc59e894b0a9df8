package llm

import (
	"context"
	"fmt"
	"time"
)

// FactoryConfig holds the parameters needed to create a Generator.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("gemini", "openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewGenerator creates a Generator based on the configuration.
// Returns an error for unsupported or empty provider values.
func NewGenerator(ctx context.Context, cfg FactoryConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.RetryDelay)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.RetryDelay), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.RetryDelay), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
