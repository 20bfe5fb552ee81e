// Package llm provides the model gateway abstraction and its provider adapters.
package llm

import (
	"time"

	"github.com/jonathan/resume-tailor/internal/retry"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderAnthropic is the Anthropic/Claude provider
	ProviderAnthropic Provider = "anthropic"
	// ProviderOpenAI is any OpenAI-compatible chat completions endpoint
	ProviderOpenAI Provider = "openai"
)

// DefaultMaxTokens caps a single generation when the caller passes zero
const DefaultMaxTokens = 2048

// Config holds the model gateway configuration
type Config struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoints only
	Temperature float32
	Timeout     time.Duration // per-request HTTP timeout for the OpenAI adapter
	Retry       retry.Config
}

// DefaultConfig returns the default configuration (Gemini, no automatic retries)
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       DefaultModel(ProviderGemini),
		Temperature: 0.2,
		Timeout:     5 * time.Minute,
		Retry:       retry.None(),
	}
}

// DefaultModel returns the model used for a provider when none is configured
func DefaultModel(p Provider) string {
	switch p {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "gemini-2.5-flash"
	}
}

// ModelOrDefault returns the configured model or the provider default
func (c *Config) ModelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel(c.Provider)
}
