package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGateway implements Gateway for Claude models
type AnthropicGateway struct {
	client anthropic.Client
	config *Config
}

// NewAnthropicGateway creates a new Claude gateway
func NewAnthropicGateway(config *Config) (*AnthropicGateway, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &AnthropicGateway{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message. A reply without a text
// block yields empty text.
func (g *AnthropicGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.config.ModelOrDefault()),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(g.config.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyProviderError(string(ProviderAnthropic), err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
