package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGateway implements Gateway for OpenAI-compatible chat completion
// endpoints, including gateways that proxy other providers behind that API
type OpenAIGateway struct {
	client openai.Client
	config *Config
}

// NewOpenAIGateway creates a gateway for an OpenAI-compatible endpoint
func NewOpenAIGateway(config *Config) (*OpenAIGateway, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}
	return &OpenAIGateway{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message. A response with no
// choices yields empty text and leaves the caller to degrade.
func (g *OpenAIGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.config.ModelOrDefault()),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(float64(g.config.Temperature)),
	})
	if err != nil {
		return "", classifyProviderError(string(ProviderOpenAI), err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}
