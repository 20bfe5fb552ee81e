package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Gateway invokes a generative model with a prompt and returns its text
type Gateway interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// NewGateway creates the adapter for the configured provider, wrapped with
// the configured retry policy. The returned closer releases client resources.
func NewGateway(ctx context.Context, cfg *Config, log logrus.FieldLogger) (Gateway, io.Closer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		gw     Gateway
		closer io.Closer = nopCloser{}
		err    error
	)
	switch cfg.Provider {
	case ProviderGemini, "":
		var g *GeminiGateway
		g, err = NewGeminiGateway(ctx, cfg)
		gw, closer = g, g
	case ProviderAnthropic:
		gw, err = NewAnthropicGateway(cfg)
	case ProviderOpenAI:
		gw, err = NewOpenAIGateway(cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, nil, err
	}
	return NewRetryingGateway(gw, cfg.Retry, log), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// GeminiGateway implements Gateway for Google Gemini
type GeminiGateway struct {
	client *genai.Client
	config *Config
}

// NewGeminiGateway creates a new Gemini gateway
func NewGeminiGateway(ctx context.Context, config *Config) (*GeminiGateway, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGateway{
		client: client,
		config: config,
	}, nil
}

// Generate sends the prompt to the configured Gemini model
func (g *GeminiGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	model := g.client.GenerativeModel(g.config.ModelOrDefault())
	model.SetTemperature(g.config.Temperature)
	model.SetMaxOutputTokens(int32(maxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyProviderError(string(ProviderGemini), err)
	}

	return extractTextFromResponse(resp), nil
}

// Close releases resources held by the client
func (g *GeminiGateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// extractTextFromResponse joins the text parts of the first candidate. A
// response without candidates or text is empty, not an error.
func extractTextFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	return strings.Join(parts, "")
}

// classifyProviderError maps a transport or API error to the error taxonomy.
// Throttling and overload are marked retryable; the retry policy decides
// whether to act on it. Everything else is a provider outage for this call.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	unavailable := &types.ProviderUnavailableError{Provider: provider, Cause: err}
	if isTransient(err) {
		return retry.Retryable(unavailable)
	}
	return unavailable
}

// isTransient decides from the status each SDK attaches to its errors,
// plus network timeouts
func isTransient(err error) bool {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return transientStatus(anthropicErr.StatusCode)
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return transientStatus(openaiErr.StatusCode)
	}
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return transientStatus(googleErr.Code)
	}
	switch status.Code(err) {
	case codes.ResourceExhausted, codes.Unavailable:
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// transientStatus covers 429, 5xx and the 529 overload code
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
