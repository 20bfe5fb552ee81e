package llm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/retry"
)

// RetryingGateway applies a bounded retry policy to transient provider errors.
// With MaxRetries zero every call is attempted exactly once.
type RetryingGateway struct {
	next Gateway
	cfg  retry.Config
	log  logrus.FieldLogger
}

// NewRetryingGateway wraps next with the retry policy in cfg
func NewRetryingGateway(next Gateway, cfg retry.Config, log logrus.FieldLogger) *RetryingGateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetryingGateway{next: next, cfg: cfg, log: log}
}

// Generate calls the wrapped gateway, retrying throttling and overload errors
func (g *RetryingGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return retry.Do(ctx, g.cfg, g.log, func(ctx context.Context) (string, error) {
		return g.next.Generate(ctx, prompt, maxTokens)
	})
}
