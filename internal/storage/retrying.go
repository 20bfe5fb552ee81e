package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/retry"
)

// RetryingStore retries reads that fail transiently. Writes pass through
// unchanged since they are not retried automatically.
type RetryingStore struct {
	BlobStore
	cfg retry.Config
	log logrus.FieldLogger
}

// NewRetryingStore wraps store with bounded read retries
func NewRetryingStore(store BlobStore, cfg retry.Config, log logrus.FieldLogger) *RetryingStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetryingStore{BlobStore: store, cfg: cfg, log: log}
}

// Get reads key, retrying transient failures with backoff
func (s *RetryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return retry.Do(ctx, s.cfg, s.log.WithField("key", key), func(ctx context.Context) ([]byte, error) {
		return s.BlobStore.Get(ctx, key)
	})
}

// Exists checks key, retrying transient failures with backoff
func (s *RetryingStore) Exists(ctx context.Context, key string) (bool, error) {
	return retry.Do(ctx, s.cfg, s.log.WithField("key", key), func(ctx context.Context) (bool, error) {
		return s.BlobStore.Exists(ctx, key)
	})
}
