package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/types"
)

// GCSStore keeps blobs as objects in a Cloud Storage bucket
type GCSStore struct {
	svc    *gcs.Service
	bucket string
}

// NewGCSStore creates a store for bucket. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

// Get downloads the object at key
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	resp, err := s.svc.Objects.Get(s.bucket, key).Context(ctx).Download()
	if err != nil {
		return nil, s.classify(key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("failed to read %s: %w", key, err))
	}
	return data, nil
}

// Put uploads data to key
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	obj := &gcs.Object{Name: key, ContentType: contentType}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return s.classify(key, err)
	}
	return nil
}

// Exists reports whether the object's metadata can be fetched
func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	_, err := s.svc.Objects.Get(s.bucket, key).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	err = s.classify(key, err)
	if types.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// classify maps API errors to not-found and marks throttling and server errors retryable
func (s *GCSStore) classify(key string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return &types.NotFoundError{Kind: "object", ID: key}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return retry.Retryable(fmt.Errorf("gcs %s: %w", key, err))
		}
	}
	return fmt.Errorf("gcs %s: %w", key, err)
}
