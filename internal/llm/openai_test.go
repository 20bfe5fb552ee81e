package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/types"
)

func TestOpenAIGateway_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "gpt-test", gjson.GetBytes(body, "model").String())
		assert.Equal(t, int64(256), gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "hello", gjson.GetBytes(body, "messages.0.content").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer srv.Close()

	gw, err := NewOpenAIGateway(&Config{Provider: ProviderOpenAI, Model: "gpt-test", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := gw.Generate(context.Background(), "hello", 256)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestOpenAIGateway_AuthFailureIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gw, err := NewOpenAIGateway(&Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "hello", 0)
	require.Error(t, err)
	var unavailable *types.ProviderUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.False(t, retry.IsRetryable(err))
	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestOpenAIGateway_EmptyChoicesAreEmptyText(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":    `{"choices":[]}`,
		"empty content": `{"choices":[{"message":{"role":"assistant","content":""}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			gw, err := NewOpenAIGateway(&Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			text, err := gw.Generate(context.Background(), "hello", 0)
			require.NoError(t, err)
			assert.Empty(t, text)
		})
	}
}

func TestOpenAIGateway_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw, err := NewOpenAIGateway(&Config{APIKey: "k", BaseURL: url})
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "hello", 0)
	var unavailable *types.ProviderUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestRetryingGateway_RetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	inner, err := NewOpenAIGateway(&Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	gw := NewRetryingGateway(inner, retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, nil)

	text, err := gw.Generate(context.Background(), "p", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryingGateway_DefaultPolicyDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inner, err := NewOpenAIGateway(&Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	gw := NewRetryingGateway(inner, DefaultConfig().Retry, nil)

	_, err = gw.Generate(context.Background(), "p", 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	var unavailable *types.ProviderUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}
