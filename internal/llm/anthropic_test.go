package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// Compile-time interface check.
var _ Generator = (*AnthropicProvider)(nil)

// newAnthropicTestServer creates an httptest server that responds with the given handler.
func newAnthropicTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// newAnthropicTestProvider creates an AnthropicProvider pointing at the given test server URL.
func newAnthropicTestProvider(baseURL string) *AnthropicProvider {
	cfg := AnthropicConfig{
		APIKey:  "test-api-key",
		BaseURL: baseURL,
	}
	return NewAnthropicProvider(cfg, 0.7, 10*time.Second, 2, 10*time.Millisecond)
}

func writeMessagesResponse(t *testing.T, w http.ResponseWriter, blocks ...contentBlock) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(messagesResponse{
		ID:      "msg_01",
		Type:    "message",
		Role:    "assistant",
		Content: blocks,
		Model:   "claude-sonnet-4-5",
	}))
}

func TestAnthropicProvider_Generate(t *testing.T) {
	t.Run("sends headers and joins text blocks", func(t *testing.T) {
		var received messagesRequest
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			writeMessagesResponse(t, w,
				contentBlock{Type: "text", Text: "## Summary"},
				contentBlock{Type: "tool_use"},
				contentBlock{Type: "text", Text: "\nBody"},
			)
		})

		text, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "claude-sonnet-4-5", "Summarize", false)
		require.NoError(t, err)
		assert.Equal(t, "## Summary\nBody", text)

		assert.Equal(t, "claude-sonnet-4-5", received.Model)
		assert.Equal(t, defaultAnthropicMaxTokens, received.MaxTokens)
		require.Len(t, received.Messages, 1)
		assert.Equal(t, "Summarize", received.Messages[0].Content)
	})

	t.Run("json mode appends instruction", func(t *testing.T) {
		var received messagesRequest
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeMessagesResponse(t, w, contentBlock{Type: "text", Text: `{"method":"m"}`})
		})

		_, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "Structure this", true)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(received.Messages[0].Content, "Structure this"))
		assert.True(t, strings.HasSuffix(received.Messages[0].Content, jsonInstruction))
	})

	t.Run("no text blocks is an error", func(t *testing.T) {
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeMessagesResponse(t, w)
		})

		_, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "p", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no text content")
	})
}

func TestAnthropicProvider_Generate_APIError(t *testing.T) {
	t.Run("billing error is quota exhaustion", func(t *testing.T) {
		var calls atomic.Int32
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"billing_error","message":"Your credit balance is too low"}}`))
		})

		_, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "p", false)
		require.ErrorIs(t, err, domain.ErrModelQuotaExceeded)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("overloaded is retried then surfaced as transient", func(t *testing.T) {
		var calls atomic.Int32
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
		})

		_, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "p", false)
		require.ErrorIs(t, err, domain.ErrTransientProvider)
		assert.Contains(t, err.Error(), "exhausted 2 retries")
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("invalid key is a plain model error", func(t *testing.T) {
		srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		})

		_, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "p", false)
		require.ErrorIs(t, err, domain.ErrModelCall)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "authentication_error", apiErr.Type)
		assert.Equal(t, "invalid x-api-key", apiErr.Message)
	})
}

func TestAnthropicProvider_Generate_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		writeMessagesResponse(t, w, contentBlock{Type: "text", Text: "YES"})
	})

	text, err := newAnthropicTestProvider(srv.URL).Generate(context.Background(), "m", "p", false)
	require.NoError(t, err)
	assert.Equal(t, "YES", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicProvider_Generate_ContextCancelled(t *testing.T) {
	srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnthropicTestProvider(srv.URL).Generate(ctx, "m", "p", false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewAnthropicProvider_Defaults(t *testing.T) {
	p := NewAnthropicProvider(AnthropicConfig{APIKey: "k"}, 0.2, time.Second, 1, 0)
	assert.Equal(t, defaultAnthropicBaseURL, p.baseURL)
	assert.Equal(t, defaultAnthropicMaxTokens, p.maxTokens)
	assert.Equal(t, time.Second, p.retryDelay)
	assert.Equal(t, "anthropic", p.Provider())
}
