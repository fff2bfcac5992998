package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatOK(content string) map[string]any {
	return map[string]any{
		"id":    "gen-1",
		"model": "openai/gpt-4o-mini",
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithBaseURL(url), WithAPIKey("default-key"), WithRetry(2, time.Millisecond)}
	c, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultReferer, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, DefaultTitle, r.Header.Get("X-Title"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai/gpt-4o-mini", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 1e-9)
		assert.EqualValues(t, 800, body["max_tokens"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, map[string]any{"role": "system", "content": "Eres JARVIS."}, msgs[0])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatOK("¡Hola!"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("Eres JARVIS."), NewUserMessage("Hola")},
		APIKey:   "test-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola!", resp.Message.Content)
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClientChatDefaultKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer default-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(chatOK("ok"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	require.NoError(t, err)
}

func TestClientChatNoKey(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", WithAPIKey(""))
	_, err := client.Chat(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestClientChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Chat(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestClientStatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		check     func(t *testing.T, e *APIError)
	}{
		{"payment required is not retried", http.StatusPaymentRequired, 1, func(t *testing.T, e *APIError) {
			assert.True(t, e.IsPaymentRequired())
			assert.False(t, e.IsRetryable())
		}},
		{"unauthorized is not retried", http.StatusUnauthorized, 1, func(t *testing.T, e *APIError) {
			assert.True(t, e.IsUnauthorized())
		}},
		{"rate limit is retried", http.StatusTooManyRequests, 3, func(t *testing.T, e *APIError) {
			assert.True(t, e.IsRateLimited())
		}},
		{"server error is retried", http.StatusServiceUnavailable, 3, func(t *testing.T, e *APIError) {
			assert.True(t, e.IsServerError())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","code":402}}`))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Chat(context.Background(), &ChatRequest{})
			require.Error(t, err)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "402", apiErr.Code)
			tt.check(t, apiErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClientRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(chatOK("segundo intento"))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server.URL).Chat(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "segundo intento", resp.Message.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, server.URL).Chat(ctx, &ChatRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(t, server.URL).Health(context.Background()))
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(WithModel(""))
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = NewClient(WithBaseURL(""))
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestMock(t *testing.T) {
	ctx := context.Background()
	mock := NewMock()

	resp, err := mock.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("Hola")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response", resp.Message.Content)
	assert.Equal(t, 1, mock.CallCount("Chat"))
	require.Len(t, mock.Requests(), 1)
	assert.Equal(t, "Hola", mock.Requests()[0].Messages[0].Content)

	mock.Reset()
	assert.Empty(t, mock.Calls())

	failing := WithError(ErrProviderUnavailable)
	_, err = failing.Chat(ctx, &ChatRequest{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, failing.Health(ctx), ErrProviderUnavailable)
}
