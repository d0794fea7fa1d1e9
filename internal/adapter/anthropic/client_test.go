package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-test",
	"content": [{"type": "text", "text": "yes"}],
	"stop_reason": "end_turn",
	"stop_sequence": null,
	"usage": {"input_tokens": 12, "output_tokens": 1}
}`

func errorBody(kind string) string {
	return `{"type":"error","error":{"type":"` + kind + `","message":"nope"}}`
}

func TestComplete_SendsDeterministicRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := NewClient("test-key", "claude-test", 5*time.Second, srv.URL)
	answer, err := c.Complete(context.Background(), classify.Request{System: "sys", User: "usr", MaxTokens: 16})
	require.NoError(t, err)

	assert.Equal(t, "yes", answer)
	assert.Equal(t, "claude-test", got["model"])
	assert.EqualValues(t, 0, got["temperature"])
	assert.EqualValues(t, 16, got["max_tokens"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "sys", system[0].(map[string]any)["text"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, "rate_limit_error", true},
		{"server error", http.StatusInternalServerError, "api_error", true},
		{"overloaded", 529, "overloaded_error", true},
		{"bad request", http.StatusBadRequest, "invalid_request_error", false},
		{"unauthorized", http.StatusUnauthorized, "authentication_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(errorBody(tt.kind)))
			}))
			defer srv.Close()

			c := NewClient("k", "m", 5*time.Second, srv.URL)
			_, err := c.Complete(context.Background(), classify.Request{User: "u"})

			require.Error(t, err)
			assert.Equal(t, tt.transient, classify.IsTransient(err))
			assert.Equal(t, int32(1), hits.Load(), "sdk retries must be disabled")
		})
	}
}

func TestComplete_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient("k", "m", time.Second, url)
	_, err := c.Complete(context.Background(), classify.Request{User: "u"})
	require.Error(t, err)
	assert.True(t, classify.IsTransient(err))
}
