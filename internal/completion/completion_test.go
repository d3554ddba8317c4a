package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

type stubProvider struct {
	reply string
	err   error
	delay time.Duration
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Generate(ctx context.Context, _ string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func TestClientComplete(t *testing.T) {
	tests := []struct {
		name         string
		provider     stubProvider
		want         string
		wantFallback bool
	}{
		{"success", stubProvider{reply: "Paris"}, "Paris", false},
		{"provider error", stubProvider{err: errors.New("rate limited")}, DefaultFallbackMessage, true},
		{"empty reply", stubProvider{reply: "   "}, DefaultFallbackMessage, true},
		{"timeout", stubProvider{reply: "late", delay: time.Second}, DefaultFallbackMessage, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fallbacks atomic.Int32
			c := NewClient(tt.provider,
				WithTimeout(50*time.Millisecond),
				WithFallbackHook(func(string) { fallbacks.Add(1) }))

			assert.Equal(t, tt.want, c.Complete(context.Background(), "question"))
			if tt.wantFallback {
				assert.Equal(t, int32(1), fallbacks.Load())
			} else {
				assert.Zero(t, fallbacks.Load())
			}
		})
	}
}

func TestCustomFallbackMessage(t *testing.T) {
	c := NewClient(stubProvider{err: errors.New("down")}, WithFallbackMessage("try later"))
	assert.Equal(t, "try later", c.Complete(context.Background(), "hi"))

	c = NewClient(stubProvider{err: errors.New("down")}, WithFallbackMessage(""))
	assert.Equal(t, DefaultFallbackMessage, c.Complete(context.Background(), "hi"))
}

func TestEchoProvider(t *testing.T) {
	c := NewClient(EchoProvider{})
	assert.Equal(t, "AI response to: hello", c.Complete(context.Background(), "hello"))
	assert.Equal(t, "echo", c.Provider())
}

func TestOpenAIProvider(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4-1106-preview",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Paris"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", "gpt-4-1106-preview", 0.7, OpenAIOptions(server.URL+"/", nil)...)
	require.NoError(t, err)

	reply, err := p.Generate(context.Background(), "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", reply)

	assert.Equal(t, "gpt-4-1106-preview", captured["model"])
	assert.Equal(t, 0.7, captured["temperature"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "capital of France?", messages[0].(map[string]any)["content"])
}

func TestOpenAIProviderFailureFallsBack(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", "gpt-4-1106-preview", 0.7, OpenAIOptions(server.URL+"/", nil)...)
	require.NoError(t, err)

	c := NewClient(p)
	assert.Equal(t, DefaultFallbackMessage, c.Complete(context.Background(), "hi"))
	assert.Equal(t, int32(1), calls.Load(), "no retries")
}

func TestAnthropicProvider(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Bonjour"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 1}
		}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider("ant-key", "claude-sonnet-4-5-20250929", 256, 0.7, AnthropicOptions(server.URL, nil)...)
	require.NoError(t, err)

	reply, err := p.Generate(context.Background(), "hello in French")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", reply)
	assert.Equal(t, float64(256), captured["max_tokens"])
}

func TestProviderConstructorsValidate(t *testing.T) {
	_, err := NewOpenAIProvider("", "gpt-4", 0.7)
	assert.Error(t, err)
	_, err = NewOpenAIProvider("key", "", 0.7)
	assert.Error(t, err)
	_, err = NewAnthropicProvider("", "", 0, 0.7)
	assert.Error(t, err)
	_, err = NewGeminiProvider(context.Background(), "", "", 0, 0.7, "", nil)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.CompletionConfig{
		Provider:        config.ProviderEcho,
		Timeout:         time.Second,
		FallbackMessage: "sorry",
	}
	c, err := NewFromConfig(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "echo", c.Provider())
	assert.Equal(t, "AI response to: ping", c.Complete(context.Background(), "ping"))

	cfg.Provider = "llama"
	_, err = NewFromConfig(context.Background(), cfg, logger.NewNopLogger())
	assert.Error(t, err)
}
