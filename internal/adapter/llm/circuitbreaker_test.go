package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &stubProvider{
		name: "openai",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{Message: domain.Message{Content: "ok"}}, nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, newTestLogger())
	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, "openai", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	inner := &stubProvider{
		name: "openai",
		streamFunc: func(context.Context, domain.ChatRequest) (<-chan domain.StreamDelta, error) {
			calls++
			return nil, domain.ErrProviderUnavailable
		},
	}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Minute,
	}, newTestLogger())

	for range 2 {
		_, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open breaker must not reach the provider")
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	inner := &stubProvider{
		name: "openai",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, context.Canceled
		},
	}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{MaxFailures: 1}, newTestLogger())

	for range 3 {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		assert.True(t, errors.Is(err, context.Canceled))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerStreamSuccess(t *testing.T) {
	inner := &stubProvider{
		name: "ollama",
		streamFunc: func(context.Context, domain.ChatRequest) (<-chan domain.StreamDelta, error) {
			ch := make(chan domain.StreamDelta, 2)
			ch <- domain.StreamDelta{Content: "hi"}
			ch <- domain.StreamDelta{Done: true}
			close(ch)
			return ch, nil
		},
	}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, newTestLogger())

	ch, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	text, _ := collect(t, ch)
	assert.Equal(t, "hi", text)
	assert.Same(t, domain.StreamingLLMProvider(inner), cb.Unwrap())
}
