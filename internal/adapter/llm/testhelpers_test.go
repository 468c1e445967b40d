package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"thesearch/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProvider is a scriptable domain.StreamingLLMProvider.
type stubProvider struct {
	name       string
	chatFunc   func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	streamFunc func(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error)
}

func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if s.chatFunc != nil {
		return s.chatFunc(ctx, req)
	}
	return &domain.ChatResponse{}, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if s.streamFunc != nil {
		return s.streamFunc(ctx, req)
	}
	ch := make(chan domain.StreamDelta)
	close(ch)
	return ch, nil
}

func (s *stubProvider) Name() string { return s.name }

// sseBody renders OpenAI-style stream chunks carrying the given tokens.
func sseBody(tokens ...string) string {
	var b strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
	}
	b.WriteString("data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

// collect drains a delta channel, concatenating content.
func collect(t *testing.T, ch <-chan domain.StreamDelta) (string, []domain.StreamDelta) {
	t.Helper()
	var b strings.Builder
	var all []domain.StreamDelta
	for d := range ch {
		b.WriteString(d.Content)
		all = append(all, d)
	}
	return b.String(), all
}

// roundTripFunc is a function type that implements http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
