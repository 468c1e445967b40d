package rag

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"thesearch/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSearch struct {
	results []domain.SearchResult
	err     error
	queries []string
}

func (s *stubSearch) Name() string { return "stub" }

func (s *stubSearch) Search(_ context.Context, q string) ([]domain.SearchResult, error) {
	s.queries = append(s.queries, q)
	return s.results, s.err
}

// stubLLM streams tokens and answers Chat with a canned response.
type stubLLM struct {
	mu        sync.Mutex
	tokens    []string
	streamErr error
	midErr    error
	chatResp  *domain.ChatResponse
	chatErr   error
	chatBlock chan struct{}
	streamReq domain.ChatRequest
	chatReqs  []domain.ChatRequest
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.mu.Lock()
	s.chatReqs = append(s.chatReqs, req)
	s.mu.Unlock()
	if s.chatBlock != nil {
		select {
		case <-s.chatBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	if s.chatResp == nil {
		return &domain.ChatResponse{}, nil
	}
	return s.chatResp, nil
}

func (s *stubLLM) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	s.mu.Lock()
	s.streamReq = req
	s.mu.Unlock()
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan domain.StreamDelta)
	go func() {
		defer close(ch)
		for _, tok := range s.tokens {
			select {
			case ch <- domain.StreamDelta{Content: tok}:
			case <-ctx.Done():
				return
			}
		}
		final := domain.StreamDelta{Done: true, Err: s.midErr}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (s *stubLLM) lastChat() domain.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatReqs[len(s.chatReqs)-1]
}

func toolCallResponse(args string) *domain.ChatResponse {
	return &domain.ChatResponse{Message: domain.Message{
		Role: domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{
			ID:        "call_1",
			Name:      relatedToolName,
			Arguments: []byte(args),
		}},
	}}
}

func textResponse(text string) *domain.ChatResponse {
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: text}}
}
