package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
)

func TestRelatedGeneratorToolCalls(t *testing.T) {
	llm := &stubLLM{chatResp: toolCallResponse(`{"questions":["Why Paris?","When was Paris founded?"]}`)}
	g := NewRelatedGenerator(llm, true, 0, newTestLogger())

	got, err := g.Generate(context.Background(), "capital of France", parisContexts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Why Paris?", "When was Paris founded?"}, got)

	req := llm.lastChat()
	assert.Equal(t, 512, req.MaxTokens)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "ask_related_questions", req.Tools[0].Name)
	assert.Equal(t, "ask_related_questions", req.ToolChoice)
	assert.Equal(t, RelatedPrompt(parisContexts), req.Messages[0].Content)
	assert.Equal(t, "capital of France", req.Messages[1].Content)
}

func TestRelatedGeneratorJSONPrompt(t *testing.T) {
	llm := &stubLLM{chatResp: textResponse("Here:\n```json\n{\"questions\": [{\"question\": \"A?\"}, {\"question\": \"B?\"}]}\n```")}
	g := NewRelatedGenerator(llm, false, 256, newTestLogger())

	got, err := g.Generate(context.Background(), "q", parisContexts)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?", "B?"}, got)

	req := llm.lastChat()
	assert.Empty(t, req.Tools)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, RelatedPromptJSON(parisContexts), req.Messages[0].Content)
}

func TestRelatedGeneratorTruncates(t *testing.T) {
	llm := &stubLLM{chatResp: toolCallResponse(`{"questions":["1","2","3","4","5","6","7"]}`)}
	g := NewRelatedGenerator(llm, true, 0, newTestLogger())

	got, err := g.Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
}

func TestRelatedGeneratorDoubleEncodedArguments(t *testing.T) {
	llm := &stubLLM{chatResp: toolCallResponse(`"{\"questions\":[\"x?\"]}"`)}
	g := NewRelatedGenerator(llm, true, 0, newTestLogger())

	got, err := g.Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x?"}, got)
}

func TestRelatedGeneratorFailures(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubLLM
	}{
		{"chat error", &stubLLM{chatErr: domain.ErrRateLimit}},
		{"no json", &stubLLM{chatResp: textResponse("I cannot help with that.")}},
		{"no questions key", &stubLLM{chatResp: textResponse(`{"answers":["a"]}`)}},
		{"questions not array", &stubLLM{chatResp: textResponse(`{"questions":"a"}`)}},
		{"wrong item type", &stubLLM{chatResp: textResponse(`{"questions":[1,2]}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRelatedGenerator(tt.llm, false, 0, newTestLogger())
			got, err := g.Generate(context.Background(), "q", nil)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, domain.ErrRelatedQuestions), "got %v", err)
		})
	}
}

func TestDecodeQuestionsSkipsBlank(t *testing.T) {
	got, err := decodeQuestions(map[string]any{"questions": []any{" a ", "", map[string]any{"question": "  "}, map[string]any{"question": "b"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
