package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"thesearch/internal/domain"
)

var parisContexts = []domain.SearchResult{
	{Name: "Wikipedia", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital of France."},
	{Name: "Britannica", URL: "https://britannica.com/place/Paris", Snippet: "Paris, city and capital of France."},
	{Name: "Travel", URL: "https://travel.example/paris", Snippet: "Paris sits on the Seine."},
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultQuery},
		{"   ", DefaultQuery},
		{"[INST][/INST]", DefaultQuery},
		{"[INST] capital of France [/INST]", "capital of France"},
		{"what is [INST]go", "what is go"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.in))
		})
	}
}

func TestAnswerPrompt(t *testing.T) {
	p := AnswerPrompt(parisContexts)

	assert.Contains(t, p, "[[citation:1]] Paris is the capital of France.\n\n[[citation:2]] Paris, city and capital of France.\n\n[[citation:3]] Paris sits on the Seine.")
	assert.NotContains(t, p, contextPlaceholder)
	assert.True(t, strings.HasSuffix(p, "And here is the user question:\n"))
}

func TestAnswerPromptNoContexts(t *testing.T) {
	p := AnswerPrompt(nil)
	assert.Contains(t, p, "Here are the set of contexts:\n\nRemember")
}

func TestRelatedPrompts(t *testing.T) {
	p := RelatedPrompt(parisContexts)
	assert.Contains(t, p, "Paris is the capital of France.\n\nParis, city and capital of France.")
	assert.NotContains(t, p, "[[citation:")

	j := RelatedPromptJSON(parisContexts)
	assert.Contains(t, j, "Paris sits on the Seine.")
	assert.Contains(t, j, "{\n  \"questions\": [")
	assert.NotContains(t, j, "{{")
	assert.NotContains(t, j, contextPlaceholder)
}
