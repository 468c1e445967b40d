package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

type recordingObserver struct {
	mu       sync.Mutex
	searches []string
	tokens   int
	related  []string
}

func (r *recordingObserver) ObserveSearch(backend string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, backend)
}

func (r *recordingObserver) ObserveTokens(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens += n
}

func (r *recordingObserver) ObserveRelated(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.related = append(r.related, outcome)
}

func testOptions() Options {
	return Options{
		Temperature:      0.7,
		Related:          true,
		RelatedToolCalls: true,
		Counter:          EstimateCounter{},
	}
}

// splitWire splits a wire body into contexts, answer and related sections.
func splitWire(t *testing.T, body string) (contexts []domain.SearchResult, answer string, related []string, hasRelated bool) {
	t.Helper()
	head, rest, ok := strings.Cut(body, LLMResponseMarker)
	require.True(t, ok, "missing answer marker in %q", body)
	require.NoError(t, json.Unmarshal([]byte(head), &contexts))

	answer, tail, hasRelated := strings.Cut(rest, RelatedQuestionsMarker)
	if hasRelated {
		require.NoError(t, json.Unmarshal([]byte(tail), &related))
	}
	return contexts, answer, related, hasRelated
}

func TestEngineAnswer(t *testing.T) {
	search := &stubSearch{results: parisContexts}
	llm := &stubLLM{
		tokens:   []string{"Paris ", "is ", "the ", "capital."},
		chatResp: toolCallResponse(`{"questions":["What is the population of Paris?","Why is Paris the capital?"]}`),
	}
	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs
	e := NewEngine(search, llm, opts, newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "[INST]capital of France[/INST]", GenerateRelated: true})
	require.NoError(t, err)
	assert.Equal(t, "capital of France", a.Query)

	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(context.Background(), NewWireWriter(&buf)))

	contexts, answer, related, hasRelated := splitWire(t, buf.String())
	assert.Equal(t, parisContexts, contexts)
	assert.Equal(t, "Paris is the capital.", answer)
	require.True(t, hasRelated)
	assert.LessOrEqual(t, len(related), MaxRelatedQuestions)
	assert.Equal(t, []string{"What is the population of Paris?", "Why is Paris the capital?"}, related)

	assert.Equal(t, []string{"capital of France"}, search.queries)
	req := llm.streamReq
	assert.Equal(t, 4000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Nil(t, req.Stop)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, AnswerPrompt(parisContexts), req.Messages[0].Content)
	assert.Equal(t, "capital of France", req.Messages[1].Content)

	assert.Equal(t, []string{"stub"}, obs.searches)
	assert.Equal(t, 4, obs.tokens)
	assert.Equal(t, []string{RelatedOK}, obs.related)
}

func TestEngineAnswerWithoutRelated(t *testing.T) {
	llm := &stubLLM{tokens: []string{"ok"}}
	e := NewEngine(&stubSearch{results: parisContexts}, llm, testOptions(), newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q", GenerateRelated: false})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(context.Background(), NewWireWriter(&buf)))

	assert.NotContains(t, buf.String(), "__RELATED_QUESTIONS__")
	assert.True(t, strings.HasSuffix(buf.String(), LLMResponseMarker+"ok"))
	assert.Empty(t, llm.chatReqs)
}

func TestEngineRelatedDisabledGlobally(t *testing.T) {
	llm := &stubLLM{tokens: []string{"ok"}}
	opts := testOptions()
	opts.Related = false
	e := NewEngine(&stubSearch{results: parisContexts}, llm, opts, newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q", GenerateRelated: true})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(context.Background(), NewWireWriter(&buf)))
	assert.NotContains(t, buf.String(), "__RELATED_QUESTIONS__")
}

func TestEngineEmptyQueryAndContexts(t *testing.T) {
	search := &stubSearch{}
	llm := &stubLLM{tokens: []string{"Stan Lee."}, chatErr: errors.New("no tools")}
	e := NewEngine(search, llm, testOptions(), newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "", GenerateRelated: true})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(context.Background(), NewWireWriter(&buf)))

	assert.Equal(t, []string{DefaultQuery}, search.queries)
	want := "[]" + LLMResponseMarker + EmptyContextsNotice + "Stan Lee." + RelatedQuestionsMarker + "[]"
	assert.Equal(t, want, buf.String())
}

func TestEngineSearchError(t *testing.T) {
	searchErr := domain.NewSubSystemError("google", "search.google", domain.ErrSearchProvider, "HTTP 500")
	llm := &stubLLM{}
	e := NewEngine(&stubSearch{err: searchErr}, llm, testOptions(), newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q"})
	assert.Nil(t, a)
	assert.ErrorIs(t, err, domain.ErrSearchProvider)
	assert.Empty(t, llm.streamReq.Messages, "no completion after a failed search")
}

func TestEngineCompletionSetupError(t *testing.T) {
	llm := &stubLLM{streamErr: domain.ErrProviderUnavailable}
	e := NewEngine(&stubSearch{results: parisContexts}, llm, testOptions(), newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q", GenerateRelated: true})
	assert.Nil(t, a)
	assert.ErrorIs(t, err, domain.ErrCompletionRequest)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, domain.CodeCompletionRequest, domain.ErrorCodeOf(err))
	assert.Empty(t, llm.chatReqs, "related questions are not requested for a failed answer")
}

func TestEngineStreamBreaks(t *testing.T) {
	llm := &stubLLM{tokens: []string{"partial"}, midErr: errors.New("connection reset")}
	e := NewEngine(&stubSearch{results: parisContexts}, llm, testOptions(), newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q", GenerateRelated: false})
	require.NoError(t, err)
	var buf bytes.Buffer
	err = a.WriteTo(context.Background(), NewWireWriter(&buf))
	assert.ErrorIs(t, err, domain.ErrCompletionRequest)
	assert.True(t, strings.HasSuffix(buf.String(), "partial"))
}

func TestEngineRelatedWaitTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	llm := &stubLLM{tokens: []string{"ok"}, chatBlock: block}
	obs := &recordingObserver{}
	opts := testOptions()
	opts.RelatedWait = 20 * time.Millisecond
	opts.Observer = obs
	e := NewEngine(&stubSearch{results: parisContexts}, llm, opts, newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q", GenerateRelated: true})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(context.Background(), NewWireWriter(&buf)))

	assert.True(t, strings.HasSuffix(buf.String(), RelatedQuestionsMarker+"[]"))
	assert.Equal(t, []string{RelatedTimeout}, obs.related)
}

func TestEngineStopWords(t *testing.T) {
	llm := &stubLLM{tokens: []string{"x"}}
	opts := testOptions()
	opts.StopWords = StopWords
	e := NewEngine(&stubSearch{results: parisContexts}, llm, opts, newTestLogger())

	a, err := e.Answer(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	a.Close()
	assert.Equal(t, StopWords, llm.streamReq.Stop)
}

func TestEngineSearch(t *testing.T) {
	e := NewEngine(&stubSearch{}, &stubLLM{}, testOptions(), newTestLogger())
	got, err := e.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "stub", e.SearchBackend())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.UseStopWords = true
	cfg.Server.MaxConcurrency = 4

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 4000, opts.MaxTokens)
	assert.InDelta(t, 0.7, opts.Temperature, 1e-9)
	assert.Equal(t, StopWords, opts.StopWords)
	assert.Equal(t, 8, opts.PoolSize)
	assert.True(t, opts.Related)
	assert.True(t, opts.RelatedToolCalls, "OPENAI uses function calling by default")
	assert.Equal(t, 512, opts.RelatedMaxTokens)

	cfg.LLM.Client = config.ClientOllama
	assert.False(t, OptionsFromConfig(cfg).RelatedToolCalls)
}
