// Package rag turns a query into a streamed, cited answer: search, prompt,
// stream the completion, and optionally suggest related questions.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
	"thesearch/internal/infra/logger"
	"thesearch/internal/infra/tracer"
)

// StopWords end the answer early on common model sign-offs. They are sent
// only when Options.StopWords is set from llm.use_stop_words.
var StopWords = []string{"<|im_end|>", "[End]", "[end]", "\nReferences:\n", "\nSources:\n", "End."}

// Query is one question to answer.
type Query struct {
	Text            string
	GenerateRelated bool
}

// Options tunes an Engine.
type Options struct {
	MaxTokens          int
	Temperature        float64
	StopWords          []string
	ContextTokenBudget int

	Related          bool
	RelatedToolCalls bool
	RelatedMaxTokens int
	RelatedTimeout   time.Duration
	RelatedWait      time.Duration
	PoolSize         int

	Counter  TokenCounter
	Observer Observer
}

// OptionsFromConfig maps the loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		MaxTokens:          cfg.LLM.MaxTokens,
		Temperature:        cfg.LLM.Temperature,
		ContextTokenBudget: cfg.LLM.ContextTokenBudget,
		Related:            cfg.Related.Enabled,
		RelatedToolCalls:   cfg.Related.UseToolCalls(cfg.LLM.Client),
		RelatedMaxTokens:   cfg.Related.MaxTokens,
		RelatedTimeout:     cfg.Related.Timeout,
		RelatedWait:        cfg.Related.WaitTimeout,
		PoolSize:           2 * cfg.Server.MaxConcurrency,
	}
	if cfg.LLM.UseStopWords {
		opts.StopWords = StopWords
	}
	return opts
}

// Engine answers queries. It is safe for concurrent use.
type Engine struct {
	search   domain.SearchBackend
	llm      domain.StreamingLLMProvider
	related  *RelatedGenerator
	pool     *Pool
	opts     Options
	counter  TokenCounter
	observer Observer
	logger   *slog.Logger
}

// NewEngine wires an engine. Zero options take the documented defaults.
func NewEngine(search domain.SearchBackend, llm domain.StreamingLLMProvider, opts Options, log *slog.Logger) *Engine {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.RelatedTimeout <= 0 {
		opts.RelatedTimeout = 60 * time.Second
	}
	if opts.RelatedWait <= 0 {
		opts.RelatedWait = 30 * time.Second
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 32
	}

	e := &Engine{
		search:   search,
		llm:      llm,
		pool:     NewPool(opts.PoolSize, log),
		opts:     opts,
		counter:  opts.Counter,
		observer: opts.Observer,
		logger:   log,
	}
	if e.counter == nil {
		model := ""
		if m, ok := llm.(interface{ Model() string }); ok {
			model = m.Model()
		}
		e.counter = NewTokenCounter(model, log)
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if opts.Related {
		e.related = NewRelatedGenerator(llm, opts.RelatedToolCalls, opts.RelatedMaxTokens, log)
	}
	return e
}

// Search runs only the search step for q and returns the contexts that
// would be cited.
func (e *Engine) Search(ctx context.Context, q string) ([]domain.SearchResult, error) {
	query := NormalizeQuery(q)
	start := time.Now()
	contexts, err := e.search.Search(ctx, query)
	e.observer.ObserveSearch(e.search.Name(), time.Since(start), err)
	if err != nil {
		return nil, domain.WrapOp("rag.search", err)
	}
	if contexts == nil {
		contexts = []domain.SearchResult{}
	}
	return contexts, nil
}

// Answer searches, builds the prompt, and opens the answer stream. The
// returned Answer must be consumed with WriteTo or released with Close.
//
// Errors wrap domain.ErrSearchProvider when the search failed and
// domain.ErrCompletionRequest when the stream could not be opened. No
// output has been produced in either case.
func (e *Engine) Answer(ctx context.Context, q Query) (*Answer, error) {
	query := NormalizeQuery(q.Text)
	log := logger.FromContext(ctx, e.logger)

	ctx, span := tracer.StartSpan(ctx, "rag.answer",
		trace.WithAttributes(
			tracer.StringAttr("rag.backend", e.search.Name()),
			tracer.StringAttr("llm.provider", e.llm.Name()),
			tracer.BoolAttr("rag.related", q.GenerateRelated),
		),
	)
	defer span.End()

	contexts, err := e.Search(ctx, query)
	if err != nil {
		tracer.RecordError(span, err)
		log.Error("search failed", "backend", e.search.Name(), "error", err)
		return nil, err
	}
	found := len(contexts)
	contexts = FitContexts(contexts, e.opts.ContextTokenBudget, e.counter)
	if len(contexts) < found {
		log.Debug("contexts trimmed to token budget", "found", found, "kept", len(contexts), "budget", e.opts.ContextTokenBudget)
	}
	span.SetAttributes(tracer.IntAttr("rag.contexts", len(contexts)))

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := e.llm.ChatStream(streamCtx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: AnswerPrompt(contexts)},
			{Role: domain.RoleUser, Content: query},
		},
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
		Stop:        e.opts.StopWords,
	})
	if err != nil {
		cancel()
		err = fmt.Errorf("%w: %w", domain.ErrCompletionRequest, err)
		tracer.RecordError(span, err)
		log.Error("completion request failed", "provider", e.llm.Name(), "error", err)
		return nil, err
	}

	a := &Answer{
		Query:    query,
		Contexts: contexts,
		stream:   stream,
		cancel:   cancel,
		wait:     e.opts.RelatedWait,
		observer: e.observer,
		logger:   log,
	}
	if q.GenerateRelated && e.related != nil {
		a.related = e.submitRelated(ctx, query, contexts)
	}
	tracer.SetOK(span)
	return a, nil
}

// submitRelated starts related-question generation in the background. The
// task outlives a client disconnect so a finished answer can still be
// stored, but never runs past the related timeout.
func (e *Engine) submitRelated(ctx context.Context, query string, contexts []domain.SearchResult) *Future[[]string] {
	detached := context.WithoutCancel(ctx)
	return Submit(detached, e.pool, func(context.Context) ([]string, error) {
		taskCtx, cancel := context.WithTimeout(detached, e.opts.RelatedTimeout)
		defer cancel()
		return e.related.Generate(taskCtx, query, contexts)
	})
}

// Drain waits for background related-question tasks to finish.
func (e *Engine) Drain(ctx context.Context) error { return e.pool.Drain(ctx) }

// SearchBackend reports the configured search backend name.
func (e *Engine) SearchBackend() string { return e.search.Name() }

// Answer is an opened answer stream plus its pending related questions.
type Answer struct {
	Query    string
	Contexts []domain.SearchResult

	stream   <-chan domain.StreamDelta
	cancel   context.CancelFunc
	related  *Future[[]string]
	wait     time.Duration
	observer Observer
	logger   *slog.Logger
}

// WriteTo emits the answer to w section by section. It returns an error
// wrapping domain.ErrCompletionRequest when the stream broke midway, or the
// first error returned by w.
func (a *Answer) WriteTo(ctx context.Context, w StreamWriter) error {
	defer a.cancel()

	if err := w.WriteContexts(a.Contexts); err != nil {
		return err
	}

	chunks := 0
	defer func() { a.observer.ObserveTokens(chunks) }()

	for done := false; !done; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-a.stream:
			if !ok {
				done = true
				break
			}
			if d.Err != nil {
				a.logger.Error("answer stream broke", "error", d.Err, "chunks", chunks)
				return fmt.Errorf("%w: %w", domain.ErrCompletionRequest, d.Err)
			}
			if d.Content == "" {
				continue
			}
			chunks++
			if err := w.WriteToken(d.Content); err != nil {
				return err
			}
		}
	}

	if a.related == nil {
		return nil
	}
	return w.WriteRelated(a.RelatedQuestions(ctx))
}

// RelatedQuestions waits for the related questions. Failures and timeouts
// are logged and yield an empty list.
func (a *Answer) RelatedQuestions(ctx context.Context) []string {
	if a.related == nil {
		return []string{}
	}
	questions, err := a.related.Wait(ctx, a.wait)
	switch {
	case err == nil:
		a.observer.ObserveRelated(RelatedOK)
	case errors.Is(err, domain.ErrTimeout):
		a.observer.ObserveRelated(RelatedTimeout)
		a.logger.Warn("related questions timed out", "wait", a.wait)
	default:
		a.observer.ObserveRelated(RelatedError)
		a.logger.Warn("related questions failed", "error", err)
	}
	if questions == nil {
		questions = []string{}
	}
	return questions
}

// Close releases the upstream stream without consuming it.
func (a *Answer) Close() { a.cancel() }
