package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thesearch/internal/adapter/llm"
	"thesearch/internal/adapter/search"
	"thesearch/internal/adapter/store"
	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
	"thesearch/internal/usecase/rag"
)

// app holds the components shared by serve and ask.
type app struct {
	cfg     *config.Config
	search  domain.SearchBackend
	llm     domain.StreamingLLMProvider
	store   domain.ResultStore
	engine  *rag.Engine
	closers []func() error
}

// newApp wires search, the LLM client and the engine. The result store is
// opened only when withStore is set. observer may be nil.
func newApp(ctx context.Context, cfg *config.Config, withStore bool, observer rag.Observer, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	if a.search, err = search.New(cfg.Search, log); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if a.llm, err = llm.NewProvider(cfg.LLM, log); err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	if withStore {
		s, err := store.New(ctx, cfg.Store, log)
		if err != nil {
			if !errors.Is(err, domain.ErrStoreUnavailable) {
				return nil, fmt.Errorf("store: %w", err)
			}
			// Replay is an optimisation; answer without it.
			log.Warn("result store unavailable, replay disabled", "backend", cfg.Store.Backend, "error", err)
			s = store.Noop{}
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	}

	opts := rag.OptionsFromConfig(cfg)
	opts.Observer = observer
	a.engine = rag.NewEngine(a.search, a.llm, opts, log)
	return a, nil
}

// ollama returns the Ollama provider behind any decorators, or nil.
func (a *app) ollama() *llm.OllamaProvider {
	p := a.llm
	for {
		switch v := p.(type) {
		case *llm.OllamaProvider:
			return v
		case interface {
			Unwrap() domain.StreamingLLMProvider
		}:
			p = v.Unwrap()
		default:
			return nil
		}
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
