package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

func TestTerminalAnswerRender(t *testing.T) {
	var ta terminalAnswer
	require.NoError(t, ta.WriteContexts([]domain.SearchResult{
		{Name: "Paris - Wikipedia", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital of France."},
	}))
	require.NoError(t, ta.WriteToken("Paris is the capital "))
	require.NoError(t, ta.WriteToken("of France [citation:1]."))
	require.NoError(t, ta.WriteRelated([]string{"How old is Paris?"}))

	var out bytes.Buffer
	require.NoError(t, ta.render(&out, 80))

	got := out.String()
	assert.Contains(t, got, "capital")
	assert.Contains(t, got, "[1]")
	assert.NotContains(t, got, "[citation:1]")
	assert.Contains(t, got, "Sources")
	assert.Contains(t, got, "https://en.wikipedia.org/wiki/Paris")
	assert.Contains(t, got, "How old is Paris?")
}

func TestTerminalAnswerRenderWithoutContexts(t *testing.T) {
	var ta terminalAnswer
	require.NoError(t, ta.WriteContexts(nil))
	require.NoError(t, ta.WriteToken("Nobody knows."))

	var out bytes.Buffer
	require.NoError(t, ta.render(&out, 80))
	assert.Contains(t, out.String(), "grain of salt")
	assert.NotContains(t, out.String(), "Sources")
}

func TestNewSchedulerPurgesSQLite(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.LLM.OpenAI.APIKey = "sk-test"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "results.db")

	a, err := newApp(context.Background(), cfg, true, nil, log)
	require.NoError(t, err)
	defer a.Close()

	s, err := newScheduler(cfg, a, log)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	cfg.Store.SQLite.PurgeSchedule = "not a schedule"
	_, err = newScheduler(cfg, a, log)
	assert.Error(t, err)
}

func TestNewSchedulerSkipsStoresWithoutPurge(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.LLM.OpenAI.APIKey = "sk-test"

	a, err := newApp(context.Background(), cfg, true, nil, log)
	require.NoError(t, err)
	defer a.Close()

	s, err := newScheduler(cfg, a, log)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestAppFindsOllamaBehindBreaker(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.LLM.Client = config.ClientOllama
	cfg.LLM.Ollama.Model = "llama3"
	cfg.LLM.CircuitBreaker.Enabled = true

	a, err := newApp(context.Background(), cfg, false, nil, log)
	require.NoError(t, err)
	require.NotNil(t, a.ollama())
	assert.Equal(t, "llama3", a.ollama().Model())

	cfg.LLM.Client = config.ClientOpenAI
	a, err = newApp(context.Background(), cfg, false, nil, log)
	require.NoError(t, err)
	assert.Nil(t, a.ollama())
}
