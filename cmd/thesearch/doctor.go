package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thesearch/internal/adapter/llm"
	"thesearch/internal/adapter/search"
	"thesearch/internal/adapter/store"
	"thesearch/internal/infra/config"
	"thesearch/internal/usecase/rag"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

const doctorCheckTimeout = 20 * time.Second

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on config, search backend, LLM and store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), opts.configPath, cmd.OutOrStdout())
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, cfgPath string, w io.Writer) error {
	// Try to load config; later checks are skipped without it.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Search backend", Fn: checkSearchBackend},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity},
		{Name: "Result store", Fn: checkResultStore},
	}

	fmt.Fprintln(w, "thesearch doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, doctorCheckTimeout)
		result := check.Fn(checkCtx, cfg)
		cancel()
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
}

// doctorLogger discards component logs so only the report is printed.
func doctorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// checkConfigFile verifies the config loads. A missing file is only a
// warning because defaults plus environment variables are enough to run.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and the environment variables for the selected SEARCH_BACKEND and CLIENT",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkSearchBackend runs one real query against the configured backend.
func checkSearchBackend(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	backend, err := search.New(cfg.Search, doctorLogger())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}

	start := time.Now()
	results, err := backend.Search(ctx, rag.DefaultQuery)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s search failed: %v", backend.Name(), err),
			Fix:     "Check the API key and quota for the selected SEARCH_BACKEND",
		}
	}
	if len(results) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s returned no results (latency: %dms)", backend.Name(), latency.Milliseconds()),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s returned %d results (latency: %dms)", backend.Name(), len(results), latency.Milliseconds()),
	}
}

// checkLLMConnectivity tests if the selected LLM endpoint is reachable and,
// for Ollama, whether the model has been pulled.
func checkLLMConnectivity(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	pc, ok := cfg.LLM.Provider()
	if !ok {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("unknown CLIENT %q", cfg.LLM.Client)}
	}

	if cfg.LLM.Client == config.ClientOllama {
		o := llm.NewOllamaProvider(pc, llm.NewHTTPClient(pc), doctorLogger())
		has, err := o.HasModel(ctx)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("ollama not reachable at %s: %v", pc.BaseURL, err),
				Fix:     "Start ollama (ollama serve) or set OLLAMA_HOST",
			}
		}
		if !has {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("model %q not pulled", o.Model()),
				Fix:     fmt.Sprintf("Run: ollama pull %s", o.Model()),
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("ollama ready with %s", o.Model())}
	}

	endpoint := strings.TrimRight(pc.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	if pc.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+pc.APIKey)
	}

	start := time.Now()
	resp, err := llm.NewHTTPClient(pc).Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and the base URL",
		}
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s rejected the API key (status %d)", cfg.LLM.Client, resp.StatusCode),
			Fix:     "Check the API key for the selected CLIENT",
		}
	case resp.StatusCode >= 400:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s reachable but /models returned %d (latency: %dms)", cfg.LLM.Client, resp.StatusCode, latency.Milliseconds()),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable with model %s (latency: %dms)", cfg.LLM.Client, pc.Model, latency.Milliseconds()),
	}
}

// checkResultStore opens the configured store and pings it when possible.
func checkResultStore(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	s, err := store.New(ctx, cfg.Store, doctorLogger())
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s store unavailable: %v", cfg.Store.Backend, err),
			Fix:     "Answers are still served; only search_uuid replay is lost",
		}
	}
	defer s.Close()

	if p, ok := s.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("%s store ping failed: %v", cfg.Store.Backend, err)}
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s store ready (ttl %s)", cfg.Store.Backend, cfg.Store.TTL)}
}
