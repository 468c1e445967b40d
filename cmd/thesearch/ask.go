package main

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
	"thesearch/internal/infra/logger"
	"thesearch/internal/usecase/rag"
)

const askWrapWidth = 100

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleIndex   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted   = lipgloss.NewStyle().Faint(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	citationPattern = regexp.MustCompile(`\[citation:(\d+)\]`)
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var noRelated, raw bool

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one question in the terminal",
		Long: `Run a single query in process and print the answer with its sources.

Examples:
  thesearch ask "what is the capital of France?"
  thesearch ask --no-related "who wrote Dune?"
  thesearch ask --raw "golang generics" > answer.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), opts, strings.Join(args, " "), !noRelated, raw, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&noRelated, "no-related", false, "skip related questions")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw wire stream instead of rendering")
	return cmd
}

func runAsk(ctx context.Context, opts *rootOptions, query string, related, raw bool, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// Keep stdout for the answer.
	cfg.Logger.Output = "stderr"
	if cfg.Logger.Level == "info" {
		cfg.Logger.Level = "warn"
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	a, err := newApp(ctx, cfg, false, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.engine.Answer(ctx, rag.Query{Text: query, GenerateRelated: related})
	if err != nil {
		return err
	}

	if raw {
		if err := answer.WriteTo(ctx, rag.NewWireWriter(out)); err != nil {
			return err
		}
		_, err := io.WriteString(out, "\n")
		return err
	}

	var t terminalAnswer
	if err := answer.WriteTo(ctx, &t); err != nil {
		return err
	}
	return t.render(out, askWrapWidth)
}

// terminalAnswer collects an answer for rendering once it is complete.
type terminalAnswer struct {
	contexts []domain.SearchResult
	answer   strings.Builder
	related  []string
}

func (t *terminalAnswer) WriteContexts(contexts []domain.SearchResult) error {
	t.contexts = contexts
	return nil
}

func (t *terminalAnswer) WriteToken(token string) error {
	t.answer.WriteString(token)
	return nil
}

func (t *terminalAnswer) WriteRelated(questions []string) error {
	t.related = questions
	return nil
}

// render prints the answer as Markdown followed by sources and related
// questions. Citation tags become plain [n] references.
func (t *terminalAnswer) render(w io.Writer, width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	if len(t.contexts) == 0 {
		fmt.Fprintln(w, styleWarning.Render(strings.TrimSpace(rag.EmptyContextsNotice)))
	}

	body := citationPattern.ReplaceAllString(t.answer.String(), "[$1]")
	rendered, err := r.Render(body)
	if err != nil {
		return fmt.Errorf("render answer: %w", err)
	}
	fmt.Fprint(w, rendered)

	if len(t.contexts) > 0 {
		fmt.Fprintln(w, styleHeading.Render("Sources"))
		for i, c := range t.contexts {
			fmt.Fprintf(w, "  %s %s\n      %s\n", styleIndex.Render(fmt.Sprintf("[%d]", i+1)), c.Name, styleMuted.Render(c.URL))
		}
	}
	if len(t.related) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styleHeading.Render("Related"))
		for _, q := range t.related {
			fmt.Fprintf(w, "  %s %s\n", styleIndex.Render("•"), q)
		}
	}
	return nil
}
