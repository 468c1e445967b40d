package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "thesearch",
		Short: "Answer questions from live web search with a chat model",
		Long: `thesearch searches the web for a question, hands the results to a chat
model as numbered citations and streams the answer back.

Examples:
  thesearch                               # Serve HTTP on server.addr
  thesearch ask "who wrote Dune?"         # Answer one question in the terminal
  thesearch doctor                        # Check backends and keys
  THESEARCH_CONFIG_KEY=... thesearch encrypt sk-...`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(),
		"config file (env THESEARCH_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newDoctorCmd(opts),
		newEncryptCmd(),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("THESEARCH_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
