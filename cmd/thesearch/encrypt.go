package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thesearch/internal/infra/config"
)

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a secret for use as an enc: config value",
		Long: `Encrypt a secret with THESEARCH_CONFIG_KEY. Paste the output into
config.yaml in place of the plain value, e.g. llm.openai.api_key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv("THESEARCH_CONFIG_KEY")
			if passphrase == "" {
				return fmt.Errorf("THESEARCH_CONFIG_KEY is not set")
			}
			enc, err := config.EncryptValue(args[0], passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enc:%s\n", enc)
			return nil
		},
	}
}
