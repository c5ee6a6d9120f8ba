// Package commands defines all Cobra CLI commands for the fathom binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/fathom-ai/fathom-go/internal/audit"
	"github.com/fathom-ai/fathom-go/internal/config"
	"github.com/fathom-ai/fathom-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fathom",
		Short: "Fathom — hybrid lexical + semantic search over your documents",
		Long: `Fathom is a local-first hybrid retrieval engine.

It ingests plain-text and markdown documents into parent/child chunks,
indexes the children in a BM25 lexical index and a Qdrant vector index,
and answers queries by fusing both retrieval paths with Reciprocal Rank
Fusion, optionally refined by an LLM query router and a cross-encoder
reranker.

Backends are selected via environment variables or a YAML config file
(~/.fathom/config.yaml). See 'fathom --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.fathom/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewSearchCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
