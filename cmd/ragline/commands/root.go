// Package commands defines all Cobra CLI commands for the ragline binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/kvasir-ai/ragline/internal/audit"
	"github.com/kvasir-ai/ragline/internal/config"
	"github.com/kvasir-ai/ragline/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragline",
		Short: "ragline — retrieval-augmented question answering over your documents",
		Long: `ragline ingests documents into a vector store and answers questions
against them using retrieval-augmented generation.

Documents are chunked, embedded, and upserted into Qdrant, pgvector, or an
in-memory store. Questions are embedded, matched against the store, and
answered by an LLM grounded in the retrieved context.

Providers are selected via environment variables (MODEL_PROVIDER,
EMBEDDING_PROVIDER, VECTOR_STORE) or a YAML config file
(~/.ragline/config.yaml). See 'ragline --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragline/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewStatusCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
