package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvasir-ai/ragline/internal/history"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/vectorstore"
)

// NewHistoryCmd constructs the `ragline history` command, which prints the
// most recent answered questions from the query log.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers from the query log",
		Long: `Print the most recent questions answered through the server, with their
answers and the sources that backed them.

The log is written by 'ragline serve' unless RAGLINE_HISTORY_DB=disabled.

Examples:
  ragline history
  ragline history --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			dbPath := os.Getenv("RAGLINE_HISTORY_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("history: disabled via RAGLINE_HISTORY_DB=disabled")
			}
			if dbPath == "" {
				var err error
				dbPath, err = history.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}

			ql, err := history.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer ql.Close()

			collection := vectorstore.Collection()
			entries, err := ql.Recent(cmd.Context(), collection, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			if len(entries) == 0 {
				log.Info("history: no entries", "collection", collection, "path", dbPath)
				return nil
			}

			for _, e := range entries {
				fmt.Printf("[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Question)
				fmt.Printf("    %s\n", e.Answer)
				if len(e.Sources) > 0 {
					fmt.Printf("    sources: %s\n", strings.Join(e.Sources, ", "))
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of entries to show")

	return cmd
}
