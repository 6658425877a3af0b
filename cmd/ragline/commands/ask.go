package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvasir-ai/ragline/internal/completion"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/rag"
)

// NewAskCmd constructs the `ragline ask` command, which answers a single
// question against the ingested corpus and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var topK int
	var filter map[string]string
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the ingested documents",
		Long: `Embed the question, retrieve the closest chunks from the vector store,
and generate an answer grounded in that context.

Examples:
  ragline ask "how long should the stock simmer?"
  ragline ask --top-k 8 "what temperature for roasting vegetables?"
  ragline ask --filter doc_type=recipe "how do I thicken a sauce?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			completer, err := completion.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			pipeline, err := rag.NewPipeline(answerPipelineConfig(emb, store, completer))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			result, err := pipeline.Answer(ctx, &rag.AnswerRequest{
				Question: args[0],
				TopK:     topK,
				Filter:   rag.Filter(filter),
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(result.AnswerText)

			if showSources {
				fmt.Fprintln(os.Stderr, "\nSources:")
				for _, m := range result.Matches {
					fmt.Fprintf(os.Stderr, "  %.3f  %s\n", m.Score, m.Metadata["source"])
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve")
	cmd.Flags().StringToStringVarP(&filter, "filter", "f", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print retrieved sources and scores to stderr")

	return cmd
}
