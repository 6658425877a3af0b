package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvasir-ai/ragline/internal/completion"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/server"
)

// NewStatusCmd constructs the `ragline status` command, which probes every
// configured backend and reports reachability.
func NewStatusCmd() *cobra.Command {
	var probeLLM bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check reachability of the configured backends",
		Long: `Probe the vector store and embedding backend and report the result of
each check. The completion backend is only probed with --llm, since that
probe consumes tokens on hosted providers.

Examples:
  ragline status
  ragline status --llm
  VECTOR_STORE=pgvector ragline status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer store.Close()

			pingers := buildPingers(store, emb)

			if probeLLM {
				completer, err := completion.NewFromEnv(ctx)
				if err != nil {
					return fmt.Errorf("status: failed to initialise model provider: %w", err)
				}
				pingers = append(pingers, server.NewCompleterPinger(completer, completer.Name()))
			}

			failed := 0
			for _, p := range pingers {
				probeCtx, cancel := context.WithTimeout(ctx, timeout)
				err := p.Ping(probeCtx)
				cancel()

				if err != nil {
					failed++
					fmt.Printf("  %-12s FAIL  %v\n", p.Name(), err)
				} else {
					fmt.Printf("  %-12s OK\n", p.Name())
				}
			}

			if failed > 0 {
				return fmt.Errorf("status: %d of %d checks failed", failed, len(pingers))
			}
			fmt.Println("all backends reachable")
			return nil
		},
	}

	cmd.Flags().BoolVar(&probeLLM, "llm", false, "Also probe the completion backend (consumes tokens)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-probe timeout")

	return cmd
}
