package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/kvasir-ai/ragline/internal/completion"
	"github.com/kvasir-ai/ragline/internal/embedder"
	"github.com/kvasir-ai/ragline/internal/history"
	"github.com/kvasir-ai/ragline/internal/ingestion"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/rag"
	"github.com/kvasir-ai/ragline/internal/server"
	"github.com/kvasir-ai/ragline/internal/tracing"
	"github.com/kvasir-ai/ragline/internal/vectorstore"
)

// NewServeCmd constructs the `ragline serve` command, which starts the HTTP
// server exposing the answer and ingestion pipelines over REST.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragline HTTP server",
		Long: `Start the ragline HTTP server on localhost.

The server exposes POST /api/answer and POST /api/ingest, plus health,
readiness, and Prometheus metrics endpoints. Set RAGLINE_API_KEY to require
Bearer token authentication on the API routes.

Examples:
  ragline serve
  ragline serve --port 9090
  MODEL_PROVIDER=azure ragline serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			completer, err := completion.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("completion provider initialised", slog.String("backend", completer.Name()))

			answerPipeline, err := rag.NewPipeline(answerPipelineConfig(emb, store, completer))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			ingestPipeline, err := ingestion.NewPipeline(emb, store, ingestionConfigFromEnv())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			queryLog := openHistory(log)
			if queryLog != nil {
				defer func() { _ = queryLog.Close() }()
			}

			srv, err := server.New(answerPipeline, ingestPipeline, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     buildPingers(store, emb),
				APIKey:      os.Getenv("RAGLINE_API_KEY"),
				DefaultTopK: getEnvInt("RAG_TOP_K", 0),
				Collection:  vectorstore.Collection(),
				History:     queryLog,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// openHistory opens the query history log. RAGLINE_HISTORY_DB overrides the
// default path (~/.ragline/history.db); "disabled" turns history off.
// Returns nil when history is unavailable — serving continues without it.
func openHistory(log *slog.Logger) history.QueryLog {
	dbPath := os.Getenv("RAGLINE_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via RAGLINE_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = history.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	ql, err := history.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open log, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: log opened", slog.String("path", dbPath))
	return ql
}

// buildPingers assembles the readiness probes for the server. The store is
// probed via its native health check where it exposes one; the embedder via
// a cheap embed call. The completion backend is not probed by default since
// each probe consumes tokens on hosted providers.
func buildPingers(store rag.VectorStore, emb rag.Embedder) []server.Pinger {
	var pingers []server.Pinger

	if hc, ok := store.(interface{ Ping(ctx context.Context) error }); ok {
		pingers = append(pingers, server.NewStorePinger(hc, vectorstore.Backend()))
	}
	pingers = append(pingers, server.NewEmbedderPinger(emb, embedder.Backend()))

	return pingers
}
