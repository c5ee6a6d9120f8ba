package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/server"
	"github.com/fathom-ai/fathom-go/internal/tracing"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// NewServeCmd constructs the `fathom serve` command, which starts the HTTP
// server exposing the search pipeline over REST.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fathom HTTP search server",
		Long: `Start the fathom HTTP server on localhost.

The server exposes POST /api/search over the same pipeline the CLI uses,
plus GET /api/documents, liveness and readiness probes, and a Prometheus
/metrics endpoint covering both HTTP traffic and the per-stage pipeline
timings.

Examples:
  fathom serve
  fathom serve --port 9090
  FATHOM_API_KEY=sekrit fathom serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			comps, err := buildSearchComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer comps.close()

			pingers := []server.Pinger{server.NewStorePinger(comps.store)}
			if comps.vectors != nil {
				pingers = append(pingers, server.NewQdrantPinger(comps.vectors))
			}
			if comps.emb != nil {
				embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("EXPANSION_PROVIDER", "ollama"))
				pingers = append(pingers, server.NewEmbedderPinger(comps.emb, embBackend))
			}

			if host == "" {
				host = getEnvOrDefault("SERVER_HOST", "127.0.0.1")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 8080)
			}

			var vecIndex vector.Index
			if comps.vectors != nil {
				vecIndex = comps.vectors
			}
			srv, err := server.New(comps.pipeline, comps.store, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   os.Getenv("FATHOM_API_KEY"),
				Vectors:  vecIndex,
				Registry: comps.registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: 8080)")

	return cmd
}
