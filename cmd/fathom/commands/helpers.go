package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fathom-ai/fathom-go/internal/crossencoder"
	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/embedder"
	"github.com/fathom-ai/fathom-go/internal/lexical"
	"github.com/fathom-ai/fathom-go/internal/provider"
	"github.com/fathom-ai/fathom-go/internal/retrieval"
	"github.com/fathom-ai/fathom-go/internal/router"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// components bundles everything a search-serving command needs: the open
// document store, the rebuilt lexical index, the optional dense-path pieces,
// and the assembled pipeline.
type components struct {
	// store is the open SQLite document store.
	store *docstore.SQLiteStore
	// lex is the in-memory BM25 index, rebuilt from the store.
	lex *lexical.Index
	// vectors is the Qdrant index; nil when Qdrant is unreachable.
	vectors *vector.QdrantIndex
	// emb is the embedding backend; nil when none is configured or reachable.
	emb embedder.Embedder
	// pipeline is the assembled five-stage search pipeline.
	pipeline *retrieval.Pipeline
	// registry holds the pipeline metrics for the /metrics endpoint.
	registry *prometheus.Registry
}

// close releases the store and vector index connections.
func (c *components) close() {
	if c.vectors != nil {
		_ = c.vectors.Close()
	}
	_ = c.store.Close()
}

// openStore opens the SQLite document store at FATHOM_DB or the default path.
func openStore(log *slog.Logger) (*docstore.SQLiteStore, error) {
	dbPath := os.Getenv("FATHOM_DB")
	if dbPath == "" {
		var err error
		dbPath, err = docstore.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	store, err := docstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	log.Info("document store opened", slog.String("path", dbPath))
	return store, nil
}

// buildDensePath constructs the embedder and Qdrant index for dense
// retrieval. Either failing is non-fatal: the engine serves lexical-only
// results and logs why.
func buildDensePath(ctx context.Context, log *slog.Logger) (embedder.Embedder, *vector.QdrantIndex) {
	if err := embedder.Validate(log); err != nil {
		log.Warn("dense path disabled: embedder misconfigured", slog.Any("error", err))
		return nil, nil
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Warn("dense path disabled: embedder unavailable", slog.Any("error", err))
		return nil, nil
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("EXPANSION_PROVIDER", "ollama"))
	vectors, err := vector.NewQdrantIndex(ctx, &vector.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "fathom-chunks"),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		log.Warn("dense path disabled: qdrant unreachable", slog.Any("error", err))
		return emb, nil
	}
	log.Info("qdrant index ready",
		slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
		slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "fathom-chunks")),
	)
	return emb, vectors
}

// buildRouter constructs the query-expansion router. A missing or
// misconfigured LLM backend is non-fatal: expansion degrades to the raw query.
func buildRouter(ctx context.Context, log *slog.Logger) *router.Router {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		log.Warn("query expansion disabled: LLM provider unavailable", slog.Any("error", err))
		return nil
	}
	timeout := router.DefaultTimeout
	if ms := getEnvInt("EXPANSION_TIMEOUT_MS", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	log.Info("query expansion enabled", slog.String("provider", getEnvOrDefault("EXPANSION_PROVIDER", "ollama")))
	return router.New(chatModel, timeout)
}

// buildScorer constructs the cross-encoder scorer when RERANKER_ENDPOINT is
// set. Without an endpoint the reranker passes fused ordering through.
func buildScorer(log *slog.Logger) crossencoder.Scorer {
	endpoint := os.Getenv("RERANKER_ENDPOINT")
	if endpoint == "" {
		log.Info("cross-encoder reranking disabled", slog.String("reason", "RERANKER_ENDPOINT not set"))
		return nil
	}
	scorer, err := crossencoder.NewHTTPScorer(&crossencoder.Config{
		Endpoint: endpoint,
		Model:    os.Getenv("RERANKER_MODEL"),
		APIKey:   os.Getenv("RERANKER_API_KEY"),
	})
	if err != nil {
		log.Warn("cross-encoder reranking disabled", slog.Any("error", err))
		return nil
	}
	log.Info("cross-encoder reranking enabled", slog.String("endpoint", endpoint))
	return scorer
}

// buildSearchComponents assembles the full search stack: open the store,
// rebuild the lexical index from it, attach whatever optional backends are
// reachable, and wire the retrieval pipeline.
func buildSearchComponents(ctx context.Context, log *slog.Logger) (*components, error) {
	store, err := openStore(log)
	if err != nil {
		return nil, err
	}

	// The lexical index is a disposable derived artifact: rebuild it from
	// the store on every startup.
	children, err := store.AllChildren(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("rebuild lexical index: %w", err)
	}
	lex := lexical.New()
	lex.Add(children)
	log.Info("lexical index rebuilt", slog.Int("children", len(children)))

	emb, vectors := buildDensePath(ctx, log)
	rt := buildRouter(ctx, log)
	scorer := buildScorer(log)

	var vecIndex vector.Index
	if vectors != nil {
		vecIndex = vectors
	}

	registry := prometheus.NewRegistry()
	pipeline, err := retrieval.NewPipeline(retrieval.PipelineConfig{
		Router:    rt,
		Retriever: retrieval.NewDualRetriever(lex, vecIndex, emb, getEnvInt("RETRIEVAL_TOP_K", 0)),
		Reranker:  retrieval.NewReranker(scorer, store, getEnvInt("RETRIEVAL_RERANK_TOP_N", 0)),
		Store:     store,
		Metrics:   retrieval.NewMetrics(registry),
		RRFK:      getEnvInt("RETRIEVAL_RRF_K", 0),
		Timeout:   time.Duration(getEnvInt("RETRIEVAL_TIMEOUT_MS", 0)) * time.Millisecond,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("assemble pipeline: %w", err)
	}

	return &components{
		store:    store,
		lex:      lex,
		vectors:  vectors,
		emb:      emb,
		pipeline: pipeline,
		registry: registry,
	}, nil
}

// getEnvOrDefault returns the env var value or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
