package server

import (
	"context"
	"fmt"

	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/embedder"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// QdrantPinger probes the Qdrant-backed vector index using its native
// HealthCheck RPC. It satisfies the Pinger interface and is used by
// GET /api/ready.
type QdrantPinger struct {
	// index is the Qdrant-backed vector index to probe.
	index *vector.QdrantIndex
}

// NewQdrantPinger constructs a QdrantPinger for the given index.
func NewQdrantPinger(index *vector.QdrantIndex) *QdrantPinger {
	return &QdrantPinger{index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC through the index.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.index.Ping(ctx)
}

// StorePinger probes the document store by running a cheap listing query.
// A store that cannot answer it cannot serve search requests either.
type StorePinger struct {
	// store is the document store to probe.
	store docstore.Store
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store docstore.Store) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "sqlite" }

// Ping lists the stored documents and discards the result.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.ListDocuments(ctx); err != nil {
		return fmt.Errorf("list documents failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes an embedding backend by embedding a one-word text.
// Local backends answer this for free; remote ones bill a negligible amount,
// so readiness checks should be polled at a modest interval.
type EmbedderPinger struct {
	// embed is the embedding backend to probe.
	embed embedder.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given backend.
func NewEmbedderPinger(e embedder.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embed: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single short text and checks a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embed.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}
