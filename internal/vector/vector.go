// Package vector defines the nearest-neighbour index used for dense
// retrieval over child-chunk embeddings. Concrete implementations (Qdrant,
// in-memory) satisfy the Index interface so the retrieval layer never
// depends on a specific backend.
package vector

import (
	"context"
)

// Point is a child chunk embedding to store in the index. The text is kept
// alongside the vector so dense hits can be displayed without a second
// lookup when the document store is unavailable.
type Point struct {
	// ChildID is the unique child chunk identifier (a UUID).
	ChildID string
	// ParentID references the enclosing parent chunk.
	ParentID string
	// Text is the child chunk content.
	Text string
	// Vector is the embedding for Text.
	Vector []float32
}

// Hit is a single scored result from a similarity search.
type Hit struct {
	// ChildID identifies the matching child chunk.
	ChildID string
	// Score is the cosine similarity to the query vector (higher is better).
	Score float64
}

// Index is the interface for persisting and searching child-chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Upsert stores or updates a batch of embedded points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the top-k nearest points to the query embedding by
	// cosine similarity, ordered by descending score.
	Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error)

	// Delete removes points by their child IDs.
	Delete(ctx context.Context, childIDs []string) error

	// Close releases any resources held by the index.
	Close() error
}
