package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index using brute-force cosine similarity.
// It backs tests and single-node setups where running Qdrant is overkill.
type MemoryIndex struct {
	// mu guards points. Searches take the read lock.
	mu sync.RWMutex

	// points holds all stored points keyed by child ID.
	points map[string]Point

	// order records insertion order of child IDs for deterministic
	// tie-breaking when scores are equal.
	order []string
}

// NewMemoryIndex constructs an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

// Upsert stores or replaces the given points.
func (ix *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, p := range points {
		if _, exists := ix.points[p.ChildID]; !exists {
			ix.order = append(ix.order, p.ChildID)
		}
		ix.points[p.ChildID] = p
	}
	return nil
}

// Search returns the top-k points by cosine similarity to queryVector,
// ordered by descending score with ties broken by insertion order.
func (ix *MemoryIndex) Search(_ context.Context, queryVector []float32, k int) ([]Hit, error) {
	if k <= 0 || len(queryVector) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]Hit, 0, len(ix.order))
	ranks := make(map[string]int, len(ix.order))
	for i, id := range ix.order {
		ranks[id] = i
		p := ix.points[id]
		if len(p.Vector) != len(queryVector) {
			continue
		}
		hits = append(hits, Hit{ChildID: id, Score: cosine(queryVector, p.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return ranks[hits[i].ChildID] < ranks[hits[j].ChildID]
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes points by their child IDs. Unknown IDs are ignored.
func (ix *MemoryIndex) Delete(_ context.Context, childIDs []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, id := range childIDs {
		if _, exists := ix.points[id]; !exists {
			continue
		}
		delete(ix.points, id)
		for i, o := range ix.order {
			if o == id {
				ix.order = append(ix.order[:i], ix.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Len returns the number of stored points.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

// Close is a no-op for the in-memory index.
func (ix *MemoryIndex) Close() error {
	return nil
}

// cosine computes the cosine similarity of two equal-length vectors.
// A zero vector yields similarity 0.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
