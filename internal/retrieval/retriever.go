package retrieval

import (
	"context"
	"sync"

	"github.com/fathom-ai/fathom-go/internal/embedder"
	"github.com/fathom-ai/fathom-go/internal/lexical"
	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// DualRetriever fans a routed query family out to the lexical and vector
// indexes concurrently. The two paths have no data dependency and are joined
// before fusion; a failure on one path never aborts the other.
type DualRetriever struct {
	// lexical is the BM25 index for keyword retrieval.
	lexical *lexical.Index
	// vectors is the dense index searched with query embeddings.
	vectors vector.Index
	// embed converts dense queries to vectors at retrieval time.
	embed embedder.Embedder
	// topK is the per-query result limit on each path.
	topK int
}

// NewDualRetriever constructs a DualRetriever. vectors and embed may be nil,
// in which case the dense path always contributes an empty list.
func NewDualRetriever(lex *lexical.Index, vectors vector.Index, embed embedder.Embedder, topK int) *DualRetriever {
	if topK <= 0 {
		topK = 20
	}
	return &DualRetriever{
		lexical: lex,
		vectors: vectors,
		embed:   embed,
		topK:    topK,
	}
}

// Retrieve runs every lexical query against the BM25 index and every dense
// query against the vector index, the two families in parallel. Results
// within a family are concatenated with ranks restarting at 1 per query list;
// deduplication is fusion's job. Per-query failures are logged and contribute
// an empty list, so a dead embedding backend degrades search to lexical-only
// instead of failing it.
func (r *DualRetriever) Retrieve(ctx context.Context, lexicalQueries, denseQueries []string) (lexResults, denseResults []Candidate) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexResults = r.retrieveLexical(lexicalQueries)
	}()
	go func() {
		defer wg.Done()
		denseResults = r.retrieveDense(ctx, denseQueries)
	}()

	wg.Wait()
	return lexResults, denseResults
}

// retrieveLexical searches the BM25 index for each query in turn.
func (r *DualRetriever) retrieveLexical(queries []string) []Candidate {
	var out []Candidate
	for _, q := range queries {
		for i, hit := range r.lexical.Search(q, r.topK) {
			out = append(out, Candidate{
				ChildID:  hit.ChildID,
				Source:   SourceLexical,
				Rank:     i + 1,
				RawScore: hit.Score,
			})
		}
	}
	return out
}

// retrieveDense embeds each query and searches the vector index. Each
// query's embed or search failure is isolated to that query.
func (r *DualRetriever) retrieveDense(ctx context.Context, queries []string) []Candidate {
	if r.vectors == nil || r.embed == nil {
		return nil
	}
	log := logging.FromContext(ctx)

	var out []Candidate
	for _, q := range queries {
		vecs, err := r.embed.Embed(ctx, []string{q})
		if err != nil || len(vecs) == 0 {
			log.Warn("retriever: dense query embedding failed — skipping query",
				"error", err,
			)
			continue
		}

		hits, err := r.vectors.Search(ctx, vecs[0], r.topK)
		if err != nil {
			log.Warn("retriever: vector search failed — skipping query",
				"error", err,
			)
			continue
		}
		for i, hit := range hits {
			out = append(out, Candidate{
				ChildID:  hit.ChildID,
				Source:   SourceDense,
				Rank:     i + 1,
				RawScore: hit.Score,
			})
		}
	}
	return out
}
