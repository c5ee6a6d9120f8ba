// Package retrieval implements the hybrid search pipeline: concurrent
// lexical + dense retrieval over routed queries, reciprocal rank fusion of
// the two rankings, cross-encoder reranking, and parent-context expansion.
// All ranking state is per-request and discarded when the search returns.
package retrieval

// Source identifies which retrieval path produced a candidate.
type Source string

const (
	// SourceLexical marks candidates from the BM25 index.
	SourceLexical Source = "lexical"
	// SourceDense marks candidates from the vector index.
	SourceDense Source = "dense"
)

// Candidate is a single scored hit from one retrieval path. Rank is 1-based
// within the routed-query list that produced it; lists from multiple routed
// queries are concatenated, so rank restarts at 1 per list.
type Candidate struct {
	// ChildID identifies the matching child chunk.
	ChildID string
	// Source is the retrieval path that produced this candidate.
	Source Source
	// Rank is the 1-based position within the originating result list.
	Rank int
	// RawScore is the path-native score (BM25 or cosine similarity).
	RawScore float64
}

// SourceRank records one list appearance of a fused candidate.
type SourceRank struct {
	// Source is the contributing retrieval path.
	Source Source `json:"source"`
	// Rank is the 1-based rank within that path's result list.
	Rank int `json:"rank"`
}

// FusedCandidate is a deduplicated candidate with its reciprocal-rank-fusion
// score summed over every list appearance.
type FusedCandidate struct {
	// ChildID identifies the child chunk.
	ChildID string `json:"child_id"`
	// FusedScore is the summed RRF contribution across all appearances.
	FusedScore float64 `json:"fused_score"`
	// ContributingRanks lists every (source, rank) appearance.
	ContributingRanks []SourceRank `json:"contributing_ranks"`
}

// bestRank returns the lowest rank across all contributing lists, used for
// deterministic tie-breaking.
func (f FusedCandidate) bestRank() int {
	best := 0
	for _, sr := range f.ContributingRanks {
		if best == 0 || sr.Rank < best {
			best = sr.Rank
		}
	}
	return best
}

// Result is one final ranked passage returned to the caller.
type Result struct {
	// ChildID identifies the winning child chunk.
	ChildID string `json:"child_id"`
	// Text is the child chunk's own text.
	Text string `json:"text"`
	// Score is the cross-encoder relevance score, or the fused score when
	// reranking degraded to passthrough.
	Score float64 `json:"score"`
	// FinalRank is the 1-based position in the final ordering.
	FinalRank int `json:"final_rank"`
	// ParentID references the enclosing parent chunk.
	ParentID string `json:"parent_id,omitempty"`
	// ParentContext is the full parent chunk text, present only when the
	// parent resolved in the document store.
	ParentContext string `json:"parent_context,omitempty"`
}

// Stats reports per-stage timing and counts for one search request.
type Stats struct {
	// RouteMS through ExpandMS are per-stage wall-clock elapsed milliseconds.
	RouteMS    int64 `json:"route_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	FuseMS     int64 `json:"fuse_ms"`
	RerankMS   int64 `json:"rerank_ms"`
	ExpandMS   int64 `json:"expand_ms"`
	// TotalMS is the end-to-end elapsed time.
	TotalMS int64 `json:"total_ms"`

	// LexicalCount and DenseCount are the candidate counts per path before
	// fusion (concatenated across routed queries).
	LexicalCount int `json:"lexical_count"`
	DenseCount   int `json:"dense_count"`
	// FusedCount is the deduplicated candidate count after fusion.
	FusedCount int `json:"fused_count"`
	// ResultCount is the number of final results returned.
	ResultCount int `json:"result_count"`

	// ExpansionDegraded is true when query expansion fell back to the raw query.
	ExpansionDegraded bool `json:"expansion_degraded"`
	// RerankDegraded is true when reranking fell back to fusion ordering.
	RerankDegraded bool `json:"rerank_degraded"`
}

// Response is the complete answer to one search request.
type Response struct {
	// Query is the raw query as received.
	Query string `json:"query"`
	// Results are the final ranked passages, possibly empty.
	Results []Result `json:"results"`
	// Stats reports per-stage timing and counts.
	Stats Stats `json:"stats"`
}
