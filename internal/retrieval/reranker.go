package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fathom-ai/fathom-go/internal/crossencoder"
	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/logging"
)

// DefaultRerankTopN bounds how many fused candidates are scored by the
// cross-encoder per request. Candidates beyond the bound keep their fusion
// ordering behind the reranked head.
const DefaultRerankTopN = 30

// Reranker re-scores fused candidates against the raw query with a
// cross-encoder. A nil scorer, or any scorer failure, degrades to the fusion
// ordering — reranking can improve the final order but never lose results.
type Reranker struct {
	// scorer is the cross-encoder backend, or nil to always pass through.
	scorer crossencoder.Scorer
	// store resolves candidate child IDs to their texts.
	store docstore.Store
	// topN bounds the number of candidates sent to the scorer.
	topN int
}

// NewReranker constructs a Reranker. scorer may be nil; topN <= 0 selects
// DefaultRerankTopN.
func NewReranker(scorer crossencoder.Scorer, store docstore.Store, topN int) *Reranker {
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	return &Reranker{scorer: scorer, store: store, topN: topN}
}

// Rerank hydrates every fused candidate with its child text and re-scores
// the top-N with the cross-encoder; candidates beyond the bound retain their
// fusion order behind the reranked head. The output always has exactly one
// result per input candidate. degraded reports whether the cross-encoder
// ordering was used (false) or the fusion ordering survived (true).
//
// Store lookup failures other than not-found are fatal: without the document
// store there is no meaningful result to return.
func (r *Reranker) Rerank(ctx context.Context, rawQuery string, fused []FusedCandidate) (results []Result, degraded bool, err error) {
	if len(fused) == 0 {
		return nil, false, nil
	}

	results = make([]Result, 0, len(fused))
	for _, f := range fused {
		child, err := r.store.GetChild(ctx, f.ChildID)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return nil, false, fmt.Errorf("retrieval: hydrate candidate %s: %w", f.ChildID, err)
		}
		// A candidate missing from the store keeps its fused score and an
		// empty text; the indexes may briefly lead the store during ingestion.
		results = append(results, Result{
			ChildID:  f.ChildID,
			Text:     child.Text,
			ParentID: child.ParentID,
			Score:    f.FusedScore,
		})
	}

	scored := r.scoreHead(ctx, rawQuery, results)
	if !scored {
		degraded = r.scorer != nil
	}

	for i := range results {
		results[i].FinalRank = i + 1
	}
	return results, degraded, nil
}

// scoreHead cross-encodes the top-N results in place and sorts the head by
// descending score. Returns false when scoring was skipped or failed.
func (r *Reranker) scoreHead(ctx context.Context, rawQuery string, results []Result) bool {
	if r.scorer == nil {
		return false
	}

	n := r.topN
	if n > len(results) {
		n = len(results)
	}
	head := results[:n]

	passages := make([]string, len(head))
	for i, res := range head {
		passages[i] = res.Text
	}

	scores, err := r.scorer.Score(ctx, rawQuery, passages)
	if err != nil || len(scores) != len(head) {
		logging.FromContext(ctx).Warn("reranker: cross-encoder scoring failed — keeping fusion order",
			"error", err,
			"candidates", len(head),
		)
		return false
	}

	for i := range head {
		head[i].Score = scores[i]
	}
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].Score > head[j].Score
	})
	return true
}
