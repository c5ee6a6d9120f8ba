package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fathom-ai/fathom-go/internal/chunking"
	"github.com/fathom-ai/fathom-go/internal/docstore"
)

// overlapScorer scores a passage by the number of query tokens it contains.
// Deterministic and dependency-free, standing in for a real cross-encoder.
type overlapScorer struct {
	err error
}

func (s *overlapScorer) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	terms := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(passages))
	for i, p := range passages {
		lower := strings.ToLower(p)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				scores[i]++
			}
		}
	}
	return scores, nil
}

// storeWithChildren builds a MemoryStore holding one document whose children
// have the given texts, keyed child-0, child-1, ...
func storeWithChildren(t *testing.T, texts ...string) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()

	doc := chunking.Document{ID: "doc", Title: "doc", RawText: strings.Join(texts, " ")}
	parent := chunking.ParentChunk{
		ID: "parent-0", DocumentID: "doc", Text: doc.RawText,
		StartOffset: 0, EndOffset: len(doc.RawText),
	}
	children := make([]chunking.ChildChunk, len(texts))
	for i, text := range texts {
		children[i] = chunking.ChildChunk{
			ID:       childID(i),
			ParentID: "parent-0",
			Text:     text,
		}
	}
	if err := store.PutDocument(context.Background(), doc, []chunking.ParentChunk{parent}, children); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func childID(i int) string {
	return "child-" + string(rune('0'+i))
}

// fusedList builds fused candidates for child IDs 0..n-1 with descending scores.
func fusedList(n int) []FusedCandidate {
	out := make([]FusedCandidate, n)
	for i := range out {
		out[i] = FusedCandidate{
			ChildID:           childID(i),
			FusedScore:        1.0 / float64(i+1),
			ContributingRanks: []SourceRank{{Source: SourceLexical, Rank: i + 1}},
		}
	}
	return out
}

func Test_Reranker_NeverDropsCandidates(t *testing.T) {
	t.Parallel()
	store := storeWithChildren(t, "alpha text", "beta text", "gamma text", "delta text")
	r := NewReranker(&overlapScorer{}, store, 2)

	fused := fusedList(4)
	results, degraded, err := r.Rerank(context.Background(), "gamma", fused)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if degraded {
		t.Error("successful scoring must not report degradation")
	}
	if len(results) != len(fused) {
		t.Fatalf("rerank dropped candidates: want %d, got %d", len(fused), len(results))
	}
	for i, res := range results {
		if res.FinalRank != i+1 {
			t.Errorf("result %d: want final rank %d, got %d", i, i+1, res.FinalRank)
		}
	}
}

func Test_Reranker_CrossEncoderReordersHead(t *testing.T) {
	t.Parallel()
	store := storeWithChildren(t, "nothing relevant here", "replication lag explained", "still nothing")
	r := NewReranker(&overlapScorer{}, store, 10)

	results, _, err := r.Rerank(context.Background(), "replication lag", fusedList(3))
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if results[0].ChildID != "child-1" {
		t.Errorf("cross-encoder must promote the relevant passage, got %s first", results[0].ChildID)
	}
}

func Test_Reranker_TopNBoundKeepsTailInFusionOrder(t *testing.T) {
	t.Parallel()
	// Only the top 2 fused candidates are scored; the relevant passage at
	// fusion position 3 stays outside the reranked head.
	store := storeWithChildren(t, "filler one", "filler two", "replication lag explained", "filler three")
	r := NewReranker(&overlapScorer{}, store, 2)

	results, _, err := r.Rerank(context.Background(), "replication lag", fusedList(4))
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("want 4 results, got %d", len(results))
	}
	if results[2].ChildID != "child-2" || results[3].ChildID != "child-3" {
		t.Errorf("tail beyond top-N must keep fusion order, got %s, %s",
			results[2].ChildID, results[3].ChildID)
	}
}

func Test_Reranker_ScorerFailureFallsBackToFusionOrder(t *testing.T) {
	t.Parallel()
	store := storeWithChildren(t, "first", "second", "third")
	r := NewReranker(&overlapScorer{err: errors.New("scorer down")}, store, 10)

	fused := fusedList(3)
	results, degraded, err := r.Rerank(context.Background(), "anything", fused)
	if err != nil {
		t.Fatalf("scorer failure must not error the request: %v", err)
	}
	if !degraded {
		t.Error("scorer failure must report degradation")
	}
	for i, res := range results {
		if res.ChildID != fused[i].ChildID {
			t.Errorf("position %d: fusion order must survive, want %s got %s",
				i, fused[i].ChildID, res.ChildID)
		}
		if res.Score != fused[i].FusedScore {
			t.Errorf("position %d: fused score must survive passthrough", i)
		}
	}
}

func Test_Reranker_NilScorerPassesThrough(t *testing.T) {
	t.Parallel()
	store := storeWithChildren(t, "first", "second")
	r := NewReranker(nil, store, 10)

	fused := fusedList(2)
	results, degraded, err := r.Rerank(context.Background(), "anything", fused)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if degraded {
		t.Error("absent scorer is a configuration, not a degradation")
	}
	if len(results) != 2 || results[0].ChildID != "child-0" {
		t.Errorf("fusion order must survive with no scorer: %+v", results)
	}
}

func Test_Reranker_MissingChildKeepsPlaceholder(t *testing.T) {
	t.Parallel()
	store := storeWithChildren(t, "only child")
	r := NewReranker(nil, store, 10)

	fused := []FusedCandidate{
		{ChildID: "child-0", FusedScore: 0.5},
		{ChildID: "ghost", FusedScore: 0.4},
	}
	results, _, err := r.Rerank(context.Background(), "q", fused)
	if err != nil {
		t.Fatalf("missing child must not be fatal: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[1].ChildID != "ghost" || results[1].Text != "" {
		t.Errorf("unresolvable candidate must survive with empty text: %+v", results[1])
	}
}

func Test_Reranker_EmptyInputYieldsEmptyOutput(t *testing.T) {
	t.Parallel()
	r := NewReranker(&overlapScorer{}, storeWithChildren(t, "x"), 10)

	results, degraded, err := r.Rerank(context.Background(), "q", nil)
	if err != nil || degraded || len(results) != 0 {
		t.Errorf("empty input: want (nil, false, nil), got (%v, %v, %v)", results, degraded, err)
	}
}
