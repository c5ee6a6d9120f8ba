package lexical

import (
	"testing"

	"github.com/fathom-ai/fathom-go/internal/chunking"
)

// chunk builds a ChildChunk with the given id and text.
func chunk(id, text string) chunking.ChildChunk {
	return chunking.ChildChunk{ID: id, ParentID: "parent-" + id, Text: text}
}

func Test_Index_EmptyIndexReturnsNoHits(t *testing.T) {
	t.Parallel()
	ix := New()

	if hits := ix.Search("anything at all", 10); len(hits) != 0 {
		t.Errorf("empty index: want no hits, got %d", len(hits))
	}
}

func Test_Index_MatchingTermRanksAboveUnrelated(t *testing.T) {
	t.Parallel()
	ix := New()
	ix.Add([]chunking.ChildChunk{
		chunk("a", "The billing service retries failed charges nightly."),
		chunk("b", "Kubernetes pods are scheduled across worker nodes."),
		chunk("c", "Charges that fail twice are escalated to billing support."),
	})

	hits := ix.Search("billing charges", 10)
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.ChildID == "b" {
			t.Error("unrelated chunk must not match")
		}
		if h.Score <= 0 {
			t.Errorf("hit %s: want positive score, got %f", h.ChildID, h.Score)
		}
	}
}

func Test_Index_TermFrequencyAffectsRanking(t *testing.T) {
	t.Parallel()
	ix := New()
	ix.Add([]chunking.ChildChunk{
		chunk("once", "replication is mentioned here amid many other unrelated words entirely"),
		chunk("twice", "replication settings control replication behaviour across zones today"),
	})

	hits := ix.Search("replication", 10)
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %d", len(hits))
	}
	if hits[0].ChildID != "twice" {
		t.Errorf("higher term frequency should rank first, got %s", hits[0].ChildID)
	}
}

func Test_Index_TiesBrokenByInsertionOrder(t *testing.T) {
	t.Parallel()
	ix := New()
	// Identical texts produce identical scores; insertion order decides.
	ix.Add([]chunking.ChildChunk{
		chunk("first", "identical text for tie breaking"),
		chunk("second", "identical text for tie breaking"),
	})

	for i := 0; i < 5; i++ {
		hits := ix.Search("identical tie", 10)
		if len(hits) != 2 {
			t.Fatalf("want 2 hits, got %d", len(hits))
		}
		if hits[0].ChildID != "first" || hits[1].ChildID != "second" {
			t.Fatalf("tie order not deterministic: got %s, %s", hits[0].ChildID, hits[1].ChildID)
		}
	}
}

func Test_Index_IncrementalAddIsSearchable(t *testing.T) {
	t.Parallel()
	ix := New()
	ix.Add([]chunking.ChildChunk{chunk("a", "alpha content")})

	if got := len(ix.Search("omega", 5)); got != 0 {
		t.Fatalf("want no hits before add, got %d", got)
	}

	ix.Add([]chunking.ChildChunk{chunk("b", "omega content")})

	hits := ix.Search("omega", 5)
	if len(hits) != 1 || hits[0].ChildID != "b" {
		t.Fatalf("incrementally added chunk not found: %+v", hits)
	}
	if ix.Len() != 2 {
		t.Errorf("want 2 indexed chunks, got %d", ix.Len())
	}
}

func Test_Index_KBoundsResultCount(t *testing.T) {
	t.Parallel()
	ix := New()
	var chunks []chunking.ChildChunk
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		chunks = append(chunks, chunk(id, "shared term plus filler "+id))
	}
	ix.Add(chunks)

	if hits := ix.Search("shared term", 3); len(hits) != 3 {
		t.Errorf("want 3 hits with k=3, got %d", len(hits))
	}
	if hits := ix.Search("shared term", 0); len(hits) != 0 {
		t.Errorf("want no hits with k=0, got %d", len(hits))
	}
}

func Test_Index_TokenizeConsistency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "Hello WORLD", []string{"hello", "world"}},
		{"strips punctuation", "re-try, now!", []string{"re", "try", "now"}},
		{"keeps digits", "port 8080 open", []string{"port", "8080", "open"}},
		{"empty", "  ...  ", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Tokenize(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("want %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func Test_Index_QueryWithOnlyPunctuationReturnsNothing(t *testing.T) {
	t.Parallel()
	ix := New()
	ix.Add([]chunking.ChildChunk{chunk("a", "some content here")})

	if hits := ix.Search("?!—…", 5); len(hits) != 0 {
		t.Errorf("punctuation-only query: want no hits, got %d", len(hits))
	}
}
