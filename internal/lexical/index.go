// Package lexical implements an in-memory BM25 inverted index over child
// chunks. The index supports incremental addition and concurrent reads; it
// is a disposable derived artifact rebuilt from the document store at
// startup, so no on-disk persistence is needed.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/fathom-ai/fathom-go/internal/chunking"
)

// BM25 free parameters. k1 controls term-frequency saturation, b controls
// document-length normalisation. The values are the standard Robertson
// defaults.
const (
	k1 = 1.2
	b  = 0.75
)

// Hit is a single scored result from a lexical search.
type Hit struct {
	// ChildID identifies the matching child chunk.
	ChildID string
	// Score is the BM25 relevance score (higher is better).
	Score float64
}

// posting records one document's occurrence of a term.
type posting struct {
	// doc is the internal document ordinal (insertion order).
	doc int
	// freq is the term frequency within the document.
	freq int
}

// indexedDoc holds the per-document state needed for scoring.
type indexedDoc struct {
	// childID is the external child chunk identifier.
	childID string
	// length is the token count of the document.
	length int
}

// Index is a thread-safe BM25 inverted index. The zero value is not usable;
// construct with New.
type Index struct {
	// mu guards all fields below. Searches take the read lock so concurrent
	// queries never block each other; Add takes the write lock.
	mu sync.RWMutex

	// postings maps a term to the ordered list of documents containing it.
	// Postings are appended in insertion order, which gives deterministic
	// tie-breaking for equal scores.
	postings map[string][]posting

	// docs holds per-document state, indexed by document ordinal.
	docs []indexedDoc

	// totalLen is the sum of all document token counts, for average length.
	totalLen int
}

// New constructs an empty Index.
func New() *Index {
	return &Index{postings: make(map[string][]posting)}
}

// Add indexes a batch of child chunks incrementally. Chunks with no
// extractable tokens are skipped. Safe to call while searches are running.
func (ix *Index) Add(chunks []chunking.ChildChunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, c := range chunks {
		terms := Tokenize(c.Text)
		if len(terms) == 0 {
			continue
		}

		ord := len(ix.docs)
		ix.docs = append(ix.docs, indexedDoc{childID: c.ID, length: len(terms)})
		ix.totalLen += len(terms)

		freqs := make(map[string]int, len(terms))
		for _, t := range terms {
			freqs[t]++
		}
		for t, f := range freqs {
			ix.postings[t] = append(ix.postings[t], posting{doc: ord, freq: f})
		}
	}
}

// Len returns the number of indexed child chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores all documents matching any query term with BM25 and returns
// the top k hits ordered by descending score. Ties are broken by insertion
// order so repeated searches over the same index are fully deterministic.
// An empty index or a query with no recognisable terms returns no hits.
func (ix *Index) Search(query string, k int) []Hit {
	if k <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	// Deduplicate query terms — BM25 scores each unique term once.
	seen := make(map[string]bool, len(terms))
	avgLen := float64(ix.totalLen) / float64(n)
	scores := make(map[int]float64)

	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true

		plist := ix.postings[t]
		if len(plist) == 0 {
			continue
		}

		// Robertson-Sparck Jones IDF with the +1 floor so common terms
		// never contribute a negative score.
		df := float64(len(plist))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.freq)
			norm := 1 - b + b*float64(ix.docs[p.doc].length)/avgLen
			scores[p.doc] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}

	if len(scores) == 0 {
		return nil
	}

	ords := make([]int, 0, len(scores))
	for ord := range scores {
		ords = append(ords, ord)
	}
	sort.Slice(ords, func(i, j int) bool {
		si, sj := scores[ords[i]], scores[ords[j]]
		if si != sj {
			return si > sj
		}
		return ords[i] < ords[j]
	})

	if len(ords) > k {
		ords = ords[:k]
	}

	hits := make([]Hit, len(ords))
	for i, ord := range ords {
		hits[i] = Hit{ChildID: ix.docs[ord].childID, Score: scores[ord]}
	}
	return hits
}

// Tokenize lowercases text and splits it on any non-letter, non-digit rune.
// The same function is used at indexing and query time so both sides of a
// search see an identical vocabulary.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
