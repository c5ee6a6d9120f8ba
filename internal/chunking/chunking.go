// Package chunking splits raw documents into a two-level parent/child chunk
// hierarchy. Parent chunks are large passages used for display context;
// child chunks are small retrieval units indexed by the lexical and vector
// indexes. The two levels are flat tables joined by ParentID — there is no
// deeper nesting.
package chunking

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Default chunk sizes in characters. Parents are sized for LLM context
// windows; children are sized for precise retrieval.
const (
	// DefaultParentSize is the target parent chunk size.
	DefaultParentSize = 2000
	// DefaultChildSize is the target child chunk size.
	DefaultChildSize = 300
	// DefaultChildOverlap is the overlap between consecutive child chunks.
	// Overlap improves recall when a phrase straddles a chunk boundary.
	DefaultChildOverlap = 50
)

// Document is a raw ingested document before chunking.
type Document struct {
	// ID is the unique document identifier.
	ID string
	// Title is a human-readable document title.
	Title string
	// RawText is the full document content.
	RawText string
	// SourcePath is the origin file path or URI of the document.
	SourcePath string
}

// ParentChunk is a large contiguous passage of a document. Its text is
// always a contiguous substring of the source document (trimmed of
// surrounding whitespace).
type ParentChunk struct {
	// ID is the unique parent chunk identifier.
	ID string
	// DocumentID references the source document.
	DocumentID string
	// Text is the passage content.
	Text string
	// StartOffset is the byte offset of Text within the source document.
	StartOffset int
	// EndOffset is the byte offset one past the end of Text.
	EndOffset int
}

// ChildChunk is a small retrieval unit cut from exactly one parent chunk.
// Its text is always a substring of its parent's text.
type ChildChunk struct {
	// ID is the unique child chunk identifier.
	ID string
	// ParentID references the enclosing parent chunk.
	ParentID string
	// Text is the retrieval unit content.
	Text string
}

// Splitter cuts documents into parent and child chunks using a recursive
// strategy that prefers paragraph and sentence boundaries over hard cuts.
type Splitter struct {
	// ParentSize is the target parent chunk size in characters.
	ParentSize int
	// ChildSize is the target child chunk size in characters.
	ChildSize int
	// ChildOverlap is the overlap between consecutive children in characters.
	ChildOverlap int
}

// NewSplitter constructs a Splitter, applying defaults for zero values and
// clamping overlap below the child size.
func NewSplitter(parentSize, childSize, childOverlap int) *Splitter {
	if parentSize <= 0 {
		parentSize = DefaultParentSize
	}
	if childSize <= 0 {
		childSize = DefaultChildSize
	}
	if childOverlap < 0 {
		childOverlap = 0
	}
	if childOverlap >= childSize {
		childOverlap = childSize / 4
	}
	return &Splitter{
		ParentSize:   parentSize,
		ChildSize:    childSize,
		ChildOverlap: childOverlap,
	}
}

// Split cuts doc into parent chunks and, within each parent, child chunks.
// Malformed or empty input produces an empty chunk set, never an error, so
// batch ingestion continues with the remaining documents.
//
// Guarantees:
//   - every non-whitespace byte of doc.RawText falls inside some parent chunk
//   - every child's text is a substring of its parent's text
//   - a document shorter than the child size yields exactly one parent and
//     one child sharing identical text
func (s *Splitter) Split(doc Document) ([]ParentChunk, []ChildChunk) {
	if strings.TrimSpace(doc.RawText) == "" {
		return nil, nil
	}

	var parents []ParentChunk
	var children []ChildChunk

	pIdx := 0
	for _, span := range splitSpans(doc.RawText, s.ParentSize, 0) {
		text, start, end := trimSpan(doc.RawText, span.start, span.end)
		if text == "" {
			continue
		}

		parent := ParentChunk{
			ID:          chunkID(doc.ID, "p", pIdx, 0),
			DocumentID:  doc.ID,
			Text:        text,
			StartOffset: start,
			EndOffset:   end,
		}
		parents = append(parents, parent)

		cIdx := 0
		for _, cs := range splitSpans(text, s.ChildSize, s.ChildOverlap) {
			childText, _, _ := trimSpan(text, cs.start, cs.end)
			if childText == "" {
				continue
			}
			children = append(children, ChildChunk{
				ID:       chunkID(doc.ID, "c", pIdx, cIdx),
				ParentID: parent.ID,
				Text:     childText,
			})
			cIdx++
		}
		pIdx++
	}

	return parents, children
}

// span is a half-open byte range [start, end) into a text.
type span struct {
	start int
	end   int
}

// splitSpans cuts text into spans of at most target bytes, preferring to cut
// at paragraph, newline, sentence, and word boundaries in that order.
// Consecutive spans overlap by overlap bytes. Spans always advance so the
// loop terminates on any input.
func splitSpans(text string, target, overlap int) []span {
	if len(text) <= target {
		return []span{{0, len(text)}}
	}

	var spans []span
	start := 0
	for start < len(text) {
		end := start + target
		if end >= len(text) {
			spans = append(spans, span{start, len(text)})
			break
		}

		end = start + findCut(text[start:], target)
		if end <= start {
			end = start + target
		}
		spans = append(spans, span{start, end})

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// separators are tried in order of preference: paragraph break, line break,
// sentence end, word break.
var separators = []string{"\n\n", "\n", ". ", " "}

// findCut returns the byte index to cut rest at, at most target. It searches
// backwards for the most preferred separator in the second half of the
// window; the cut falls after the separator so the break character stays
// with the left span. rest must be longer than target.
func findCut(rest string, target int) int {
	window := rest[:target]
	half := target / 2
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= half {
			return i + len(sep)
		}
	}
	// No boundary in the second half — back up to a rune boundary so a hard
	// cut never splits a multi-byte character.
	cut := target
	for cut > 0 && !utf8.RuneStart(rest[cut]) {
		cut--
	}
	return cut
}

// trimSpan trims whitespace from both ends of text[start:end] and returns the
// trimmed text with its adjusted offsets. Pure-whitespace spans return "".
func trimSpan(text string, start, end int) (string, int, int) {
	raw := text[start:end]
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", start, start
	}
	// Must trim the same whitespace set as TrimSpace above, or the offsets
	// drift off the trimmed text.
	lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
	newStart := start + lead
	return trimmed, newStart, newStart + len(trimmed)
}

// chunkID derives a deterministic UUID for a chunk from its document ID and
// position, so re-ingesting the same document upserts rather than duplicates.
func chunkID(docID, kind string, parentIdx, childIdx int) string {
	name := fmt.Sprintf("%s/%s/%d/%d", docID, kind, parentIdx, childIdx)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// DocumentID derives a deterministic UUID for a document from its source
// path, so the same file always maps to the same document identity.
func DocumentID(sourcePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fathom:doc:"+sourcePath)).String()
}
