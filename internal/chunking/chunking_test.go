package chunking

import (
	"strings"
	"testing"
)

// sampleDoc builds a Document with the given text and a stable ID.
func sampleDoc(text string) Document {
	return Document{
		ID:         DocumentID("/docs/sample.txt"),
		Title:      "sample",
		RawText:    text,
		SourcePath: "/docs/sample.txt",
	}
}

func Test_Splitter_ShortDocumentYieldsSinglePair(t *testing.T) {
	t.Parallel()
	s := NewSplitter(2000, 300, 50)

	parents, children := s.Split(sampleDoc("A short note about nothing much."))

	if len(parents) != 1 {
		t.Fatalf("want 1 parent, got %d", len(parents))
	}
	if len(children) != 1 {
		t.Fatalf("want 1 child, got %d", len(children))
	}
	if parents[0].Text != children[0].Text {
		t.Errorf("short doc: parent and child text must match: %q vs %q",
			parents[0].Text, children[0].Text)
	}
	if children[0].ParentID != parents[0].ID {
		t.Errorf("child must reference its parent: %s vs %s",
			children[0].ParentID, parents[0].ID)
	}
}

func Test_Splitter_EmptyDocumentYieldsNothing(t *testing.T) {
	t.Parallel()
	s := NewSplitter(0, 0, 0)

	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		parents, children := s.Split(sampleDoc(text))
		if len(parents) != 0 || len(children) != 0 {
			t.Errorf("text %q: want no chunks, got %d parents / %d children",
				text, len(parents), len(children))
		}
	}
}

func Test_Splitter_ParentsReconstructDocument(t *testing.T) {
	t.Parallel()
	s := NewSplitter(500, 120, 20)

	// Build a multi-paragraph document well above the parent size.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Paragraph content sentence one. Sentence two follows with more words. ")
		b.WriteString("A closing remark ends the paragraph.\n\n")
	}
	doc := sampleDoc(b.String())

	parents, _ := s.Split(doc)
	if len(parents) < 2 {
		t.Fatalf("want multiple parents, got %d", len(parents))
	}

	// Concatenating parents (ignoring whitespace) must reconstruct the
	// document content (ignoring whitespace).
	var got strings.Builder
	for _, p := range parents {
		got.WriteString(p.Text)
	}
	want := stripSpace(doc.RawText)
	if stripSpace(got.String()) != want {
		t.Error("concatenated parent chunks do not reconstruct the document")
	}
}

func Test_Splitter_ParentTextIsDocumentSubstring(t *testing.T) {
	t.Parallel()
	s := NewSplitter(400, 100, 10)
	doc := sampleDoc(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60))

	parents, _ := s.Split(doc)
	for _, p := range parents {
		if doc.RawText[p.StartOffset:p.EndOffset] != p.Text {
			t.Errorf("parent %s: offsets do not slice back to text", p.ID)
		}
		if !strings.Contains(doc.RawText, p.Text) {
			t.Errorf("parent %s: text is not a substring of the document", p.ID)
		}
	}
}

func Test_Splitter_ChildTextIsParentSubstring(t *testing.T) {
	t.Parallel()
	s := NewSplitter(600, 150, 30)
	doc := sampleDoc(strings.Repeat("Retrieval quality depends on chunk boundaries. Sentences should stay intact where possible. ", 40))

	parents, children := s.Split(doc)

	byID := make(map[string]ParentChunk, len(parents))
	for _, p := range parents {
		byID[p.ID] = p
	}

	if len(children) == 0 {
		t.Fatal("want children, got none")
	}
	for _, c := range children {
		parent, ok := byID[c.ParentID]
		if !ok {
			t.Fatalf("child %s references unknown parent %s", c.ID, c.ParentID)
		}
		if !strings.Contains(parent.Text, c.Text) {
			t.Errorf("child %s: text is not a substring of its parent", c.ID)
		}
	}
}

func Test_Splitter_PrefersSentenceBoundaries(t *testing.T) {
	t.Parallel()
	s := NewSplitter(80, 40, 0)
	doc := sampleDoc("First sentence is here. Second sentence is a bit longer than the first. Third one closes.")

	parents, _ := s.Split(doc)
	if len(parents) < 2 {
		t.Fatalf("want multiple parents, got %d", len(parents))
	}
	// Every parent except the last should end at a sentence boundary rather
	// than mid-word.
	for _, p := range parents[:len(parents)-1] {
		if !strings.HasSuffix(p.Text, ".") {
			t.Errorf("parent does not end at a sentence boundary: %q", p.Text)
		}
	}
}

func Test_Splitter_DeterministicIDs(t *testing.T) {
	t.Parallel()
	s := NewSplitter(500, 120, 20)
	doc := sampleDoc(strings.Repeat("Stable identifiers let re-ingestion upsert in place. ", 50))

	p1, c1 := s.Split(doc)
	p2, c2 := s.Split(doc)

	if len(p1) != len(p2) || len(c1) != len(c2) {
		t.Fatalf("split is not deterministic: %d/%d parents, %d/%d children",
			len(p1), len(p2), len(c1), len(c2))
	}
	for i := range p1 {
		if p1[i].ID != p2[i].ID {
			t.Errorf("parent %d: IDs differ across runs", i)
		}
	}
	for i := range c1 {
		if c1[i].ID != c2[i].ID {
			t.Errorf("child %d: IDs differ across runs", i)
		}
	}
}

func Test_TrimSpan_OffsetsAgreeOnUnicodeWhitespace(t *testing.T) {
	t.Parallel()

	// U+00A0 (no-break space) is trimmed by TrimSpace, so the offsets must
	// skip it too.
	text := "para one.\n\n\u00a0\u00a0indented text here\u00a0"
	got, start, end := trimSpan(text, 9, len(text))

	if got != "indented text here" {
		t.Fatalf("trimmed text: got %q", got)
	}
	if text[start:end] != got {
		t.Errorf("offsets do not slice back to the trimmed text: %q vs %q",
			text[start:end], got)
	}
}

func Test_Splitter_OffsetsLocateTextAfterUnicodeWhitespace(t *testing.T) {
	t.Parallel()
	s := NewSplitter(60, 30, 0)

	// Paragraphs separated by no-break spaces alongside newlines.
	doc := sampleDoc("A first paragraph that fills the whole parent budget easily here.\n\n\u00a0\u00a0A second paragraph that also fills its own parent chunk completely.")

	parents, _ := s.Split(doc)
	if len(parents) < 2 {
		t.Fatalf("want multiple parents, got %d", len(parents))
	}
	for _, p := range parents {
		if doc.RawText[p.StartOffset:p.EndOffset] != p.Text {
			t.Errorf("parent %s: offsets do not slice back to text: %q",
				p.ID, doc.RawText[p.StartOffset:p.EndOffset])
		}
	}
}

func Test_Splitter_DefaultsApplied(t *testing.T) {
	t.Parallel()
	s := NewSplitter(0, 0, -1)
	if s.ParentSize != DefaultParentSize {
		t.Errorf("parent size default: want %d, got %d", DefaultParentSize, s.ParentSize)
	}
	if s.ChildSize != DefaultChildSize {
		t.Errorf("child size default: want %d, got %d", DefaultChildSize, s.ChildSize)
	}
	if s.ChildOverlap != 0 {
		t.Errorf("negative overlap must clamp to 0, got %d", s.ChildOverlap)
	}
}

// stripSpace removes all whitespace so reconstruction checks ignore
// chunk-boundary trimming.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
