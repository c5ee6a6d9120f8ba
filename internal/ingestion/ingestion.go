// Package ingestion implements the document ingestion pipeline: split each
// document into parent/child chunks, persist the hierarchy in the document
// store, feed the children to the lexical index, and embed them in batches
// into the vector index. Embedding is best effort — a failed batch is logged
// and skipped so one flaky backend call never aborts a bulk ingest.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fathom-ai/fathom-go/internal/chunking"
	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/embedder"
	"github.com/fathom-ai/fathom-go/internal/lexical"
	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// defaultEmbedBatchSize bounds how many child chunks are embedded per call.
const defaultEmbedBatchSize = 32

// ingestExtensions lists the file extensions IngestDirectory picks up.
var ingestExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Config holds the tunables for the ingestion pipeline.
type Config struct {
	// ParentChunkSize is the target parent chunk size in characters.
	ParentChunkSize int
	// ChildChunkSize is the target child chunk size in characters.
	ChildChunkSize int
	// ChildChunkOverlap is the overlap between consecutive children.
	ChildChunkOverlap int
	// EmbedBatchSize bounds the chunks per embedding call (default: 32).
	EmbedBatchSize int
}

// Report summarises one ingestion run.
type Report struct {
	// Documents is the number of documents ingested.
	Documents int
	// Parents and Children count the chunks produced.
	Parents  int
	Children int
	// Embedded counts the children successfully embedded and upserted.
	Embedded int
	// FailedBatches counts embedding or upsert batches that were skipped.
	FailedBatches int
	// SkippedFiles counts directory entries that could not be read.
	SkippedFiles int
}

// Pipeline orchestrates the split → store → index → embed → upsert flow.
type Pipeline struct {
	// splitter cuts documents into the parent/child hierarchy.
	splitter *chunking.Splitter
	// store is the durable source of truth for documents and chunks.
	store docstore.Store
	// lex receives children for keyword search; nil skips lexical indexing
	// (the serving process rebuilds its index from the store at startup).
	lex *lexical.Index
	// embed converts child texts to vectors; nil disables the dense path.
	embed embedder.Embedder
	// vectors receives the embedded children; nil disables the dense path.
	vectors vector.Index
	// batchSize bounds the chunks per embedding call.
	batchSize int
}

// New constructs a Pipeline. store is required; lex, embed, and vectors are
// each optional and disable their part of the flow when nil.
func New(store docstore.Store, lex *lexical.Index, embed embedder.Embedder, vectors vector.Index, cfg *Config) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	return &Pipeline{
		splitter:  chunking.NewSplitter(cfg.ParentChunkSize, cfg.ChildChunkSize, cfg.ChildChunkOverlap),
		store:     store,
		lex:       lex,
		embed:     embed,
		vectors:   vectors,
		batchSize: batchSize,
	}, nil
}

// IngestDocument splits, stores, and indexes a single document. An empty
// document contributes nothing and is not an error. Store failures are fatal;
// embedding failures are absorbed per batch and reported in the Report.
func (p *Pipeline) IngestDocument(ctx context.Context, doc chunking.Document) (Report, error) {
	var rep Report

	parents, children := p.splitter.Split(doc)
	if len(parents) == 0 {
		return rep, nil
	}

	if err := p.store.PutDocument(ctx, doc, parents, children); err != nil {
		return rep, fmt.Errorf("ingestion: store document %s: %w", doc.ID, err)
	}
	rep.Documents = 1
	rep.Parents = len(parents)
	rep.Children = len(children)

	if p.lex != nil {
		p.lex.Add(children)
	}

	embedded, failed := p.embedChildren(ctx, children)
	rep.Embedded = embedded
	rep.FailedBatches = failed

	return rep, nil
}

// embedChildren embeds and upserts children in batches. Each batch failure
// is logged and skipped; the remaining batches still run.
func (p *Pipeline) embedChildren(ctx context.Context, children []chunking.ChildChunk) (embedded, failedBatches int) {
	if p.embed == nil || p.vectors == nil {
		return 0, 0
	}
	log := logging.FromContext(ctx)

	for start := 0; start < len(children); start += p.batchSize {
		end := start + p.batchSize
		if end > len(children) {
			end = len(children)
		}
		batch := children[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vecs, err := p.embed.Embed(ctx, texts)
		if err != nil || len(vecs) != len(batch) {
			log.Warn("ingestion: embedding batch failed — skipping",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			failedBatches++
			continue
		}

		points := make([]vector.Point, len(batch))
		for i, c := range batch {
			points[i] = vector.Point{
				ChildID:  c.ID,
				ParentID: c.ParentID,
				Text:     c.Text,
				Vector:   vecs[i],
			}
		}
		if err := p.vectors.Upsert(ctx, points); err != nil {
			log.Warn("ingestion: vector upsert failed — skipping batch",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			failedBatches++
			continue
		}
		embedded += len(batch)
	}
	return embedded, failedBatches
}

// IngestDirectory walks dir and ingests every .txt/.md/.markdown file.
// Unreadable files are logged, counted, and skipped so the batch continues.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (Report, error) {
	var total Report
	log := logging.FromContext(ctx)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("ingestion: could not read file — skipping",
				"path", path,
				"error", err,
			)
			total.SkippedFiles++
			return nil
		}

		doc := chunking.Document{
			ID:         chunking.DocumentID(path),
			Title:      strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			RawText:    string(raw),
			SourcePath: path,
		}
		rep, err := p.IngestDocument(ctx, doc)
		if err != nil {
			return err
		}
		total.Documents += rep.Documents
		total.Parents += rep.Parents
		total.Children += rep.Children
		total.Embedded += rep.Embedded
		total.FailedBatches += rep.FailedBatches
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("ingestion: walk %s: %w", dir, err)
	}
	return total, nil
}

// DeleteDocument removes a document from the store and evicts its children
// from the vector index. The lexical index is rebuilt from the store at
// startup, so stale lexical entries disappear on the next restart.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	childIDs, err := p.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("ingestion: delete document %s: %w", documentID, err)
	}
	if p.vectors != nil && len(childIDs) > 0 {
		if err := p.vectors.Delete(ctx, childIDs); err != nil {
			return fmt.Errorf("ingestion: evict vectors for %s: %w", documentID, err)
		}
	}
	return nil
}
