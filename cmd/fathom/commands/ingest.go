package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fathom-ai/fathom-go/internal/chunking"
	"github.com/fathom-ai/fathom-go/internal/ingestion"
	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// NewIngestCmd constructs the `fathom ingest` command, which splits documents
// into parent/child chunks and populates the document store and vector index.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Ingest text and markdown documents into the search engine",
		Long: `Split documents into parent/child chunks and index them.

Each path may be a single .txt/.md/.markdown file or a directory, which is
walked recursively. Chunks are written to the SQLite document store (the
source of truth) and embedded into the Qdrant vector index in best-effort
batches — a failed embedding batch is logged and skipped, never fatal.
The BM25 lexical index is rebuilt from the store at startup, so it needs no
separate ingestion step.

Relevant environment variables:
  FATHOM_DB            SQLite database path (default: ~/.fathom/fathom.db)
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: fathom-chunks)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  CHUNK_PARENT_SIZE    Parent chunk size in characters
  CHUNK_CHILD_SIZE     Child chunk size in characters
  CHUNK_CHILD_OVERLAP  Child chunk overlap in characters

Examples:
  fathom ingest ./docs
  fathom ingest README.md ./runbooks ./wiki-export`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := openStore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()

			emb, vectors := buildDensePath(ctx, log)
			if vectors != nil {
				defer func() { _ = vectors.Close() }()
			}
			var vecIndex vector.Index
			if vectors != nil {
				vecIndex = vectors
			}

			pipeline, err := ingestion.New(store, nil, emb, vecIndex, &ingestion.Config{
				ParentChunkSize:   getEnvInt("CHUNK_PARENT_SIZE", 0),
				ChildChunkSize:    getEnvInt("CHUNK_CHILD_SIZE", 0),
				ChildChunkOverlap: getEnvInt("CHUNK_CHILD_OVERLAP", 0),
				EmbedBatchSize:    getEnvInt("EMBEDDING_BATCH_SIZE", 0),
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			var total ingestion.Report
			for _, path := range args {
				rep, err := ingestPath(ctx, pipeline, path)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				total.Documents += rep.Documents
				total.Parents += rep.Parents
				total.Children += rep.Children
				total.Embedded += rep.Embedded
				total.FailedBatches += rep.FailedBatches
				total.SkippedFiles += rep.SkippedFiles
			}

			log.Info("ingestion complete",
				slog.Int("documents", total.Documents),
				slog.Int("parents", total.Parents),
				slog.Int("children", total.Children),
				slog.Int("embedded", total.Embedded),
				slog.Int("failed_batches", total.FailedBatches),
				slog.Int("skipped_files", total.SkippedFiles),
			)

			fmt.Printf("ingested %d document(s): %d parent chunks, %d child chunks, %d embedded\n",
				total.Documents, total.Parents, total.Children, total.Embedded)
			if total.FailedBatches > 0 {
				fmt.Printf("warning: %d embedding batch(es) failed — affected chunks are lexical-only\n", total.FailedBatches)
			}
			if total.SkippedFiles > 0 {
				fmt.Printf("warning: %d file(s) could not be read and were skipped\n", total.SkippedFiles)
			}
			return nil
		},
	}

	return cmd
}

// ingestPath ingests one CLI argument, dispatching on file vs directory.
func ingestPath(ctx context.Context, pipeline *ingestion.Pipeline, path string) (ingestion.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ingestion.Report{}, err
	}
	if info.IsDir() {
		return pipeline.IngestDirectory(ctx, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ingestion.Report{}, err
	}
	doc := chunking.Document{
		ID:         chunking.DocumentID(path),
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		RawText:    string(raw),
		SourcePath: path,
	}
	return pipeline.IngestDocument(ctx, doc)
}
