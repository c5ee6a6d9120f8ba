// Package docstore provides the persistent document store for the retrieval
// engine. It is the source of truth for documents and their parent/child
// chunks; the lexical and vector indexes are derived artifacts rebuilt or
// re-populated from this store. Backed by a local SQLite database.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/fathom-ai/fathom-go/internal/chunking"
)

// ErrNotFound is returned when a requested document or chunk does not exist.
var ErrNotFound = errors.New("docstore: not found")

// DocumentInfo summarises a stored document for listing.
type DocumentInfo struct {
	// ID is the document identifier.
	ID string `json:"id"`
	// Title is the human-readable document title.
	Title string `json:"title"`
	// SourcePath is the origin file path or URI.
	SourcePath string `json:"source_path"`
	// ParentCount is the number of parent chunks stored for the document.
	ParentCount int `json:"parent_count"`
	// ChildCount is the number of child chunks stored for the document.
	ChildCount int `json:"child_count"`
	// IngestedAt is when the document was last written.
	IngestedAt time.Time `json:"ingested_at"`
}

// Store persists documents and their chunk hierarchy. Implementations must
// be safe for concurrent use.
type Store interface {
	// PutDocument persists a document and its chunks in one transaction,
	// replacing any previous content stored under the same document ID.
	PutDocument(ctx context.Context, doc chunking.Document, parents []chunking.ParentChunk, children []chunking.ChildChunk) error

	// GetParent returns the parent chunk with the given ID, or ErrNotFound.
	GetParent(ctx context.Context, parentID string) (chunking.ParentChunk, error)

	// GetChild returns the child chunk with the given ID, or ErrNotFound.
	GetChild(ctx context.Context, childID string) (chunking.ChildChunk, error)

	// AllChildren streams every stored child chunk in insertion order. The
	// lexical index is rebuilt from this at startup.
	AllChildren(ctx context.Context) ([]chunking.ChildChunk, error)

	// ListDocuments returns a summary of every stored document ordered by
	// ingestion time, oldest first.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// DeleteDocument removes a document and all its chunks. Returns the IDs
	// of the removed children so callers can evict them from the indexes.
	// Deleting an unknown document is not an error.
	DeleteDocument(ctx context.Context, documentID string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
