package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/fathom-ai/fathom-go/internal/chunking"
)

// MemoryStore is an in-process Store used by tests and ephemeral setups.
type MemoryStore struct {
	// mu guards all fields below.
	mu sync.RWMutex

	docs     map[string]chunking.Document
	parents  map[string]chunking.ParentChunk
	children map[string]chunking.ChildChunk

	// childOrder records global child insertion order for AllChildren.
	childOrder []string
	// docOrder records document insertion order for ListDocuments.
	docOrder []string
	// ingested records per-document ingestion time.
	ingested map[string]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]chunking.Document),
		parents:  make(map[string]chunking.ParentChunk),
		children: make(map[string]chunking.ChildChunk),
		ingested: make(map[string]time.Time),
	}
}

// PutDocument stores a document and its chunks, replacing any previous
// content under the same document ID.
func (s *MemoryStore) PutDocument(_ context.Context, doc chunking.Document, parents []chunking.ParentChunk, children []chunking.ChildChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		s.removeLocked(doc.ID)
	}

	s.docs[doc.ID] = doc
	s.docOrder = append(s.docOrder, doc.ID)
	s.ingested[doc.ID] = time.Now()
	for _, p := range parents {
		s.parents[p.ID] = p
	}
	for _, c := range children {
		s.children[c.ID] = c
		s.childOrder = append(s.childOrder, c.ID)
	}
	return nil
}

// GetParent returns the parent chunk with the given ID, or ErrNotFound.
func (s *MemoryStore) GetParent(_ context.Context, parentID string) (chunking.ParentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[parentID]
	if !ok {
		return chunking.ParentChunk{}, ErrNotFound
	}
	return p, nil
}

// GetChild returns the child chunk with the given ID, or ErrNotFound.
func (s *MemoryStore) GetChild(_ context.Context, childID string) (chunking.ChildChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[childID]
	if !ok {
		return chunking.ChildChunk{}, ErrNotFound
	}
	return c, nil
}

// AllChildren returns every stored child chunk in insertion order.
func (s *MemoryStore) AllChildren(_ context.Context) ([]chunking.ChildChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chunking.ChildChunk, 0, len(s.childOrder))
	for _, id := range s.childOrder {
		if c, ok := s.children[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListDocuments returns a summary of every stored document in insertion order.
func (s *MemoryStore) ListDocuments(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DocumentInfo, 0, len(s.docOrder))
	for _, id := range s.docOrder {
		doc, ok := s.docs[id]
		if !ok {
			continue
		}
		info := DocumentInfo{
			ID:         doc.ID,
			Title:      doc.Title,
			SourcePath: doc.SourcePath,
			IngestedAt: s.ingested[id],
		}
		for _, p := range s.parents {
			if p.DocumentID == id {
				info.ParentCount++
			}
		}
		for _, cid := range s.childOrder {
			c, ok := s.children[cid]
			if !ok {
				continue
			}
			if p, ok := s.parents[c.ParentID]; ok && p.DocumentID == id {
				info.ChildCount++
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteDocument removes a document and all its chunks, returning the IDs of
// the removed children.
func (s *MemoryStore) DeleteDocument(_ context.Context, documentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(documentID), nil
}

// removeLocked deletes a document's chunks under the write lock and returns
// the removed child IDs.
func (s *MemoryStore) removeLocked(documentID string) []string {
	var parentIDs []string
	for id, p := range s.parents {
		if p.DocumentID == documentID {
			parentIDs = append(parentIDs, id)
			delete(s.parents, id)
		}
	}

	isParent := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		isParent[id] = true
	}

	var removed []string
	kept := s.childOrder[:0]
	for _, cid := range s.childOrder {
		c, ok := s.children[cid]
		if ok && isParent[c.ParentID] {
			removed = append(removed, cid)
			delete(s.children, cid)
			continue
		}
		kept = append(kept, cid)
	}
	s.childOrder = kept

	delete(s.docs, documentID)
	delete(s.ingested, documentID)
	for i, id := range s.docOrder {
		if id == documentID {
			s.docOrder = append(s.docOrder[:i], s.docOrder[i+1:]...)
			break
		}
	}
	return removed
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
