package document

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryStore(docs ...*Document) *MemoryStore {
	s := &MemoryStore{docs: make(map[string]*Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

// ListByOwner returns the user's documents, newest first.
func (s *MemoryStore) ListByOwner(_ context.Context, userID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for _, d := range s.docs {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return apperrors.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}
