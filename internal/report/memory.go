package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
)

// MemoryStore is a Store kept in process memory. Reads return copies.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

func (s *MemoryStore) Create(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperrors.ErrReportNotFound
	}
	return r.clone(), nil
}

func (s *MemoryStore) filter(keep func(*Report) bool) []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Report
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, page, perPage int) ([]*Report, error) {
	all := s.filter(func(r *Report) bool { return r.UserID == userID })
	offset, limit := pageBounds(page, perPage)
	if offset >= len(all) {
		return []*Report{}, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID string) (int, error) {
	return len(s.filter(func(r *Report) bool { return r.UserID == userID })), nil
}

func (s *MemoryStore) ListByDocument(_ context.Context, userID, docID string) ([]*Report, error) {
	return s.filter(func(r *Report) bool { return r.UserID == userID && r.Involves(docID) }), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return apperrors.ErrReportNotFound
	}
	delete(s.reports, id)
	return nil
}

func (s *MemoryStore) update(id string, fn func(*Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return apperrors.ErrReportNotFound
	}
	fn(r)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	return s.update(id, func(r *Report) { r.setStatus(status) })
}

func (s *MemoryStore) UpdateResults(_ context.Context, id string, res compare.Result) error {
	return s.update(id, func(r *Report) { r.setResults(res) })
}

func (s *MemoryStore) UpdateSourceResult(_ context.Context, id, source string, res sources.Result, progress, score float64) error {
	return s.update(id, func(r *Report) { r.setSourceResult(source, res, progress, score) })
}

func (s *MemoryStore) Fail(_ context.Context, id, reason string) error {
	return s.update(id, func(r *Report) { r.fail(reason) })
}

// Pagination defaults.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

func pageBounds(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return (page - 1) * perPage, perPage
}
