package mockapi

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jpalmerr/inspectwatch/internal/api"
)

// ErrNotFound is returned by a Repository for an unknown evidence id.
var ErrNotFound = errors.New("evidence not found")

// Record is a stored evidence item.
type Record struct {
	Detail api.EvidenceDetail

	// AnalysisStartedAt is set while the evidence is processing.
	AnalysisStartedAt *time.Time
}

// Repository persists evidence records.
type Repository interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// MemoryRepository keeps records in a map.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

func (m *MemoryRepository) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRepository) Put(_ context.Context, rec Record) error {
	if rec.Detail.ID == "" {
		return errors.New("evidence id is required")
	}
	m.mu.Lock()
	m.records[rec.Detail.ID] = cloneRecord(rec)
	m.mu.Unlock()
	return nil
}

// List returns every record ordered by id.
func (m *MemoryRepository) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	recs := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, cloneRecord(rec))
	}
	m.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].Detail.ID < recs[j].Detail.ID })
	return recs, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func cloneRecord(rec Record) Record {
	if rec.Detail.Issues != nil {
		issues := make([]api.Issue, len(rec.Detail.Issues))
		for i, issue := range rec.Detail.Issues {
			if issue.Location != nil {
				loc := *issue.Location
				issue.Location = &loc
			}
			issues[i] = issue
		}
		rec.Detail.Issues = issues
	}
	rec.Detail.Description = clonePtr(rec.Detail.Description)
	rec.Detail.UploadedAt = clonePtr(rec.Detail.UploadedAt)
	rec.Detail.AnalyzedAt = clonePtr(rec.Detail.AnalyzedAt)
	rec.AnalysisStartedAt = clonePtr(rec.AnalysisStartedAt)
	return rec
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
