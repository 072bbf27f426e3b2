package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu      sync.RWMutex
	records map[string]*model.Record
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		records: make(map[string]*model.Record),
	}
}

// Ensure Storage implements the interface
var _ storage.RecordStore = (*Storage)(nil)

func (s *Storage) FindRecord(ctx context.Context, accountName string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[accountName]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *Storage) CreateRecord(ctx context.Context, rec *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.AccountName]; ok {
		return model.ErrRecordExists
	}
	s.records[rec.AccountName] = rec.Clone()
	return nil
}

func (s *Storage) SaveRecord(ctx context.Context, rec *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := rec.Clone()
	if existing, ok := s.records[rec.AccountName]; ok && existing.Validated {
		stored.Validated = true
	}
	s.records[rec.AccountName] = stored
	return nil
}

func (s *Storage) ListRecords(ctx context.Context) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*model.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AccountName < records[j].AccountName
	})
	return records, nil
}

func (s *Storage) Close() error {
	return nil
}
