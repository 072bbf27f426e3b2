package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/storage"
	"github.com/mcoot/regwhelp/internal/storage/memory"
)

// MockRecordStore wraps an in-memory store and can inject failures
type MockRecordStore struct {
	*memory.Storage

	mu        sync.Mutex
	FindErr   error
	CreateErr error
	SaveErr   error
	ListErr   error

	FindCalls   int
	CreateCalls int
	SaveCalls   int
}

// Ensure MockRecordStore implements RecordStore
var _ storage.RecordStore = (*MockRecordStore)(nil)

// NewMockRecordStore creates a MockRecordStore backed by an empty memory store
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{Storage: memory.New()}
}

// SetErrors replaces the injected failures
func (m *MockRecordStore) SetErrors(find, create, save error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindErr, m.CreateErr, m.SaveErr = find, create, save
}

func (m *MockRecordStore) FindRecord(ctx context.Context, accountName string) (*model.Record, error) {
	m.mu.Lock()
	m.FindCalls++
	err := m.FindErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Storage.FindRecord(ctx, accountName)
}

func (m *MockRecordStore) CreateRecord(ctx context.Context, rec *model.Record) error {
	m.mu.Lock()
	m.CreateCalls++
	err := m.CreateErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Storage.CreateRecord(ctx, rec)
}

func (m *MockRecordStore) SaveRecord(ctx context.Context, rec *model.Record) error {
	m.mu.Lock()
	m.SaveCalls++
	err := m.SaveErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Storage.SaveRecord(ctx, rec)
}

func (m *MockRecordStore) ListRecords(ctx context.Context) ([]*model.Record, error) {
	m.mu.Lock()
	err := m.ListErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Storage.ListRecords(ctx)
}
