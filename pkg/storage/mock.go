package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// MockStorage is a MemoryStorage with failure injection and call counting
// for tests.
type MockStorage struct {
	*MemoryStorage

	mu          sync.RWMutex
	pingError   error
	saveError   error
	saveCalls   int
	deleteCalls int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{MemoryStorage: NewMemoryStorage()}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every SaveSnapshot fail with err until cleared with nil
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SaveCalls returns how many times SaveSnapshot was called
func (m *MockStorage) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

// DeleteCalls returns how many times DeleteSnapshot was called
func (m *MockStorage) DeleteCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deleteCalls
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) SaveSnapshot(ctx context.Context, profileID uuid.UUID, snap *progress.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	m.mu.Lock()
	m.saveCalls++
	saveErr := m.saveError
	m.mu.Unlock()
	if saveErr != nil {
		return saveErr
	}
	return m.MemoryStorage.SaveSnapshot(ctx, profileID, snap)
}

func (m *MockStorage) DeleteSnapshot(ctx context.Context, profileID uuid.UUID) error {
	m.mu.Lock()
	m.deleteCalls++
	m.mu.Unlock()
	return m.MemoryStorage.DeleteSnapshot(ctx, profileID)
}

// PutSnapshot seeds a snapshot without counting it as a save (for testing)
func (m *MockStorage) PutSnapshot(profileID uuid.UUID, snap *progress.Snapshot) {
	m.MemoryStorage.mu.Lock()
	defer m.MemoryStorage.mu.Unlock()
	m.snapshots[profileID] = snap
}
