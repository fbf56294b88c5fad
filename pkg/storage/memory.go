package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// MemoryStorage keeps snapshots in process memory. Progress does not survive
// a restart; it backs the "memory" storage backend and local development.
type MemoryStorage struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*progress.Snapshot
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		snapshots: make(map[uuid.UUID]*progress.Snapshot),
	}
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveSnapshot(ctx context.Context, profileID uuid.UUID, snap *progress.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[profileID] = snap.Clone()
	return nil
}

// LoadSnapshot returns nil, nil for an unknown profile
func (m *MemoryStorage) LoadSnapshot(ctx context.Context, profileID uuid.UUID) (*progress.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[profileID]
	if !ok {
		return nil, nil
	}
	return snap.Clone(), nil
}

func (m *MemoryStorage) DeleteSnapshot(ctx context.Context, profileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, profileID)
	return nil
}
