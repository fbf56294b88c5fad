package storage

import (
	"context"

	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// Storage is the durable backend for progress snapshots. Hunt content is
// static and loaded separately by the content package.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Snapshot operations, one blob per profile
	progress.Backend
}
