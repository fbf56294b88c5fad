package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ObserverFactory builds an observer for a newly opened profile store.
type ObserverFactory func(profileID uuid.UUID) Observer

// registryEntry is a store that is hydrating or open. ready is closed once
// store or err is set.
type registryEntry struct {
	ready    chan struct{}
	store    *Store
	err      error
	lastUsed time.Time
}

// Registry lazily opens and caches one Store per profile over a shared Backend.
// Idle stores are closed and dropped by Evict.
type Registry struct {
	backend   Backend
	logger    *slog.Logger
	opts      []Option
	factories []ObserverFactory
	now       func() time.Time

	mu       sync.Mutex
	entries  map[uuid.UUID]*registryEntry
	draining map[uuid.UUID]chan struct{}
	closed   bool
}

// NewRegistry creates a registry. opts are applied to every store it opens.
func NewRegistry(backend Backend, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend:  backend,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		entries:  make(map[uuid.UUID]*registryEntry),
		draining: make(map[uuid.UUID]chan struct{}),
	}
}

// AddObserverFactory attaches an observer to every store opened afterwards.
func (r *Registry) AddObserverFactory(f ObserverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// Get returns the store for profileID, hydrating it on first use. Hydration
// runs outside the registry lock; concurrent callers for the same profile
// wait for the same result. A failed hydrate is not cached.
func (r *Registry) Get(ctx context.Context, profileID uuid.UUID) (*Store, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrStoreClosed
		}

		// An evicted store must finish its writes before the profile is
		// hydrated again.
		if drained, ok := r.draining[profileID]; ok {
			r.mu.Unlock()
			select {
			case <-drained:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if e, ok := r.entries[profileID]; ok {
			e.lastUsed = r.now()
			r.mu.Unlock()
			select {
			case <-e.ready:
				return e.store, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		e := &registryEntry{ready: make(chan struct{}), lastUsed: r.now()}
		r.entries[profileID] = e
		opts := append([]Option(nil), r.opts...)
		for _, f := range r.factories {
			opts = append(opts, WithObserver(f(profileID)))
		}
		r.mu.Unlock()

		s, err := Open(ctx, profileID, r.backend, r.logger, opts...)

		r.mu.Lock()
		e.store, e.err = s, err
		if err != nil {
			delete(r.entries, profileID)
		}
		closedMeanwhile := r.closed
		r.mu.Unlock()
		close(e.ready)

		// Close ran while this store was hydrating and did not see it.
		if err == nil && closedMeanwhile {
			_ = s.Close(ctx)
			return nil, ErrStoreClosed
		}
		return s, err
	}
}

// Len returns the number of open or hydrating stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict closes stores that have not been fetched for at least idle. Their
// pending writes are drained before the profile can be opened again.
// It returns the number of stores evicted.
func (r *Registry) Evict(ctx context.Context, idle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	victims := make(map[uuid.UUID]*Store)
	for id, e := range r.entries {
		if e.store == nil || now.Sub(e.lastUsed) < idle {
			continue
		}
		victims[id] = e.store
		delete(r.entries, id)
		r.draining[id] = make(chan struct{})
	}
	r.mu.Unlock()

	for id, s := range victims {
		if err := s.Close(ctx); err != nil {
			r.logger.Warn("Failed to drain evicted progress store", "profile_id", id.String(), "error", err)
		}
		r.mu.Lock()
		close(r.draining[id])
		delete(r.draining, id)
		r.mu.Unlock()
	}

	if len(victims) > 0 {
		r.logger.Debug("Evicted idle progress stores", "count", len(victims))
	}
	return len(victims)
}

// RunEviction calls Evict every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(ctx, idle)
		}
	}
}

// Close closes every open store, draining their pending writes.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	stores := make([]*Store, 0, len(r.entries))
	for _, e := range r.entries {
		if e.store != nil {
			stores = append(stores, e.store)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range stores {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
