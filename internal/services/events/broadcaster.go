package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeProgressUpdated EventType = "progress.updated"
	EventTypeVisited         EventType = "progress.visited"
	EventTypeProgressReset   EventType = "progress.reset"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	ProfileID string         `json:"profile_id"`
	Data      map[string]any `json:"data,omitempty"`
}

type outbound struct {
	profileID uuid.UUID
	event     Event
}

// Broadcaster publishes progress events to Redis Pub/Sub for SSE distribution.
// Observer events are queued and published in order by one goroutine.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan outbound
	done   chan struct{}
}

// NewBroadcaster creates a new event broadcaster and starts its publisher.
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
		queue:       make(chan outbound, queueSize),
		done:        make(chan struct{}),
	}
	go b.run()
	return b
}

// Channel is the pub/sub channel carrying events for one profile
func Channel(profileID uuid.UUID) string {
	return fmt.Sprintf("progress-events:%s", profileID.String())
}

// EventFromChange converts a store change into a broadcast event
func EventFromChange(c progress.Change) Event {
	event := Event{ProfileID: c.ProfileID.String()}
	switch c.Type {
	case progress.ChangeVisited:
		event.Type = EventTypeVisited
		event.Data = map[string]any{
			"kind":      string(c.Kind),
			"entity_id": c.EntityID,
		}
	case progress.ChangeReset:
		event.Type = EventTypeProgressReset
	default:
		event.Type = EventTypeProgressUpdated
		event.Data = map[string]any{
			"hunt_id":      c.HuntID,
			"current_step": c.Progress.CurrentStep,
			"completed":    c.Progress.Completed,
		}
	}
	return event
}

// Observer returns a progress observer that queues every change for profileID.
// It never waits on Redis: when the queue is full the event is dropped and
// logged. Publishing is best effort; failures are logged.
func (b *Broadcaster) Observer(profileID uuid.UUID) progress.Observer {
	return func(c progress.Change) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.closed {
			return
		}
		select {
		case b.queue <- outbound{profileID: profileID, event: EventFromChange(c)}:
		default:
			b.logger.Warn("Dropping progress event, publish queue full",
				"profile_id", profileID.String(), "event_type", c.Type)
		}
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out publishing queued events: %w", ctx.Err())
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	for out := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		_ = b.Publish(ctx, out.profileID, out.event)
		cancel()
	}
}

// Publish publishes an event to the profile-specific channel
func (b *Broadcaster) Publish(ctx context.Context, profileID uuid.UUID, event Event) error {
	channel := Channel(profileID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}
