// Package events carries session lifecycle signals from the HTTP layer to whoever
// owns navigation (a UI shell, the CLI, a kiosk loop).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"campusattend/internal/store"
)

// TypeTeardown is published when the server rejected the session's credential.
const TypeTeardown = "session.teardown"

// Event is a single lifecycle signal.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Reason  string    `json:"reason"`
	Subject string    `json:"subject,omitempty"`
	At      time.Time `json:"at"`
}

// NewTeardown builds a teardown event for the given user subject.
func NewTeardown(reason, subject string) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    TypeTeardown,
		Reason:  reason,
		Subject: subject,
		At:      time.Now().UTC(),
	}
}

// Bus is the abstraction over different backends.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Consume(ctx context.Context) (<-chan Event, error)
}

// InMemory is a channel-backed bus for a single process.
type InMemory struct {
	ch chan Event
}

// NewInMemory creates a bounded in-memory bus.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 16
	}
	return &InMemory{ch: make(chan Event, size)}
}

// Publish enqueues an event.
func (b *InMemory) Publish(ctx context.Context, evt Event) error {
	select {
	case b.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for the navigation owner. It closes when ctx is done.
func (b *InMemory) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-b.ch:
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisBus implements a Redis list-backed bus so a separate process on the same
// device (for example a UI shell) can observe teardowns.
type RedisBus struct {
	client *redis.Client
	key    string
}

// NewRedisBus builds a bus using LPUSH/BRPOP semantics.
func NewRedisBus(client *redis.Client, key string) *RedisBus {
	if key == "" {
		key = store.Key("events")
	}
	return &RedisBus{client: client, key: key}
}

// Publish enqueues an event.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.LPush(ctx, b.key, raw).Err()
}

// Consume streams events using BRPOP.
func (b *RedisBus) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := b.client.BRPop(ctx, store.BlockTimeout, b.key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				time.Sleep(250 * time.Millisecond)
				continue
			}
			if len(res) != 2 {
				continue
			}
			var evt Event
			if err := json.Unmarshal([]byte(res[1]), &evt); err != nil {
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
