// Package idempotency guards outbox deliveries so an event whose delivery
// succeeded but whose row update rolled back is not delivered twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store is the slice of the redis client the guard needs.
type Store interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager claims event IDs per sink using Redis SETNX with a TTL.
// Keys follow the `ap:idempotency:evt:delivered:<sink>:<event_id>` pattern.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager builds a guard that remembers delivered events for ttl.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Claim returns true when the event was already delivered to sink and
// otherwise records it as delivered.
func (m *Manager) Claim(ctx context.Context, sink, eventID string) (bool, error) {
	key, err := m.deliveredKey(sink, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release forgets a claim after a failed delivery so the next attempt runs.
func (m *Manager) Release(ctx context.Context, sink, eventID string) error {
	key, err := m.deliveredKey(sink, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) deliveredKey(sink, eventID string) (string, error) {
	if strings.TrimSpace(sink) == "" {
		return "", errors.New("sink name is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:delivered:%s", sink)
	return m.store.IdempotencyKey(scope, eventID), nil
}
