package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"elevator-status-monitor/internal/model"
)

// Store defines the interface for the latest status snapshot and push subscriptions.
type Store interface {
	// SaveSnapshot replaces the latest snapshot and returns the elevators that turned
	// broken since the previous one. The first snapshot only establishes a baseline.
	SaveSnapshot(ctx context.Context, snapshot Snapshot) ([]model.Equipment, error)
	LatestSnapshot(ctx context.Context) (Snapshot, bool)
	// Generation increases on every saved snapshot.
	Generation() uint64

	SubscriptionStore
}

// SubscriptionStore keeps push subscriptions keyed by endpoint.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub Subscription) error
	GetSubscription(ctx context.Context, endpoint string) (Subscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
}

// statusStore keeps the latest snapshot in process memory and delegates subscriptions.
type statusStore struct {
	SubscriptionStore

	mu         sync.RWMutex
	latest     *Snapshot
	generation uint64
	broken     map[string]bool
}

// New creates a Store whose subscriptions live in subs.
func New(subs SubscriptionStore) Store {
	return &statusStore{
		SubscriptionStore: subs,
		broken:            make(map[string]bool),
	}
}

// NewMemoryStore creates a Store that keeps everything in memory, seeded with the given
// subscriptions.
func NewMemoryStore(seed ...Subscription) Store {
	return New(NewMemorySubscriptions(seed...))
}

// Seed puts every subscription into s.
func Seed(ctx context.Context, s SubscriptionStore, subs []Subscription) error {
	for _, sub := range subs {
		if err := s.PutSubscription(ctx, sub); err != nil {
			return fmt.Errorf("failed to seed subscription %s: %w", sub.Endpoint, err)
		}
	}
	return nil
}

// SaveSnapshot stores the snapshot and diffs it against the last known state of each elevator.
// Elevators missing from the snapshot, e.g. because their station failed to resolve, keep
// their previous state.
func (s *statusStore) SaveSnapshot(ctx context.Context, snapshot Snapshot) ([]model.Equipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := s.latest == nil
	var newlyBroken []model.Equipment
	for _, equipment := range snapshot.Equipments {
		key := equipment.Key()
		wasBroken, seen := s.broken[key]
		isBroken := equipment.IsBroken()
		if isBroken && !baseline && (!seen || !wasBroken) {
			newlyBroken = append(newlyBroken, equipment)
		}
		s.broken[key] = isBroken
	}

	s.latest = &snapshot
	s.generation++
	return newlyBroken, nil
}

func (s *statusStore) LatestSnapshot(_ context.Context) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

func (s *statusStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// MemorySubscriptions keeps subscriptions in a map. They are lost on restart.
type MemorySubscriptions struct {
	mu            sync.RWMutex
	subscriptions map[string]Subscription
	now           func() time.Time
}

// NewMemorySubscriptions creates an in-memory subscription store.
func NewMemorySubscriptions(seed ...Subscription) *MemorySubscriptions {
	s := &MemorySubscriptions{
		subscriptions: make(map[string]Subscription, len(seed)),
		now:           time.Now,
	}
	for _, sub := range seed {
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = s.now()
		}
		s.subscriptions[sub.Endpoint] = sub
	}
	return s
}

// PutSubscription creates or replaces a subscription keyed by its endpoint.
func (s *MemorySubscriptions) PutSubscription(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	s.subscriptions[sub.Endpoint] = sub
	return nil
}

func (s *MemorySubscriptions) GetSubscription(_ context.Context, endpoint string) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[endpoint]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (s *MemorySubscriptions) DeleteSubscription(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[endpoint]; !ok {
		return ErrNotFound
	}
	delete(s.subscriptions, endpoint)
	return nil
}

// ListSubscriptions returns all subscriptions ordered by creation time.
func (s *MemorySubscriptions) ListSubscriptions(_ context.Context) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].Endpoint < subs[j].Endpoint
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}
