package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/db"
	"elevator-status-monitor/internal/model"
)

func elevator(name string, working *bool) model.Equipment {
	place := "Berlin-Wannsee"
	return model.Equipment{Name: name, Category: model.CategoryElevator, Working: working, Place: &place}
}

func status(b bool) *bool { return &b }

func names(equipments []model.Equipment) []string {
	out := make([]string, 0, len(equipments))
	for _, e := range equipments {
		out = append(out, e.Name)
	}
	return out
}

func TestMemoryStore_SaveSnapshot(t *testing.T) {
	testCases := []struct {
		name          string
		previous      []model.Equipment
		current       []model.Equipment
		expectedNames []string
	}{
		{
			name:          "Elevator breaks, should notify",
			previous:      []model.Equipment{elevator("Gleis 1/2", status(true))},
			current:       []model.Equipment{elevator("Gleis 1/2", status(false))},
			expectedNames: []string{"Gleis 1/2"},
		},
		{
			name:          "Elevator stays broken, should not notify",
			previous:      []model.Equipment{elevator("Gleis 1/2", status(false))},
			current:       []model.Equipment{elevator("Gleis 1/2", status(false))},
			expectedNames: []string{},
		},
		{
			name:          "Elevator is repaired, should not notify",
			previous:      []model.Equipment{elevator("Gleis 1/2", status(false))},
			current:       []model.Equipment{elevator("Gleis 1/2", status(true))},
			expectedNames: []string{},
		},
		{
			name:          "Unknown to broken, should notify",
			previous:      []model.Equipment{elevator("Gleis 3/4", nil)},
			current:       []model.Equipment{elevator("Gleis 3/4", status(false))},
			expectedNames: []string{"Gleis 3/4"},
		},
		{
			name:          "Working to unknown, should not notify",
			previous:      []model.Equipment{elevator("Gleis 3/4", status(true))},
			current:       []model.Equipment{elevator("Gleis 3/4", nil)},
			expectedNames: []string{},
		},
		{
			name:          "Previously unseen broken elevator, should notify",
			previous:      []model.Equipment{elevator("Gleis 1/2", status(true))},
			current:       []model.Equipment{elevator("Gleis 1/2", status(true)), elevator("Gleis 5", status(false))},
			expectedNames: []string{"Gleis 5"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore()
			ctx := context.Background()

			baseline, err := s.SaveSnapshot(ctx, Snapshot{RunID: "first", Equipments: tc.previous})
			require.NoError(t, err)
			assert.Empty(t, baseline, "first snapshot never reports transitions")

			newlyBroken, err := s.SaveSnapshot(ctx, Snapshot{RunID: "second", Equipments: tc.current})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedNames, names(newlyBroken))
		})
	}
}

func TestMemoryStore_SaveSnapshot_KeepsStateOfMissingElevators(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.SaveSnapshot(ctx, Snapshot{Equipments: []model.Equipment{elevator("Gleis 1/2", status(false))}})
	require.NoError(t, err)

	// The station failed to resolve in this run.
	_, err = s.SaveSnapshot(ctx, Snapshot{Errors: []string{"HTTP request failed, error code: 500\n"}})
	require.NoError(t, err)

	newlyBroken, err := s.SaveSnapshot(ctx, Snapshot{Equipments: []model.Equipment{elevator("Gleis 1/2", status(false))}})
	require.NoError(t, err)
	assert.Empty(t, newlyBroken)
}

func TestMemoryStore_LatestSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, ok := s.LatestSnapshot(ctx)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), s.Generation())

	checkedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.SaveSnapshot(ctx, Snapshot{
		RunID:      "run-1",
		CheckedAt:  checkedAt,
		Equipments: []model.Equipment{elevator("Gleis 1/2", status(true))},
		Errors:     []string{"Could not find elevator: Gleis 9"},
	})
	require.NoError(t, err)

	snapshot, ok := s.LatestSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, checkedAt, snapshot.CheckedAt)
	assert.Len(t, snapshot.Equipments, 1)
	assert.Equal(t, []string{"Could not find elevator: Gleis 9"}, snapshot.Errors)
	assert.Equal(t, uint64(1), s.Generation())
}

func TestMemoryStore_SaveSnapshot_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveSnapshot(ctx, Snapshot{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), s.Generation())
}

func TestSnapshot_Counts(t *testing.T) {
	snapshot := Snapshot{Equipments: []model.Equipment{
		elevator("a", status(false)),
		elevator("b", status(true)),
		elevator("c", status(true)),
		elevator("d", nil),
	}}

	broken, working, unknown := snapshot.Counts()
	assert.Equal(t, 1, broken)
	assert.Equal(t, 2, working)
	assert.Equal(t, 1, unknown)
}

func newGormSubscriptions(t *testing.T) SubscriptionStore {
	t.Helper()
	gormDB, err := db.Open(config.DatabaseConfig{Path: ":memory:", LogLevel: "silent"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormSubscriptions(gormDB)
}

func TestSubscriptions(t *testing.T) {
	backends := []struct {
		name string
		new  func(t *testing.T) SubscriptionStore
	}{
		{name: "memory", new: func(*testing.T) SubscriptionStore { return NewMemorySubscriptions() }},
		{name: "gorm", new: newGormSubscriptions},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			s := New(backend.new(t))
			seeded := Subscription{Endpoint: "https://push.example.com/seeded", P256DH: "k0", Auth: "a0"}
			require.NoError(t, Seed(ctx, s, []Subscription{seeded}))

			t.Run("seeded subscriptions are listed", func(t *testing.T) {
				subs, err := s.ListSubscriptions(ctx)
				require.NoError(t, err)
				require.Len(t, subs, 1)
				assert.Equal(t, seeded.Endpoint, subs[0].Endpoint)
				assert.False(t, subs[0].CreatedAt.IsZero())
			})

			t.Run("put replaces keys and keeps creation time", func(t *testing.T) {
				created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
				require.NoError(t, s.PutSubscription(ctx, Subscription{Endpoint: "https://push.example.com/a", P256DH: "k1", Auth: "a1", CreatedAt: created}))

				require.NoError(t, s.PutSubscription(ctx, Subscription{Endpoint: "https://push.example.com/a", P256DH: "k2", Auth: "a2"}))
				sub, err := s.GetSubscription(ctx, "https://push.example.com/a")
				require.NoError(t, err)

				assert.Equal(t, "k2", sub.P256DH)
				assert.Equal(t, "a2", sub.Auth)
				assert.True(t, created.Equal(sub.CreatedAt), "created_at changed to %s", sub.CreatedAt)

				subs, err := s.ListSubscriptions(ctx)
				require.NoError(t, err)
				require.Len(t, subs, 2)
				assert.Equal(t, "https://push.example.com/a", subs[0].Endpoint, "oldest first")
			})

			t.Run("unknown endpoint is not found", func(t *testing.T) {
				_, err := s.GetSubscription(ctx, "https://push.example.com/unknown")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("delete removes the subscription", func(t *testing.T) {
				require.NoError(t, s.DeleteSubscription(ctx, "https://push.example.com/a"))

				_, err := s.GetSubscription(ctx, "https://push.example.com/a")
				assert.ErrorIs(t, err, ErrNotFound)
				assert.ErrorIs(t, s.DeleteSubscription(ctx, "https://push.example.com/a"), ErrNotFound)
			})
		})
	}
}

func TestGormSubscriptions_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "elstatus.db"), LogLevel: "silent"}
	log := zaptest.NewLogger(t)

	first, err := db.Open(cfg, log)
	require.NoError(t, err)
	require.NoError(t, NewGormSubscriptions(first).PutSubscription(ctx, Subscription{Endpoint: "https://push.example.com/a", P256DH: "k", Auth: "a"}))
	sqlDB, err := first.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	second, err := db.Open(cfg, log)
	require.NoError(t, err)
	sqlDB, err = second.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	sub, err := NewGormSubscriptions(second).GetSubscription(ctx, "https://push.example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "k", sub.P256DH)
	assert.Equal(t, "a", sub.Auth)
}
