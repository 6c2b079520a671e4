package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/parse"
	"elevator-status-monitor/internal/store"
)

// mockSource is a mock implementation of the Source interface.
type mockSource struct {
	ResolveAllFunc func(ctx context.Context, groups []model.SearchGroup) Result
}

func (m *mockSource) ResolveAll(ctx context.Context, groups []model.SearchGroup) Result {
	return m.ResolveAllFunc(ctx, groups)
}

// mockNotifier records dispatched elevators.
type mockNotifier struct {
	mu         sync.Mutex
	started    bool
	dispatched []model.Equipment
}

func (m *mockNotifier) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

func (m *mockNotifier) Dispatch(equipment model.Equipment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, equipment)
}

func (m *mockNotifier) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.dispatched {
		out = append(out, e.Name)
	}
	return out
}

// mockStore is a mock implementation of the store.Store interface.
type mockStore struct {
	store.Store
	SaveSnapshotFunc func(ctx context.Context, snapshot store.Snapshot) ([]model.Equipment, error)
}

func (m *mockStore) SaveSnapshot(ctx context.Context, snapshot store.Snapshot) ([]model.Equipment, error) {
	return m.SaveSnapshotFunc(ctx, snapshot)
}

func working(b bool) *bool { return &b }

func testConfig() *config.Config {
	return &config.Config{
		Stations: []model.SearchGroup{
			{Name: "Berlin-Wannsee", Latitude: 52.42, Longitude: 13.18, EquipmentSearches: []string{"Gleis 1/2"}},
		},
		Scraper: config.ScraperConfig{Enabled: true, Interval: time.Hour},
	}
}

func TestService_CheckOnce(t *testing.T) {
	results := []Result{
		{Equipments: []model.Equipment{{Name: "Aufzug Gleis 1/2", Category: "elevator", Working: working(true)}}},
		{
			Equipments: []model.Equipment{{Name: "Aufzug Gleis 1/2", Category: "elevator", Working: working(false)}},
			Errors:     []error{&parse.EquipmentNotFoundError{Query: "Gleis 9"}},
		},
	}
	var calls int
	source := &mockSource{ResolveAllFunc: func(ctx context.Context, groups []model.SearchGroup) Result {
		require.Len(t, groups, 1)
		assert.Equal(t, "Berlin-Wannsee", groups[0].Name)
		r := results[calls]
		calls++
		return r
	}}

	s := store.NewMemoryStore()
	notifier := &mockNotifier{}
	service := NewService(testConfig(), source, s, notifier, zap.NewNop())
	checkedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return checkedAt }

	first := service.CheckOnce(context.Background())
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, checkedAt, first.CheckedAt)
	assert.Empty(t, notifier.names(), "first check is a baseline")

	second := service.CheckOnce(context.Background())
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, []string{"Could not find elevator: Gleis 9"}, second.Errors)
	assert.Equal(t, []string{"Aufzug Gleis 1/2"}, notifier.names())

	latest, ok := s.LatestSnapshot(context.Background())
	require.True(t, ok)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.Equal(t, uint64(2), s.Generation())
}

func TestService_CheckOnce_StoreFailure(t *testing.T) {
	source := &mockSource{ResolveAllFunc: func(ctx context.Context, groups []model.SearchGroup) Result {
		return Result{Equipments: []model.Equipment{{Name: "Aufzug", Category: "elevator", Working: working(false)}}}
	}}
	failing := &mockStore{SaveSnapshotFunc: func(ctx context.Context, snapshot store.Snapshot) ([]model.Equipment, error) {
		return nil, errors.New("store unavailable")
	}}
	notifier := &mockNotifier{}

	service := NewService(testConfig(), source, failing, notifier, zap.NewNop())
	snapshot := service.CheckOnce(context.Background())

	assert.Len(t, snapshot.Equipments, 1)
	assert.Empty(t, notifier.names())
}

func TestService_CheckOnce_WithoutNotifier(t *testing.T) {
	source := &mockSource{ResolveAllFunc: func(ctx context.Context, groups []model.SearchGroup) Result {
		return Result{}
	}}
	dispatched := &mockStore{SaveSnapshotFunc: func(ctx context.Context, snapshot store.Snapshot) ([]model.Equipment, error) {
		return []model.Equipment{{Name: "Aufzug"}}, nil
	}}

	service := NewService(testConfig(), source, dispatched, nil, zap.NewNop())
	assert.NotPanics(t, func() { service.CheckOnce(context.Background()) })
}

func TestService_Run(t *testing.T) {
	t.Run("disabled scraper returns immediately", func(t *testing.T) {
		cfg := testConfig()
		cfg.Scraper.Enabled = false
		source := &mockSource{ResolveAllFunc: func(ctx context.Context, groups []model.SearchGroup) Result {
			t.Error("source must not be queried")
			return Result{}
		}}

		NewService(cfg, source, store.NewMemoryStore(), nil, zap.NewNop()).Run(context.Background())
	})

	t.Run("checks immediately and stops on cancel", func(t *testing.T) {
		checked := make(chan struct{}, 1)
		source := &mockSource{ResolveAllFunc: func(ctx context.Context, groups []model.SearchGroup) Result {
			select {
			case checked <- struct{}{}:
			default:
			}
			return Result{}
		}}
		notifier := &mockNotifier{}
		service := NewService(testConfig(), source, store.NewMemoryStore(), notifier, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			service.Run(ctx)
			close(done)
		}()

		select {
		case <-checked:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for the first check")
		}
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		assert.True(t, notifier.started)
	})
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elstatus.broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Aufzug Gleis 3/4", "category": "elevator", "working": false, "place": "Berlin-Wannsee"},
		{"name": "Aufzug Vorplatz", "category": "elevator", "working": null, "place": null}
	]`), 0o600))

	source, err := LoadFileSource(path)
	require.NoError(t, err)

	result := source.ResolveAll(context.Background(), nil)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Equipments, 2)
	assert.True(t, result.Equipments[0].IsBroken())
	assert.Equal(t, "Berlin-Wannsee", result.Equipments[0].PlaceName())
	assert.True(t, result.Equipments[1].IsUnknown())
	assert.Nil(t, result.Equipments[1].Place)

	_, err = LoadFileSource(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
