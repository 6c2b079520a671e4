package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/metrics"
	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/store"
)

// Source produces equipment records for a list of stations.
type Source interface {
	ResolveAll(ctx context.Context, groups []model.SearchGroup) Result
}

// Notifier receives elevators that just broke.
type Notifier interface {
	Start(ctx context.Context)
	Dispatch(equipment model.Equipment)
}

// Service runs status checks periodically and keeps the store up to date.
type Service struct {
	cfg      *config.Config
	source   Source
	store    store.Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a new status check service. notifier may be nil.
func NewService(cfg *config.Config, source Source, s store.Store, notifier Notifier, log *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		source:   source,
		store:    s,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Run checks immediately and then once per configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Scraper.Enabled {
		s.log.Info("scraper is disabled, not starting")
		return
	}
	s.log.Info("starting scraper service", zap.Duration("interval", s.cfg.Scraper.Interval))

	if s.notifier != nil {
		s.notifier.Start(ctx)
	}

	s.CheckOnce(ctx)

	timer := time.NewTimer(s.cfg.Scraper.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scraper service shutting down")
			return
		case <-timer.C:
			s.CheckOnce(ctx)
			timer.Reset(s.cfg.Scraper.Interval)
		}
	}
}

// CheckOnce resolves every station, stores the snapshot and dispatches alerts for
// elevators that broke since the previous check.
func (s *Service) CheckOnce(ctx context.Context) store.Snapshot {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	log.Info("executing status check", zap.Int("stations", len(s.cfg.Stations)))
	metrics.ChecksTotal.Inc()

	result := s.source.ResolveAll(ctx, s.cfg.Stations)
	snapshot := store.Snapshot{
		RunID:      runID,
		CheckedAt:  s.now().UTC(),
		Equipments: result.Equipments,
		Errors:     result.ErrorStrings(),
	}

	broken, working, unknown := snapshot.Counts()
	metrics.EquipmentStatus.WithLabelValues("broken").Set(float64(broken))
	metrics.EquipmentStatus.WithLabelValues("working").Set(float64(working))
	metrics.EquipmentStatus.WithLabelValues("unknown").Set(float64(unknown))

	newlyBroken, err := s.store.SaveSnapshot(ctx, snapshot)
	if err != nil {
		log.Error("failed to save snapshot", zap.Error(err))
		return snapshot
	}

	if s.notifier != nil && len(newlyBroken) > 0 {
		log.Info("dispatching notifications", zap.Int("elevators", len(newlyBroken)))
		for _, equipment := range newlyBroken {
			s.notifier.Dispatch(equipment)
		}
	}

	log.Info("status check finished",
		zap.Int("broken", broken),
		zap.Int("working", working),
		zap.Int("unknown", unknown),
		zap.Int("errors", len(snapshot.Errors)))
	return snapshot
}
