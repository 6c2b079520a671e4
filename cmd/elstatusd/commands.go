package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/api"
	"elevator-status-monitor/internal/db"
	"elevator-status-monitor/internal/display"
	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/notification"
	"elevator-status-monitor/internal/scraper"
	"elevator-status-monitor/internal/store"
)

type app struct {
	cfg    *config.Config
	source scraper.Source
	log    *zap.Logger
}

type checkOutput struct {
	Equipments []model.Equipment `json:"equipments"`
	Errors     []string          `json:"errors"`
}

func (a *app) resolve(ctx context.Context) scraper.Result {
	result := a.source.ResolveAll(ctx, a.cfg.Stations)
	for _, e := range result.Equipments {
		a.log.Debug("equipment", zap.String("name", e.Name), zap.String("place", e.PlaceName()),
			zap.Bool("working", e.IsWorking()), zap.Bool("unknown", e.IsUnknown()))
	}
	return result
}

func (a *app) check(ctx context.Context, out io.Writer) error {
	result := a.resolve(ctx)

	output := checkOutput{Equipments: result.Equipments, Errors: result.ErrorStrings()}
	if output.Equipments == nil {
		output.Equipments = []model.Equipment{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(output)
}

func (a *app) email(ctx context.Context) error {
	sender, err := notification.NewSender(ctx, a.cfg.Email, a.log)
	if err != nil {
		return err
	}
	mailer := notification.NewMailer(a.cfg.Email, sender, a.log)

	result := a.resolve(ctx)
	errs := result.ErrorStrings()

	statusErr := mailer.SendStatus(ctx, result.Equipments, errs)
	if statusErr != nil {
		a.log.Error("could not send status email", zap.Error(statusErr))
	}
	return errors.Join(statusErr, mailer.SendErrors(ctx, errs))
}

func (a *app) display(ctx context.Context) error {
	result := a.resolve(ctx)
	for _, err := range result.Errors {
		a.log.Warn("station not shown on display", zap.Error(err))
	}
	return display.New(a.cfg.Display, a.log).Update(ctx, result.Equipments)
}

func (a *app) serve(ctx context.Context) error {
	subs, closeDB, err := a.subscriptionStore()
	if err != nil {
		return err
	}
	defer closeDB()
	appStore := store.New(subs)

	seed := make([]store.Subscription, 0, len(a.cfg.Push.Subscriptions))
	for _, sub := range a.cfg.Push.Subscriptions {
		seed = append(seed, store.Subscription{Endpoint: sub.Endpoint, P256DH: sub.P256DH, Auth: sub.Auth})
	}
	if err := store.Seed(ctx, appStore, seed); err != nil {
		return err
	}

	var notifier scraper.Notifier
	if a.cfg.Push.Enabled {
		if a.cfg.Push.PublicKey == "" || a.cfg.Push.PrivateKey == "" {
			return errors.New("push is enabled but VAPID keys are not configured")
		}
		notifier = notification.NewWorkerPool(a.cfg.WorkerPool.Size, appStore, &webpush.Options{
			VAPIDPublicKey:  a.cfg.Push.PublicKey,
			VAPIDPrivateKey: a.cfg.Push.PrivateKey,
			Subscriber:      a.cfg.Push.Subject,
			TTL:             a.cfg.Push.TTL,
		}, a.log)
	}

	scraperSvc := scraper.NewService(a.cfg, a.source, appStore, notifier, a.log)
	go scraperSvc.Run(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: api.NewRouter(a.cfg, appStore, a.log),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	case <-ctx.Done():
	}
	a.log.Info("shutdown signal received, stopping services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	a.log.Info("server gracefully stopped")
	return nil
}

// subscriptionStore opens the SQLite subscription database, or falls back to memory when
// no database path is configured.
func (a *app) subscriptionStore() (store.SubscriptionStore, func(), error) {
	if a.cfg.Database.Path == "" {
		a.log.Warn("database.path is not set, subscriptions registered through the API are kept in memory")
		return store.NewMemorySubscriptions(), func() {}, nil
	}

	gormDB, err := db.Open(a.cfg.Database, a.log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	closeDB := func() {
		if err := sqlDB.Close(); err != nil {
			a.log.Warn("failed to close database", zap.Error(err))
		}
	}
	return store.NewGormSubscriptions(gormDB), closeDB, nil
}
