package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"elevator-status-monitor/internal/metrics"
	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/store"
)

const channelPush = "push"

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers that push broken-elevator alerts to subscribers.
type WorkerPool struct {
	size    int
	jobs    chan model.Equipment
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Equipment, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case equipment := <-wp.jobs:
			log.Info("processing broken elevator", zap.String("name", equipment.Name))
			wp.notifySubscribers(ctx, equipment)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert for the given elevator. It blocks while the queue is full.
func (wp *WorkerPool) Dispatch(equipment model.Equipment) {
	wp.jobs <- equipment
}

// Message renders the push payload for a broken elevator.
func Message(equipment model.Equipment) string {
	if place := equipment.PlaceName(); place != "" {
		return fmt.Sprintf("⛔ Aufzug defekt: %s (%s)", equipment.Name, place)
	}
	return fmt.Sprintf("⛔ Aufzug defekt: %s", equipment.Name)
}

func (wp *WorkerPool) notifySubscribers(ctx context.Context, equipment model.Equipment) {
	subscriptions, err := wp.store.ListSubscriptions(ctx)
	if err != nil {
		wp.log.Error("failed to list subscriptions", zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.log.Info("sending push notifications",
		zap.Int("count", len(subscriptions)), zap.String("name", equipment.Name))

	payload := []byte(Message(equipment))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub store.Subscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(channelPush, metrics.OutcomeFailure).Inc()
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		metrics.NotificationsSent.WithLabelValues(channelPush, metrics.OutcomeFailure).Inc()
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	if resp.StatusCode >= 400 {
		metrics.NotificationsSent.WithLabelValues(channelPush, metrics.OutcomeFailure).Inc()
		wp.log.Warn("push service rejected notification",
			zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		return
	}
	metrics.NotificationsSent.WithLabelValues(channelPush, metrics.OutcomeSuccess).Inc()
}
