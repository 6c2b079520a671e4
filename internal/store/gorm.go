package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSubscriptions persists subscriptions in a SQL database through GORM.
type GormSubscriptions struct {
	db *gorm.DB
}

// NewGormSubscriptions creates a subscription store backed by db. The table must
// already be migrated.
func NewGormSubscriptions(db *gorm.DB) *GormSubscriptions {
	return &GormSubscriptions{db: db}
}

// PutSubscription inserts the subscription or updates the keys of an existing endpoint.
// The original creation time is kept.
func (s *GormSubscriptions) PutSubscription(ctx context.Context, sub Subscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *GormSubscriptions) GetSubscription(ctx context.Context, endpoint string) (Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

func (s *GormSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	result := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&Subscription{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubscriptions returns all subscriptions ordered by creation time.
func (s *GormSubscriptions) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	err := s.db.WithContext(ctx).Order("created_at").Order("endpoint").Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
