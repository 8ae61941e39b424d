package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menunoar/billing/internal/domain/model"
)

// WebhookEventRepository records every verified provider notification for
// audit and redelivery visibility
type WebhookEventRepository interface {
	SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent saves a new webhook event. Redelivered events hit the unique
// event ID and insert nothing.
func (r *webhookEventRepository) SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error {
	var eventData map[string]interface{}
	if err := json.Unmarshal(data, &eventData); err != nil {
		r.logger.Warn("Failed to parse event data for audit row",
			zap.String("event_id", eventID),
			zap.Error(err))
	}

	var providerCreatedAt *time.Time
	if created, ok := eventData["created"].(float64); ok {
		t := time.Unix(int64(created), 0)
		providerCreatedAt = &t
	}

	event := &model.BillingWebhookEvent{
		ProviderEventID:   eventID,
		EventType:         eventType,
		Status:            model.WebhookStatusPending,
		Data:              model.JSONB(eventData),
		ProviderCreatedAt: providerCreatedAt,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error

	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}

	return nil
}

// MarkProcessed marks a webhook event as processed
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()

	err := r.db.WithContext(ctx).
		Model(&model.BillingWebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.WebhookStatusCompleted,
			"processed_at": &now,
		}).Error

	if err != nil {
		r.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	return nil
}

// MarkFailed marks a webhook event as failed and keeps the cause
func (r *webhookEventRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()

	err := r.db.WithContext(ctx).
		Model(&model.BillingWebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":     model.WebhookStatusFailed,
			"last_error": &msg,
		}).Error

	if err != nil {
		r.logger.Error("Failed to mark webhook event failed",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}

	return nil
}
