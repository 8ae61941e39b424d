package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/menunoar/billing/internal/domain/model"
	domainRepo "github.com/menunoar/billing/internal/domain/repository"
)

type tenantRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant subscription repository
func NewTenantRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TenantRepository {
	return &tenantRepository{
		db:     db,
		logger: logger,
	}
}

// GetByTenantID retrieves the subscription record for a tenant
func (r *tenantRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*model.TenantSubscription, error) {
	var rec model.TenantSubscription

	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&rec).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get tenant record",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tenant record: %w", err)
	}

	return &rec, nil
}

// GetByCustomerRef retrieves the subscription record bound to a provider customer
func (r *tenantRepository) GetByCustomerRef(ctx context.Context, customerRef string) (*model.TenantSubscription, error) {
	var rec model.TenantSubscription

	err := r.db.WithContext(ctx).
		Where("billing_customer_ref = ?", customerRef).
		First(&rec).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get tenant record by customer ref",
			zap.String("customer_ref", customerRef),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tenant record: %w", err)
	}

	return &rec, nil
}

// Create inserts a freshly provisioned tenant record
func (r *tenantRepository) Create(ctx context.Context, rec *model.TenantSubscription) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		r.logger.Error("Failed to create tenant record",
			zap.String("tenant_id", rec.TenantID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create tenant record: %w", err)
	}
	return nil
}

// ApplyByTenantID writes the state bundle as one UPDATE keyed by tenant ID
func (r *tenantRepository) ApplyByTenantID(ctx context.Context, tenantID uuid.UUID, state domainRepo.SubscriptionState) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.TenantSubscription{}).
		Where("tenant_id = ?", tenantID).
		Updates(stateUpdates(state))

	if tx.Error != nil {
		r.logger.Error("Failed to apply subscription state",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(tx.Error))
		return false, fmt.Errorf("failed to apply subscription state: %w", tx.Error)
	}

	return tx.RowsAffected > 0, nil
}

// ApplyByCustomerRef writes the state bundle as one UPDATE keyed by the bound
// provider customer
func (r *tenantRepository) ApplyByCustomerRef(ctx context.Context, customerRef string, state domainRepo.SubscriptionState) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.TenantSubscription{}).
		Where("billing_customer_ref = ?", customerRef).
		Updates(stateUpdates(state))

	if tx.Error != nil {
		r.logger.Error("Failed to apply subscription state by customer ref",
			zap.String("customer_ref", customerRef),
			zap.Error(tx.Error))
		return false, fmt.Errorf("failed to apply subscription state: %w", tx.Error)
	}

	return tx.RowsAffected > 0, nil
}

// ApplyIfRefUnchanged is the conditional variant used by the sweep: the UPDATE
// only matches while the stored customer reference is still what the sweep
// read, so a concurrent webhook binding wins the race and the sweep's write
// becomes a no-op.
func (r *tenantRepository) ApplyIfRefUnchanged(ctx context.Context, tenantID uuid.UUID, expectedRef *string, state domainRepo.SubscriptionState) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&model.TenantSubscription{}).
		Where("tenant_id = ?", tenantID)

	if expectedRef == nil {
		query = query.Where("billing_customer_ref IS NULL")
	} else {
		query = query.Where("billing_customer_ref = ?", *expectedRef)
	}

	tx := query.Updates(stateUpdates(state))
	if tx.Error != nil {
		r.logger.Error("Failed to apply conditional subscription state",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(tx.Error))
		return false, fmt.Errorf("failed to apply subscription state: %w", tx.Error)
	}

	return tx.RowsAffected > 0, nil
}

// stateUpdates flattens the bundle into a single Updates map. Columns whose
// set-flag is off stay out of the map and keep their stored value.
func stateUpdates(state domainRepo.SubscriptionState) map[string]interface{} {
	updates := map[string]interface{}{
		"subscription_status": state.Status,
		"plan":                state.Plan,
		"updated_at":          gorm.Expr("now()"),
	}
	if state.BindCustomerRef {
		updates["billing_customer_ref"] = state.CustomerRef
	}
	if state.SetTrialEndsAt {
		updates["trial_ends_at"] = state.TrialEndsAt
	}
	if state.LastReconciledAt != nil {
		updates["last_reconciled_at"] = state.LastReconciledAt
	}
	return updates
}
