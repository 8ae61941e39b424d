package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menunoar/billing/internal/domain/repository"
)

// CheckoutCompletedEvent is the projection of a completed provider checkout.
// TenantRef is the opaque back-reference this application attached when it
// sent the buyer to checkout; an event without it did not originate here.
type CheckoutCompletedEvent struct {
	TenantRef       string
	CustomerRef     string
	SubscriptionRef string
}

// SubscriptionChangedEvent is the projection of a provider subscription
// lifecycle notification (created, updated or deleted).
type SubscriptionChangedEvent struct {
	CustomerRef    string
	ProviderStatus string
}

// IngestService applies provider webhook events to tenant records. Delivery
// is at-least-once, unordered and concurrent, so every write here is a single
// UPDATE computed from the event alone; replaying an event lands on the same
// end state.
type IngestService struct {
	tenants repository.TenantRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(tenants repository.TenantRepository, logger *zap.Logger) *IngestService {
	return &IngestService{
		tenants: tenants,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CheckoutCompleted binds the provider customer to the tenant named by the
// checkout back-reference and activates the pro plan. Events without a usable
// back-reference, or referencing a tenant this datastore does not know, are
// logged and dropped; only a datastore failure is returned as an error so the
// provider redelivers.
func (s *IngestService) CheckoutCompleted(ctx context.Context, ev CheckoutCompletedEvent) error {
	if ev.TenantRef == "" {
		s.logger.Info("checkout event carries no tenant back-reference, dropping",
			zap.String("customer_ref", ev.CustomerRef))
		return nil
	}

	tenantID, err := uuid.Parse(ev.TenantRef)
	if err != nil {
		s.logger.Warn("checkout back-reference is not a tenant ID, dropping",
			zap.String("tenant_ref", ev.TenantRef),
			zap.String("customer_ref", ev.CustomerRef))
		return nil
	}

	obs := Observation{
		CustomerRef:    ev.CustomerRef,
		ProviderStatus: "active",
		Confidence:     ConfidenceWebhook,
	}
	state := StateFromObservation(obs, s.now())

	matched, err := s.tenants.ApplyByTenantID(ctx, tenantID, state)
	if err != nil {
		return fmt.Errorf("apply checkout completion: %w", err)
	}
	if !matched {
		s.logger.Warn("checkout back-reference matches no tenant record, dropping",
			zap.String("tenant_id", tenantID.String()),
			zap.String("customer_ref", ev.CustomerRef))
		return nil
	}

	s.logger.Info("tenant activated from checkout",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_ref", ev.CustomerRef),
		zap.String("subscription_ref", ev.SubscriptionRef))
	return nil
}

// SubscriptionChanged maps the provider status onto the summarized local one
// and writes it to the tenant bound to the event's customer reference. An
// unknown customer reference is logged and dropped; no tenant record is ever
// created from this path.
func (s *IngestService) SubscriptionChanged(ctx context.Context, ev SubscriptionChangedEvent) error {
	if ev.CustomerRef == "" {
		s.logger.Info("subscription event carries no customer reference, dropping")
		return nil
	}

	obs := Observation{
		ProviderStatus: ev.ProviderStatus,
		Confidence:     ConfidenceWebhook,
	}
	state := StateFromObservation(obs, s.now())

	matched, err := s.tenants.ApplyByCustomerRef(ctx, ev.CustomerRef, state)
	if err != nil {
		return fmt.Errorf("apply subscription change: %w", err)
	}
	if !matched {
		s.logger.Info("subscription event matches no tenant record, dropping",
			zap.String("customer_ref", ev.CustomerRef),
			zap.String("provider_status", ev.ProviderStatus))
		return nil
	}

	s.logger.Info("tenant subscription status updated",
		zap.String("customer_ref", ev.CustomerRef),
		zap.String("provider_status", ev.ProviderStatus),
		zap.String("status", string(state.Status)),
		zap.String("plan", string(state.Plan)))
	return nil
}
