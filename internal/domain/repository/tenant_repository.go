package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/menunoar/billing/internal/domain/model"
)

// SubscriptionState is the atomic field bundle written on every reconciliation
// attempt. Everything lands in one UPDATE so concurrent readers never see a
// torn record (pro plan with a stale trial deadline, for example). Status,
// Plan and LastReconciledAt are asserted by every observation; the customer
// reference and trial deadline are written only when their flag is set,
// otherwise the stored column is left untouched.
type SubscriptionState struct {
	Status           model.SubscriptionStatus
	Plan             model.Plan
	CustomerRef      *string
	BindCustomerRef  bool
	TrialEndsAt      *time.Time
	SetTrialEndsAt   bool
	LastReconciledAt *time.Time
}

// TenantRepository is the datastore surface for tenant subscription records.
// Reads return (nil, nil) on a miss; a miss is routine, not an error.
type TenantRepository interface {
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*model.TenantSubscription, error)
	GetByCustomerRef(ctx context.Context, customerRef string) (*model.TenantSubscription, error)

	// Create inserts the record built at tenant provisioning time
	Create(ctx context.Context, rec *model.TenantSubscription) error

	// ApplyByTenantID writes the state bundle keyed by tenant ID. Returns
	// false when no row matched.
	ApplyByTenantID(ctx context.Context, tenantID uuid.UUID, state SubscriptionState) (bool, error)

	// ApplyByCustomerRef writes the state bundle keyed by the bound customer
	// reference. Returns false when no row matched.
	ApplyByCustomerRef(ctx context.Context, customerRef string, state SubscriptionState) (bool, error)

	// ApplyIfRefUnchanged writes the state bundle only while the record's
	// customer reference still equals expectedRef (nil meaning unbound).
	// Returns false when the guard failed, which means a concurrent writer
	// bound a different customer first and that binding stands.
	ApplyIfRefUnchanged(ctx context.Context, tenantID uuid.UUID, expectedRef *string, state SubscriptionState) (bool, error)
}
