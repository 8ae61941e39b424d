package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/menunoar/billing/internal/domain/errors"
	"github.com/menunoar/billing/internal/domain/model"
	"github.com/menunoar/billing/internal/domain/provider"
	"github.com/menunoar/billing/internal/domain/repository"
)

func TestSync_UnknownTenant(t *testing.T) {
	r := NewReconciler(newFakeTenantStore(), &fakeBilling{}, 0, zap.NewNop())

	_, err := r.Sync(context.Background(), uuid.New(), "owner@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrTenantNotFound)
}

func TestSync_AbsenceNeverDowngrades(t *testing.T) {
	tenantID := uuid.New()
	trialEnd := time.Now().UTC().AddDate(0, 0, 25)
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusTrialing,
		Plan:               model.PlanPro,
		TrialEndsAt:        &trialEnd,
	})
	before := store.get(tenantID)

	r := NewReconciler(store, &fakeBilling{}, 0, zap.NewNop())
	result, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)

	assert.False(t, result.Updated)
	assert.Equal(t, model.StatusTrialing, result.Status)
	assert.Zero(t, store.applies, "a negative sweep must never write")
	assert.Equal(t, before, store.get(tenantID))
}

func TestSync_BoundRefShortCircuitsEmailLookup(t *testing.T) {
	tenantID := uuid.New()
	refA := "cus_A"
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusPastDueOrCanceled,
		Plan:               model.PlanFree,
		BillingCustomerRef: &refA,
	})
	billing := &fakeBilling{
		subsByCustomer: map[string][]provider.Subscription{
			"cus_A": {{ID: "sub_a", CustomerRef: "cus_A", Status: "active"}},
			"cus_B": {{ID: "sub_b", CustomerRef: "cus_B", Status: "active"}},
		},
		customersByEmail: map[string][]provider.Customer{
			"owner@example.com": {{ID: "cus_B", Email: "owner@example.com"}},
		},
	}

	r := NewReconciler(store, billing, 0, zap.NewNop())
	result, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, model.StatusActive, result.Status)
	rec := store.get(tenantID)
	assert.Equal(t, "cus_A", *rec.BillingCustomerRef, "bound-ref strategy must win over email match")
	assert.Zero(t, billing.custListCalls, "email lookup must not run once the bound ref matched")
	assert.Zero(t, billing.sessionCalls)
}

func TestSync_EmailLookupBindsCustomerAndEndsTrial(t *testing.T) {
	tenantID := uuid.New()
	trialEnd := time.Now().UTC().AddDate(0, 0, 10)
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusTrialing,
		Plan:               model.PlanPro,
		TrialEndsAt:        &trialEnd,
	})
	billing := &fakeBilling{
		subsByCustomer: map[string][]provider.Subscription{
			"cus_dup":   nil, // duplicate signup with no subscription
			"cus_found": {{ID: "sub_1", CustomerRef: "cus_found", Status: "active"}},
		},
		customersByEmail: map[string][]provider.Customer{
			"owner@example.com": {
				{ID: "cus_dup", Email: "owner@example.com"},
				{ID: "cus_found", Email: "owner@example.com"},
			},
		},
	}

	r := NewReconciler(store, billing, 0, zap.NewNop())
	result, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, model.StatusActive, result.Status)

	rec := store.get(tenantID)
	assert.Equal(t, model.StatusActive, rec.SubscriptionStatus)
	assert.Equal(t, model.PlanPro, rec.Plan)
	require.NotNil(t, rec.BillingCustomerRef)
	assert.Equal(t, "cus_found", *rec.BillingCustomerRef)
	assert.Nil(t, rec.TrialEndsAt, "provider-confirmed subscription must end the internal trial")
	assert.NotNil(t, rec.LastReconciledAt)
}

func TestSync_CheckoutScanFallback(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusNone,
		Plan:               model.PlanFree,
	})
	billing := &fakeBilling{
		sessions: []provider.CheckoutSession{
			{ID: "cs_other", ClientReferenceID: uuid.New().String(), Complete: true, CustomerRef: "cus_x"},
			{ID: "cs_open", ClientReferenceID: tenantID.String(), Complete: false, CustomerRef: "cus_y"},
			{ID: "cs_hit", ClientReferenceID: tenantID.String(), Complete: true, CustomerRef: "cus_1", SubscriptionRef: "sub_1"},
		},
		subsByID: map[string]*provider.Subscription{
			"sub_1": {ID: "sub_1", CustomerRef: "cus_1", Status: "trialing"},
		},
	}

	r := NewReconciler(store, billing, 0, zap.NewNop())
	result, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, model.StatusTrialing, result.Status)

	rec := store.get(tenantID)
	require.NotNil(t, rec.BillingCustomerRef)
	assert.Equal(t, "cus_1", *rec.BillingCustomerRef)
	assert.Nil(t, rec.TrialEndsAt)
}

func TestSync_SecondRunSkipsWrite(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusNone,
		Plan:               model.PlanFree,
	})
	billing := &fakeBilling{
		subsByCustomer: map[string][]provider.Subscription{
			"cus_1": {{ID: "sub_1", CustomerRef: "cus_1", Status: "active"}},
		},
		customersByEmail: map[string][]provider.Customer{
			"owner@example.com": {{ID: "cus_1", Email: "owner@example.com"}},
		},
	}

	r := NewReconciler(store, billing, 0, zap.NewNop())

	first, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)
	assert.True(t, first.Updated)
	writesAfterFirst := store.applies

	second, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)
	assert.False(t, second.Updated)
	assert.Equal(t, model.StatusActive, second.Status)
	assert.Equal(t, writesAfterFirst, store.applies, "an unchanged sweep must skip the write")
}

func TestSync_ConcurrentWebhookBindingWins(t *testing.T) {
	tenantID := uuid.New()
	webhookRef := "cus_webhook"
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusNone,
		Plan:               model.PlanFree,
	})
	billing := &fakeBilling{
		subsByCustomer: map[string][]provider.Subscription{
			"cus_sweep": {{ID: "sub_s", CustomerRef: "cus_sweep", Status: "active"}},
		},
		customersByEmail: map[string][]provider.Customer{
			"owner@example.com": {{ID: "cus_sweep", Email: "owner@example.com"}},
		},
	}

	r := NewReconciler(store, billing, 0, zap.NewNop())
	// The webhook lands between the sweep's read and its write
	r.tenants = &raceInjectingStore{
		fakeTenantStore: store,
		beforeApply: func() {
			_, _ = store.ApplyByTenantID(context.Background(), tenantID, StateFromObservation(Observation{
				CustomerRef:    webhookRef,
				ProviderStatus: "active",
				Confidence:     ConfidenceWebhook,
			}, time.Now().UTC()))
		},
	}

	result, err := r.Sync(context.Background(), tenantID, "owner@example.com")
	require.NoError(t, err)

	assert.False(t, result.Updated)
	rec := store.get(tenantID)
	require.NotNil(t, rec.BillingCustomerRef)
	assert.Equal(t, webhookRef, *rec.BillingCustomerRef, "webhook binding must survive a racing sweep")
}

func TestSync_ProviderFailureLeavesStateIntact(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeTenantStore(&model.TenantSubscription{
		TenantID:           tenantID,
		Email:              "owner@example.com",
		SubscriptionStatus: model.StatusTrialing,
		Plan:               model.PlanPro,
	})
	billing := &fakeBilling{err: errors.New("timeout")}

	r := NewReconciler(store, billing, 0, zap.NewNop())
	_, err := r.Sync(context.Background(), tenantID, "owner@example.com")

	assert.Error(t, err)
	assert.Zero(t, store.applies)
	assert.Equal(t, model.StatusTrialing, store.get(tenantID).SubscriptionStatus)
}

// raceInjectingStore runs a callback right before the sweep's conditional
// write, simulating a webhook landing mid-flight.
type raceInjectingStore struct {
	*fakeTenantStore
	beforeApply func()
}

func (s *raceInjectingStore) ApplyIfRefUnchanged(ctx context.Context, tenantID uuid.UUID, expectedRef *string, state repository.SubscriptionState) (bool, error) {
	if s.beforeApply != nil {
		s.beforeApply()
	}
	return s.fakeTenantStore.ApplyIfRefUnchanged(ctx, tenantID, expectedRef, state)
}
