package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menunoar/billing/internal/domain/model"
	"github.com/menunoar/billing/internal/domain/provider"
	"github.com/menunoar/billing/internal/domain/repository"
)

// fakeTenantStore mirrors the repository's UPDATE semantics in memory so the
// engine's write paths can be exercised end to end.
type fakeTenantStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.TenantSubscription
	applies int
	failErr error
}

func newFakeTenantStore(recs ...*model.TenantSubscription) *fakeTenantStore {
	s := &fakeTenantStore{records: make(map[uuid.UUID]*model.TenantSubscription)}
	for _, r := range recs {
		clone := *r
		s.records[r.TenantID] = &clone
	}
	return s
}

func (s *fakeTenantStore) get(tenantID uuid.UUID) model.TenantSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[tenantID]
}

func (s *fakeTenantStore) GetByTenantID(_ context.Context, tenantID uuid.UUID) (*model.TenantSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	rec, ok := s.records[tenantID]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *fakeTenantStore) GetByCustomerRef(_ context.Context, customerRef string) (*model.TenantSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.BillingCustomerRef != nil && *rec.BillingCustomerRef == customerRef {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeTenantStore) Create(_ context.Context, rec *model.TenantSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.TenantID] = &clone
	return nil
}

func (s *fakeTenantStore) ApplyByTenantID(_ context.Context, tenantID uuid.UUID, state repository.SubscriptionState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	rec, ok := s.records[tenantID]
	if !ok {
		return false, nil
	}
	s.apply(rec, state)
	return true, nil
}

func (s *fakeTenantStore) ApplyByCustomerRef(_ context.Context, customerRef string, state repository.SubscriptionState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	for _, rec := range s.records {
		if rec.BillingCustomerRef != nil && *rec.BillingCustomerRef == customerRef {
			s.apply(rec, state)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTenantStore) ApplyIfRefUnchanged(_ context.Context, tenantID uuid.UUID, expectedRef *string, state repository.SubscriptionState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	rec, ok := s.records[tenantID]
	if !ok {
		return false, nil
	}
	switch {
	case expectedRef == nil && rec.BillingCustomerRef != nil:
		return false, nil
	case expectedRef != nil && (rec.BillingCustomerRef == nil || *rec.BillingCustomerRef != *expectedRef):
		return false, nil
	}
	s.apply(rec, state)
	return true, nil
}

func (s *fakeTenantStore) apply(rec *model.TenantSubscription, state repository.SubscriptionState) {
	rec.SubscriptionStatus = state.Status
	rec.Plan = state.Plan
	if state.BindCustomerRef {
		rec.BillingCustomerRef = state.CustomerRef
	}
	if state.SetTrialEndsAt {
		rec.TrialEndsAt = state.TrialEndsAt
	}
	if state.LastReconciledAt != nil {
		rec.LastReconciledAt = state.LastReconciledAt
	}
	rec.UpdatedAt = time.Now()
	s.applies++
}

// fakeBilling serves canned provider data and counts calls per query shape so
// strategy ordering and early exit are observable.
type fakeBilling struct {
	subsByCustomer   map[string][]provider.Subscription
	customersByEmail map[string][]provider.Customer
	sessions         []provider.CheckoutSession
	subsByID         map[string]*provider.Subscription

	subListCalls  int
	custListCalls int
	sessionCalls  int
	err           error
}

func (f *fakeBilling) SubscriptionsForCustomer(_ context.Context, customerRef string) ([]provider.Subscription, error) {
	f.subListCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subsByCustomer[customerRef], nil
}

func (f *fakeBilling) CustomersByEmail(_ context.Context, email string) ([]provider.Customer, error) {
	f.custListCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.customersByEmail[email], nil
}

func (f *fakeBilling) RecentCheckoutSessions(_ context.Context, limit int) ([]provider.CheckoutSession, error) {
	f.sessionCalls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) > limit {
		return f.sessions[:limit], nil
	}
	return f.sessions, nil
}

func (f *fakeBilling) SubscriptionByID(_ context.Context, subscriptionRef string) (*provider.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subsByID[subscriptionRef], nil
}
