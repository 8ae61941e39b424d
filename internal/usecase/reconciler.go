package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/menunoar/billing/internal/domain/errors"
	"github.com/menunoar/billing/internal/domain/model"
	"github.com/menunoar/billing/internal/domain/provider"
	"github.com/menunoar/billing/internal/domain/repository"
)

// DefaultCheckoutScanLimit bounds the checkout-session fallback to a recent
// window. A webhook delayed past that many newer signups will not be found by
// the scan; the next sweep after the webhook lands still recovers the tenant.
const DefaultCheckoutScanLimit = 20

// SyncResult is what the sweep reports back to its caller.
type SyncResult struct {
	Updated bool                     `json:"updated"`
	Status  model.SubscriptionStatus `json:"status"`
}

// lookupStrategy is one way of resolving which provider subscription belongs
// to a tenant. attempt returns (nil, nil) on a miss; only transport failures
// are errors.
type lookupStrategy interface {
	name() string
	confidence() Confidence
	attempt(ctx context.Context, rec *model.TenantSubscription) (*provider.Subscription, error)
}

// Reconciler pulls the tenant's true state out of the billing provider when
// the push path may have been missed. Strategies run in confidence order and
// the first active or trialing subscription wins; a sweep that finds nothing
// never writes, so an absent webhook can never downgrade a tenant.
type Reconciler struct {
	tenants    repository.TenantRepository
	strategies []lookupStrategy
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconciler creates a reconciler with the standard strategy ordering:
// bound customer reference, then contact email, then the recent checkout
// session scan. scanLimit <= 0 falls back to DefaultCheckoutScanLimit.
func NewReconciler(tenants repository.TenantRepository, billing provider.BillingProvider, scanLimit int, logger *zap.Logger) *Reconciler {
	if scanLimit <= 0 {
		scanLimit = DefaultCheckoutScanLimit
	}
	return &Reconciler{
		tenants: tenants,
		strategies: []lookupStrategy{
			&boundRefStrategy{billing: billing},
			&emailStrategy{billing: billing},
			&checkoutScanStrategy{billing: billing, limit: scanLimit, logger: logger},
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Sync reconciles one tenant against the provider. The caller-supplied email
// takes precedence over the stored one for the email lookup, since the auth
// session is fresher than the provisioning-time record. Sync never creates a
// tenant record and never writes on a negative result. Returns
// ErrTenantNotFound when no record exists for the ID.
func (r *Reconciler) Sync(ctx context.Context, tenantID uuid.UUID, email string) (*SyncResult, error) {
	rec, err := r.tenants.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant record: %w", err)
	}
	if rec == nil {
		return nil, domainErrors.ErrTenantNotFound
	}
	if email != "" {
		rec.Email = email
	}

	sub, conf, err := r.resolve(ctx, rec)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		// No provider evidence. Absence is never a downgrade: a tenant
		// mid-internal-trial stays exactly as they are.
		r.logger.Info("sweep found no provider subscription, leaving record untouched",
			zap.String("tenant_id", rec.TenantID.String()),
			zap.String("status", string(rec.SubscriptionStatus)))
		return &SyncResult{Updated: false, Status: rec.SubscriptionStatus}, nil
	}

	obs := Observation{
		CustomerRef:    sub.CustomerRef,
		ProviderStatus: sub.Status,
		Confidence:     conf,
	}
	state := StateFromObservation(obs, r.now())

	if !StateChanges(rec, state) {
		return &SyncResult{Updated: false, Status: rec.SubscriptionStatus}, nil
	}

	applied, err := r.tenants.ApplyIfRefUnchanged(ctx, rec.TenantID, rec.BillingCustomerRef, state)
	if err != nil {
		return nil, fmt.Errorf("apply sweep result: %w", err)
	}
	if !applied {
		// A webhook bound a different customer while this sweep was in
		// flight. Direct event delivery outranks a search-based match, so
		// the concurrent binding stands and this result is discarded.
		r.logger.Info("sweep lost the write race to a concurrent event, discarding result",
			zap.String("tenant_id", rec.TenantID.String()),
			zap.String("candidate_ref", sub.CustomerRef))
		current, err := r.tenants.GetByTenantID(ctx, tenantID)
		if err != nil || current == nil {
			return &SyncResult{Updated: false, Status: rec.SubscriptionStatus}, nil
		}
		return &SyncResult{Updated: false, Status: current.SubscriptionStatus}, nil
	}

	r.logger.Info("sweep reconciled tenant from provider",
		zap.String("tenant_id", rec.TenantID.String()),
		zap.String("customer_ref", sub.CustomerRef),
		zap.String("provider_status", sub.Status),
		zap.String("status", string(state.Status)))
	return &SyncResult{Updated: true, Status: state.Status}, nil
}

// resolve runs the strategies in order and stops at the first one yielding an
// active or trialing subscription.
func (r *Reconciler) resolve(ctx context.Context, rec *model.TenantSubscription) (*provider.Subscription, Confidence, error) {
	for _, s := range r.strategies {
		sub, err := s.attempt(ctx, rec)
		if err != nil {
			return nil, 0, fmt.Errorf("%s lookup: %w", s.name(), err)
		}
		if sub != nil {
			r.logger.Debug("lookup strategy matched",
				zap.String("strategy", s.name()),
				zap.String("tenant_id", rec.TenantID.String()),
				zap.String("customer_ref", sub.CustomerRef))
			return sub, s.confidence(), nil
		}
	}
	return nil, 0, nil
}

// boundRefStrategy queries the provider directly through the customer
// reference already stored on the record. Cheapest and most precise, so it
// always runs first.
type boundRefStrategy struct {
	billing provider.BillingProvider
}

func (s *boundRefStrategy) name() string           { return "bound-customer-ref" }
func (s *boundRefStrategy) confidence() Confidence { return ConfidenceBoundRef }

func (s *boundRefStrategy) attempt(ctx context.Context, rec *model.TenantSubscription) (*provider.Subscription, error) {
	if !rec.HasCustomerRef() {
		return nil, nil
	}
	subs, err := s.billing.SubscriptionsForCustomer(ctx, *rec.BillingCustomerRef)
	if err != nil {
		return nil, err
	}
	return firstEntitled(subs), nil
}

// emailStrategy searches provider customers by the tenant's contact email.
// Duplicate signups can yield several candidates; the first one holding an
// active or trialing subscription wins and its customer reference becomes the
// new binding candidate.
type emailStrategy struct {
	billing provider.BillingProvider
}

func (s *emailStrategy) name() string           { return "contact-email" }
func (s *emailStrategy) confidence() Confidence { return ConfidenceEmail }

func (s *emailStrategy) attempt(ctx context.Context, rec *model.TenantSubscription) (*provider.Subscription, error) {
	if rec.Email == "" {
		return nil, nil
	}
	customers, err := s.billing.CustomersByEmail(ctx, rec.Email)
	if err != nil {
		return nil, err
	}
	for _, cust := range customers {
		subs, err := s.billing.SubscriptionsForCustomer(ctx, cust.ID)
		if err != nil {
			return nil, err
		}
		if sub := firstEntitled(subs); sub != nil {
			return sub, nil
		}
	}
	return nil, nil
}

// checkoutScanStrategy walks the provider's recent checkout sessions looking
// for a completed one whose back-reference is this tenant. Last resort for a
// missed or delayed webhook right after signup; the window is bounded, and a
// matching session older than the window is simply not found.
type checkoutScanStrategy struct {
	billing provider.BillingProvider
	limit   int
	logger  *zap.Logger
}

func (s *checkoutScanStrategy) name() string           { return "checkout-session-scan" }
func (s *checkoutScanStrategy) confidence() Confidence { return ConfidenceCheckoutScan }

func (s *checkoutScanStrategy) attempt(ctx context.Context, rec *model.TenantSubscription) (*provider.Subscription, error) {
	sessions, err := s.billing.RecentCheckoutSessions(ctx, s.limit)
	if err != nil {
		return nil, err
	}
	tenantRef := rec.TenantID.String()
	for _, sess := range sessions {
		if !sess.Complete || sess.ClientReferenceID != tenantRef {
			continue
		}
		if sess.SubscriptionRef != "" {
			sub, err := s.billing.SubscriptionByID(ctx, sess.SubscriptionRef)
			if err != nil {
				return nil, err
			}
			if sub != nil && sub.Entitled() {
				if sub.CustomerRef == "" {
					sub.CustomerRef = sess.CustomerRef
				}
				return sub, nil
			}
			continue
		}
		if sess.CustomerRef != "" {
			subs, err := s.billing.SubscriptionsForCustomer(ctx, sess.CustomerRef)
			if err != nil {
				return nil, err
			}
			if sub := firstEntitled(subs); sub != nil {
				return sub, nil
			}
		}
	}
	if len(sessions) == s.limit {
		s.logger.Debug("checkout session window exhausted without a match",
			zap.String("tenant_id", tenantRef),
			zap.Int("window", s.limit))
	}
	return nil, nil
}

func firstEntitled(subs []provider.Subscription) *provider.Subscription {
	for i := range subs {
		if subs[i].Entitled() {
			return &subs[i]
		}
	}
	return nil
}
