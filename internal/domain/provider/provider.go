package provider

import "context"

// BillingProvider is the synchronous query surface of the payments platform.
// These three query shapes, plus direct subscription retrieval, are everything
// the reconciliation engine depends on.
type BillingProvider interface {
	// SubscriptionsForCustomer lists the subscriptions held by a provider customer
	SubscriptionsForCustomer(ctx context.Context, customerRef string) ([]Subscription, error)

	// CustomersByEmail lists provider customers whose contact email matches.
	// Duplicate signups mean more than one candidate is possible.
	CustomersByEmail(ctx context.Context, email string) ([]Customer, error)

	// RecentCheckoutSessions lists the most recent checkout sessions, newest
	// first, bounded by limit
	RecentCheckoutSessions(ctx context.Context, limit int) ([]CheckoutSession, error)

	// SubscriptionByID retrieves a single subscription by its provider reference
	SubscriptionByID(ctx context.Context, subscriptionRef string) (*Subscription, error)
}

// Subscription is the provider's view of one subscription, reduced to the
// fields the engine reads.
type Subscription struct {
	ID          string
	CustomerRef string
	Status      string
}

// Entitled reports whether the provider status grants paid features.
func (s Subscription) Entitled() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// Customer is a provider customer account.
type Customer struct {
	ID    string
	Email string
}

// CheckoutSession is a provider checkout session. ClientReferenceID carries
// the tenant ID this application attached when sending the buyer to checkout.
type CheckoutSession struct {
	ID                string
	ClientReferenceID string
	CustomerRef       string
	SubscriptionRef   string
	Complete          bool
}
