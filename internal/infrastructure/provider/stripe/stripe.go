package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"

	"github.com/menunoar/billing/internal/domain/provider"
)

// DefaultCallTimeout bounds each Stripe API call so a slow provider cannot
// stall a dashboard load for long.
const DefaultCallTimeout = 10 * time.Second

// Client implements provider.BillingProvider against the Stripe API. The API
// key is installed once at construction; every call runs under a per-call
// timeout derived from the caller's context.
type Client struct {
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewClient creates a Stripe-backed billing provider. timeout <= 0 falls back
// to DefaultCallTimeout.
func NewClient(apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	stripe.Key = apiKey
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		callTimeout: timeout,
		logger:      logger,
	}
}

// SubscriptionsForCustomer lists all subscriptions held by a Stripe customer
func (c *Client) SubscriptionsForCustomer(ctx context.Context, customerRef string) ([]provider.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerRef),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var subs []provider.Subscription
	iter := subscription.List(params)
	for iter.Next() {
		subs = append(subs, toProviderSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions: %w", err)
	}

	return subs, nil
}

// CustomersByEmail lists Stripe customers whose contact email matches
func (c *Client) CustomersByEmail(ctx context.Context, email string) ([]provider.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx

	var customers []provider.Customer
	iter := customer.List(params)
	for iter.Next() {
		cust := iter.Customer()
		customers = append(customers, provider.Customer{
			ID:    cust.ID,
			Email: cust.Email,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe customers: %w", err)
	}

	return customers, nil
}

// RecentCheckoutSessions lists the most recent checkout sessions, newest first
func (c *Client) RecentCheckoutSessions(ctx context.Context, limit int) ([]provider.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var sessions []provider.CheckoutSession
	iter := checkoutsession.List(params)
	for iter.Next() {
		sess := iter.CheckoutSession()
		out := provider.CheckoutSession{
			ID:                sess.ID,
			ClientReferenceID: sess.ClientReferenceID,
			Complete:          sess.Status == stripe.CheckoutSessionStatusComplete,
		}
		if sess.Customer != nil {
			out.CustomerRef = sess.Customer.ID
		}
		if sess.Subscription != nil {
			out.SubscriptionRef = sess.Subscription.ID
		}
		sessions = append(sessions, out)
		if len(sessions) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe checkout sessions: %w", err)
	}

	return sessions, nil
}

// SubscriptionByID retrieves one subscription by its Stripe ID
func (c *Client) SubscriptionByID(ctx context.Context, subscriptionRef string) (*provider.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionRef, params)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription: %w", err)
	}

	out := toProviderSubscription(sub)
	return &out, nil
}

// PortalURL creates a billing portal session so the customer can manage the
// subscription on Stripe's hosted pages.
func (c *Client) PortalURL(ctx context.Context, customerRef, returnURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	ps, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe portal session: %w", err)
	}

	c.logger.Info("Portal session created",
		zap.String("customer_ref", customerRef),
		zap.String("portal_session_id", ps.ID))
	return ps.URL, nil
}

func toProviderSubscription(sub *stripe.Subscription) provider.Subscription {
	out := provider.Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerRef = sub.Customer.ID
	}
	return out
}
