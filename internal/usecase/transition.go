package usecase

import (
	"time"

	"github.com/menunoar/billing/internal/domain/model"
	"github.com/menunoar/billing/internal/domain/repository"
)

// Confidence ranks how a provider observation was obtained. Direct event
// delivery outranks any search-based match, and a match through the already
// bound customer reference outranks the broader searches.
type Confidence int

const (
	ConfidenceCheckoutScan Confidence = iota + 1
	ConfidenceEmail
	ConfidenceBoundRef
	ConfidenceWebhook
)

// Observation is one piece of provider truth about a tenant, produced either
// by a verified webhook event or by a sweep lookup strategy. Both paths feed
// it through the same transition logic below, which is the only place the
// merge rules live.
type Observation struct {
	CustomerRef    string
	ProviderStatus string
	Confidence     Confidence
}

// MapProviderStatus projects the provider's status vocabulary onto the
// summarized local one. Active and trialing pass through; everything else
// the provider can report collapses into past_due_or_canceled.
func MapProviderStatus(providerStatus string) model.SubscriptionStatus {
	switch providerStatus {
	case "active":
		return model.StatusActive
	case "trialing":
		return model.StatusTrialing
	default:
		return model.StatusPastDueOrCanceled
	}
}

// StateFromObservation computes the atomic state bundle a provider observation
// maps to. A subscription the provider confirms as active or trialing grants
// the pro plan and ends the internal trial: the provider owns trial semantics
// from that point on. Any other status drops the tenant to free but leaves the
// trial deadline column alone, since an already-lapsed provider subscription
// says nothing about an internal trial.
func StateFromObservation(obs Observation, now time.Time) repository.SubscriptionState {
	status := MapProviderStatus(obs.ProviderStatus)
	state := repository.SubscriptionState{
		Status:           status,
		Plan:             model.PlanFree,
		LastReconciledAt: &now,
	}
	if status.Entitled() {
		state.Plan = model.PlanPro
		state.TrialEndsAt = nil
		state.SetTrialEndsAt = true
	}
	if obs.CustomerRef != "" {
		state.CustomerRef = &obs.CustomerRef
		state.BindCustomerRef = true
	}
	return state
}

// StateChanges reports whether applying state to rec would alter any of the
// durable fields. LastReconciledAt is advisory and deliberately excluded, so
// a sweep that finds nothing new can skip the write entirely.
func StateChanges(rec *model.TenantSubscription, state repository.SubscriptionState) bool {
	if rec.SubscriptionStatus != state.Status || rec.Plan != state.Plan {
		return true
	}
	if state.BindCustomerRef && !refsEqual(rec.BillingCustomerRef, state.CustomerRef) {
		return true
	}
	if state.SetTrialEndsAt && !timesEqual(rec.TrialEndsAt, state.TrialEndsAt) {
		return true
	}
	return false
}

func refsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
