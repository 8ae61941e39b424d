package usecase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/menunoar/billing/internal/domain/model"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		providerStatus string
		expected       model.SubscriptionStatus
	}{
		{"active", model.StatusActive},
		{"trialing", model.StatusTrialing},
		{"canceled", model.StatusPastDueOrCanceled},
		{"past_due", model.StatusPastDueOrCanceled},
		{"unpaid", model.StatusPastDueOrCanceled},
		{"incomplete", model.StatusPastDueOrCanceled},
		{"incomplete_expired", model.StatusPastDueOrCanceled},
		{"paused", model.StatusPastDueOrCanceled},
		{"", model.StatusPastDueOrCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.providerStatus, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapProviderStatus(tt.providerStatus))
		})
	}
}

func TestStateFromObservation_EntitledClearsTrial(t *testing.T) {
	now := time.Now().UTC()

	for _, status := range []string{"active", "trialing"} {
		t.Run(status, func(t *testing.T) {
			state := StateFromObservation(Observation{
				CustomerRef:    "cus_1",
				ProviderStatus: status,
				Confidence:     ConfidenceWebhook,
			}, now)

			assert.Equal(t, model.PlanPro, state.Plan)
			assert.True(t, state.SetTrialEndsAt, "a provider-confirmed subscription must end the internal trial")
			assert.Nil(t, state.TrialEndsAt)
			assert.True(t, state.BindCustomerRef)
			assert.Equal(t, "cus_1", *state.CustomerRef)
		})
	}
}

func TestStateFromObservation_LapsedLeavesTrialColumnAlone(t *testing.T) {
	now := time.Now().UTC()

	state := StateFromObservation(Observation{
		CustomerRef:    "cus_9",
		ProviderStatus: "canceled",
		Confidence:     ConfidenceWebhook,
	}, now)

	assert.Equal(t, model.StatusPastDueOrCanceled, state.Status)
	assert.Equal(t, model.PlanFree, state.Plan)
	assert.False(t, state.SetTrialEndsAt)
}

func TestStateFromObservation_NoCustomerRefStaysUnbound(t *testing.T) {
	state := StateFromObservation(Observation{
		ProviderStatus: "canceled",
		Confidence:     ConfidenceWebhook,
	}, time.Now().UTC())

	assert.False(t, state.BindCustomerRef)
	assert.Nil(t, state.CustomerRef)
}

func TestStateChanges(t *testing.T) {
	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, 14)
	ref := "cus_1"
	otherRef := "cus_2"

	base := func() *model.TenantSubscription {
		return &model.TenantSubscription{
			TenantID:           uuid.New(),
			SubscriptionStatus: model.StatusActive,
			Plan:               model.PlanPro,
			BillingCustomerRef: &ref,
		}
	}

	tests := []struct {
		name     string
		rec      func() *model.TenantSubscription
		obs      Observation
		expected bool
	}{
		{
			name:     "identical observation is a no-op",
			rec:      base,
			obs:      Observation{CustomerRef: ref, ProviderStatus: "active"},
			expected: false,
		},
		{
			name:     "status change is a write",
			rec:      base,
			obs:      Observation{CustomerRef: ref, ProviderStatus: "canceled"},
			expected: true,
		},
		{
			name:     "different customer ref is a write",
			rec:      base,
			obs:      Observation{CustomerRef: otherRef, ProviderStatus: "active"},
			expected: true,
		},
		{
			name: "stale trial deadline is a write even with matching status",
			rec: func() *model.TenantSubscription {
				r := base()
				r.TrialEndsAt = &trialEnd
				return r
			},
			obs:      Observation{CustomerRef: ref, ProviderStatus: "active"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := StateFromObservation(tt.obs, now)
			assert.Equal(t, tt.expected, StateChanges(tt.rec(), state))
		})
	}
}
