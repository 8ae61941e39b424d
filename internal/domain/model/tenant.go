package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the summarized projection of the billing provider's
// richer status vocabulary. Anything the provider reports that is not active
// or trialing collapses into StatusPastDueOrCanceled.
type SubscriptionStatus string

const (
	StatusNone              SubscriptionStatus = "none"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDueOrCanceled SubscriptionStatus = "past_due_or_canceled"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = StatusNone
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Entitled reports whether the status grants paid features.
func (s SubscriptionStatus) Entitled() bool {
	return s == StatusActive || s == StatusTrialing
}

// Plan is the feature tier derived from the subscription status.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Scan implements sql.Scanner interface
func (p *Plan) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = Plan(v)
	case []byte:
		*p = Plan(v)
	default:
		*p = PlanFree
	}
	return nil
}

// Value implements driver.Valuer interface
func (p Plan) Value() (driver.Value, error) {
	return string(p), nil
}

// InternalTrialDays is the length of the trial granted at provisioning time,
// tracked by this application and independent of the billing provider.
const InternalTrialDays = 30

// TenantSubscription is the per-tenant billing record. One row per restaurant
// owner, keyed by the stable tenant ID. BillingCustomerRef is assigned once a
// provider customer is matched and is never cleared by automated code, only
// replaced by a higher-confidence match.
type TenantSubscription struct {
	TenantID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	Email              string             `gorm:"not null;size:255;index" json:"email"`
	BillingCustomerRef *string            `gorm:"uniqueIndex;size:100" json:"billing_customer_ref,omitempty"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:subscription_status;not null;default:'none'" json:"subscription_status"`
	Plan               Plan               `gorm:"type:plan_tier;not null;default:'free'" json:"plan"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
	LastReconciledAt   *time.Time         `json:"last_reconciled_at,omitempty"`
	CreatedAt          time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TenantSubscription) TableName() string {
	return "tenant_subscriptions"
}

// NewTenantSubscription builds the record created at tenant provisioning.
// With an internal trial the tenant starts on pro features until the trial
// deadline; otherwise the record starts empty on the free plan.
func NewTenantSubscription(tenantID uuid.UUID, email string, withTrial bool) *TenantSubscription {
	rec := &TenantSubscription{
		TenantID:           tenantID,
		Email:              email,
		SubscriptionStatus: StatusNone,
		Plan:               PlanFree,
	}
	if withTrial {
		ends := time.Now().UTC().AddDate(0, 0, InternalTrialDays)
		rec.SubscriptionStatus = StatusTrialing
		rec.Plan = PlanPro
		rec.TrialEndsAt = &ends
	}
	return rec
}

// OnPaidPlan reports whether the tenant currently has pro features.
func (t *TenantSubscription) OnPaidPlan() bool {
	return t.Plan == PlanPro && t.SubscriptionStatus.Entitled()
}

// HasCustomerRef reports whether a provider customer has been bound.
func (t *TenantSubscription) HasCustomerRef() bool {
	return t.BillingCustomerRef != nil && *t.BillingCustomerRef != ""
}

// InternalTrialExpiredAt reports whether the internal trial has lapsed at the
// given time. A record with no trial deadline never expires (provider owns
// trial semantics once a subscription is bound).
func (t *TenantSubscription) InternalTrialExpiredAt(now time.Time) bool {
	if t.TrialEndsAt == nil {
		return false
	}
	return now.After(*t.TrialEndsAt)
}

// TrialDaysRemainingAt returns whole days left in the internal trial at the
// given time, rounding partial days up. Zero when no trial is running.
func (t *TenantSubscription) TrialDaysRemainingAt(now time.Time) int {
	if t.SubscriptionStatus != StatusTrialing || t.TrialEndsAt == nil {
		return 0
	}
	remaining := t.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours()/24 + 0.5)
}
