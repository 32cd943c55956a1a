package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors the user's Stripe subscription.
type Subscription struct {
	UserID               string             `db:"user_id" json:"user_id"`
	PlanID               string             `db:"plan_id" json:"plan_id"`
	StripeSubscriptionID *string            `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	Coupon               *string            `db:"coupon" json:"coupon,omitempty"`
	CurrentPeriodEnd     *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	EndedAt              *time.Time         `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// HasAccess reports whether the subscription allows creating and syncing
// projects at the given instant. Canceled subscriptions keep access until the
// end of the paid period.
func (s *Subscription) HasAccess(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case SubscriptionTrial, SubscriptionActive:
		return true
	case SubscriptionCanceled:
		return s.CurrentPeriodEnd != nil && now.Before(*s.CurrentPeriodEnd)
	default:
		return false
	}
}

// Plan is a billing tier. Plans are defined in code, prices come from config.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceID     string `json:"-"`
	MaxProjects int    `json:"max_projects"`
}
