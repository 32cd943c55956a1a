package dto

import "time"

type CheckoutRequestDTO struct {
	Plan   string `json:"plan" enum:"starter,pro" doc:"Plan to subscribe to"`
	Coupon string `json:"coupon,omitempty" doc:"Optional Stripe coupon id"`
}

type CouponRequestDTO struct {
	Coupon string `json:"coupon" minLength:"1"`
}

type URLResponseDTO struct {
	URL string `json:"url"`
}

type PlanDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxProjects int    `json:"max_projects"`
}

type SubscriptionResponseDTO struct {
	Status           string     `json:"status" enum:"none,trial,active,past_due,canceled"`
	HasAccess        bool       `json:"has_access"`
	Plan             *PlanDTO   `json:"plan,omitempty"`
	Coupon           *string    `json:"coupon,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}
