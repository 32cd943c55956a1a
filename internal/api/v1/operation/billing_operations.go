package operation

import "policybolt/internal/api/v1/dto"

type CheckoutInput struct {
	Body dto.CheckoutRequestDTO `json:"body"`
}

type CheckoutOutput struct {
	Body dto.URLResponseDTO `json:"body"`
}

type PortalInput struct{}

type PortalOutput struct {
	Body dto.URLResponseDTO `json:"body"`
}

type ApplyCouponInput struct {
	Body dto.CouponRequestDTO `json:"body"`
}

type ApplyCouponOutput struct {
	Body dto.SubscriptionResponseDTO `json:"body"`
}

type CancelSubscriptionInput struct{}

type CancelSubscriptionOutput struct {
	Body dto.SubscriptionResponseDTO `json:"body"`
}

type GetSubscriptionInput struct{}

type GetSubscriptionOutput struct {
	Body dto.SubscriptionResponseDTO `json:"body"`
}
