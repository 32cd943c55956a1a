package handler

import (
	"context"
	"time"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/model"
	"policybolt/internal/service"

	"github.com/rs/zerolog"
)

// BillingHandler exposes Stripe checkout, portal and subscription management.
// Stripe webhooks are served by StripeService.HandleWebhook on a raw route.
type BillingHandler struct {
	stripeService       *service.StripeService
	subscriptionService service.SubscriptionService
	now                 func() time.Time
	logger              zerolog.Logger
}

func NewBillingHandler(stripeService *service.StripeService, subscriptionService service.SubscriptionService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		stripeService:       stripeService,
		subscriptionService: subscriptionService,
		now:                 time.Now,
		logger:              logger,
	}
}

func (h *BillingHandler) subscriptionResponse(sub *model.Subscription, plan *model.Plan) dto.SubscriptionResponseDTO {
	if sub == nil {
		return dto.SubscriptionResponseDTO{Status: "none"}
	}
	resp := dto.SubscriptionResponseDTO{
		Status:           string(sub.Status),
		HasAccess:        sub.HasAccess(h.now()),
		Coupon:           sub.Coupon,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
	if plan != nil {
		resp.Plan = &dto.PlanDTO{ID: plan.ID, Name: plan.Name, MaxProjects: plan.MaxProjects}
	}
	return resp
}

func (h *BillingHandler) currentSubscription(ctx context.Context, userID string) (dto.SubscriptionResponseDTO, error) {
	sub, plan, err := h.subscriptionService.GetSubscription(ctx, userID)
	if err != nil {
		return dto.SubscriptionResponseDTO{}, toHumaError(h.logger, err, "Failed to get subscription")
	}
	return h.subscriptionResponse(sub, plan), nil
}

func (h *BillingHandler) GetSubscription(ctx context.Context, input *operation.GetSubscriptionInput) (*operation.GetSubscriptionOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	body, err := h.currentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &operation.GetSubscriptionOutput{Body: body}, nil
}

func (h *BillingHandler) Checkout(ctx context.Context, input *operation.CheckoutInput) (*operation.CheckoutOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	url, err := h.stripeService.CreateCheckoutSession(ctx, userID, input.Body.Plan, input.Body.Coupon)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to create checkout session")
	}
	return &operation.CheckoutOutput{Body: dto.URLResponseDTO{URL: url}}, nil
}

func (h *BillingHandler) Portal(ctx context.Context, input *operation.PortalInput) (*operation.PortalOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	url, err := h.stripeService.CreatePortalSession(ctx, userID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to create billing portal session")
	}
	return &operation.PortalOutput{Body: dto.URLResponseDTO{URL: url}}, nil
}

func (h *BillingHandler) ApplyCoupon(ctx context.Context, input *operation.ApplyCouponInput) (*operation.ApplyCouponOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.stripeService.ApplyCoupon(ctx, userID, input.Body.Coupon); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to apply coupon")
	}
	body, err := h.currentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &operation.ApplyCouponOutput{Body: body}, nil
}

// CancelSubscription ends the subscription now and deactivates all projects.
func (h *BillingHandler) CancelSubscription(ctx context.Context, input *operation.CancelSubscriptionInput) (*operation.CancelSubscriptionOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.stripeService.Cancel(ctx, userID); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to cancel subscription")
	}
	body, err := h.currentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &operation.CancelSubscriptionOutput{Body: body}, nil
}
