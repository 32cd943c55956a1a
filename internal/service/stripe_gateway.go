package service

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
)

// BillingGateway is the slice of the Stripe API used by StripeService.
type BillingGateway interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	ApplyCoupon(ctx context.Context, subscriptionID, coupon string) (*stripe.Subscription, error)
}

type stripeGateway struct{}

// NewStripeGateway sets the global Stripe key and returns the live gateway.
func NewStripeGateway(secretKey string) BillingGateway {
	stripe.Key = secretKey
	return stripeGateway{}
}

func (stripeGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customerpkg.New(params)
}

func (stripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return checkoutsession.New(params)
}

func (stripeGateway) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return billingsession.New(params)
}

func (stripeGateway) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscriptionpkg.Get(id, params)
}

func (stripeGateway) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	return subscriptionpkg.Cancel(id, params)
}

func (stripeGateway) ApplyCoupon(ctx context.Context, subscriptionID, coupon string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Discounts: []*stripe.SubscriptionDiscountParams{{Coupon: stripe.String(coupon)}},
	}
	params.Context = ctx
	return subscriptionpkg.Update(subscriptionID, params)
}
