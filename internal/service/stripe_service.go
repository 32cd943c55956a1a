package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"policybolt/internal/config"
	"policybolt/internal/model"
	"policybolt/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBodyBytes = 65536

// StripeService manages Stripe integration
type StripeService struct {
	cfg        *config.Config
	gateway    BillingGateway
	plans      *PlanCatalog
	userRepo   repository.UserRepository
	subRepo    repository.SubscriptionRepository
	projectSvc ProjectService
	email      EmailService
	now        func() time.Time
	logger     zerolog.Logger
}

// NewStripeService returns the billing service with a scoped logger
func NewStripeService(
	cfg *config.Config,
	gateway BillingGateway,
	plans *PlanCatalog,
	userRepo repository.UserRepository,
	subRepo repository.SubscriptionRepository,
	projectSvc ProjectService,
	email EmailService,
	logger zerolog.Logger,
) *StripeService {
	return &StripeService{
		cfg:        cfg,
		gateway:    gateway,
		plans:      plans,
		userRepo:   userRepo,
		subRepo:    subRepo,
		projectSvc: projectSvc,
		email:      email,
		now:        time.Now,
		logger:     logger.With().Str("service", "StripeService").Logger(),
	}
}

// getUserIDFromEvent is a helper method to resolve user ID from webhook metadata or customer ID
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customer *stripe.Customer) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customer == nil || customer.ID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	s.logger.Warn().Str("stripe_customer_id", customer.ID).Msg("Missing user_id metadata; looking up user by customer ID")
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("no user found for customer ID: %s", customer.ID)
	}
	return u.UserID, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	cust, err := s.gateway.CreateCustomer(ctx, &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.SetStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id in user_profiles")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

func (s *StripeService) getUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user")
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateCheckoutSession creates a subscription-mode Checkout session with the
// plan's trial and an optional coupon.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, planID, coupon string) (string, error) {
	plan, ok := s.plans.ByID(planID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidPlan, planID)
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	existing, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		return "", err
	}

	meta := map[string]string{"user_id": userID, "plan_id": plan.ID}
	subData := &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	// Trials are only offered to users who never subscribed.
	if existing == nil && s.cfg.StripeTrialDays > 0 {
		subData.TrialPeriodDays = stripe.Int64(s.cfg.StripeTrialDays)
	}

	returnURL := s.cfg.StripePortalReturnURL
	params := &stripe.CheckoutSessionParams{
		Customer:         stripe.String(customerID),
		LineItems:        []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(plan.PriceID), Quantity: stripe.Int64(1)}},
		Mode:             stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:       stripe.String(returnURL + "?status=success"),
		CancelURL:        stripe.String(returnURL + "?status=cancel"),
		Metadata:         meta,
		SubscriptionData: subData,
	}
	if c := strings.TrimSpace(coupon); c != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(c)}}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan.ID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoStripeCustomer
	}
	sess, err := s.gateway.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  user.StripeCustomerID,
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripeService) stripeSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		return nil, ErrNoSubscription
	}
	return sub, nil
}

// ApplyCoupon attaches a coupon to the user's current subscription.
func (s *StripeService) ApplyCoupon(ctx context.Context, userID, coupon string) error {
	coupon = strings.TrimSpace(coupon)
	if coupon == "" {
		return errors.New("coupon is required")
	}
	sub, err := s.stripeSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.gateway.ApplyCoupon(ctx, *sub.StripeSubscriptionID, coupon); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply coupon")
		return fmt.Errorf("apply coupon: %w", err)
	}
	return s.subRepo.SetCoupon(ctx, userID, coupon)
}

// Cancel ends the subscription immediately, deactivates every project of the
// user and notifies them.
func (s *StripeService) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.stripeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gateway.CancelSubscription(ctx, *sub.StripeSubscriptionID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to cancel Stripe subscription")
		return nil, fmt.Errorf("cancel stripe subscription: %w", err)
	}

	now := s.now().UTC()
	if err := s.endSubscription(ctx, userID, now); err != nil {
		return nil, err
	}
	sub.Status = model.SubscriptionCanceled
	sub.CurrentPeriodEnd = &now
	sub.EndedAt = &now
	return sub, nil
}

// endSubscription mirrors a terminated subscription: the row is marked
// ended, projects are deactivated and the owner is emailed. It runs once per
// Stripe subscription; the deleted event that follows an immediate cancel is a
// no-op.
func (s *StripeService) endSubscription(ctx context.Context, userID string, endedAt time.Time) error {
	ended, err := s.subRepo.MarkEnded(ctx, userID, endedAt)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to mark subscription ended")
		return err
	}
	if !ended {
		s.logger.Info().Str("user_id", userID).Msg("Subscription already ended, skipping")
		return nil
	}
	if _, err := s.projectSvc.DeactivateAll(ctx, userID); err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("User not found; skipping cancellation email")
		return nil
	}
	if err := s.email.Send(ctx, user.Email, TemplateSubscriptionCanceled, EmailData{Name: user.Name}); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to send cancellation email")
	}
	return nil
}

// mirrorStatus maps a Stripe subscription onto the stored status.
func mirrorStatus(ss *stripe.Subscription) model.SubscriptionStatus {
	if ss.CancelAtPeriodEnd {
		return model.SubscriptionCanceled
	}
	switch ss.Status {
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionTrial
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionPastDue
	}
}

func periodEnd(ss *stripe.Subscription) *time.Time {
	if ss.Items == nil || len(ss.Items.Data) == 0 || ss.Items.Data[0].CurrentPeriodEnd == 0 {
		if ss.TrialEnd == 0 {
			return nil
		}
		t := time.Unix(ss.TrialEnd, 0).UTC()
		return &t
	}
	t := time.Unix(ss.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	return &t
}

// syncSubscription upserts the mirrored row from a Stripe subscription.
func (s *StripeService) syncSubscription(ctx context.Context, userID string, ss *stripe.Subscription, status model.SubscriptionStatus) error {
	if ss.Items == nil || len(ss.Items.Data) == 0 || ss.Items.Data[0].Price == nil {
		return fmt.Errorf("subscription %s has no items", ss.ID)
	}
	priceID := ss.Items.Data[0].Price.ID
	plan, ok := s.plans.ByPriceID(priceID)
	if !ok {
		return fmt.Errorf("%w: unknown price %s", ErrInvalidPlan, priceID)
	}

	subID := ss.ID
	return s.subRepo.UpsertSubscription(ctx, &model.Subscription{
		UserID:               userID,
		PlanID:               plan.ID,
		StripeSubscriptionID: &subID,
		Status:               status,
		CurrentPeriodEnd:     periodEnd(ss),
	})
}

// HandleWebhook processes Stripe webhook events
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			s.logger.Info().Str("session_id", cs.ID).Msg("Checkout session has no subscription, skipping")
			break
		}
		userID, err := s.getUserIDFromEvent(ctx, cs.Metadata, cs.Customer)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", cs.ID).Msg("Failed to determine user ID from checkout session")
			http.Error(w, "failed to identify user", http.StatusBadRequest)
			return
		}
		// Fetch full subscription object to get timing and price details
		ss, err := s.gateway.GetSubscription(ctx, cs.Subscription.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription details")
			http.Error(w, "failed to fetch subscription details", http.StatusInternalServerError)
			return
		}
		if err := s.syncSubscription(ctx, userID, ss, mirrorStatus(ss)); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save subscription on checkout.session.completed")
			http.Error(w, "failed to save subscription", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.created", "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Invalid subscription payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		userID, err := s.getUserIDFromEvent(ctx, ss.Metadata, ss.Customer)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", ss.ID).Msg("Failed to determine user ID from subscription")
			http.Error(w, "failed to identify user", http.StatusInternalServerError)
			return
		}
		if err := s.syncSubscription(ctx, userID, &ss, mirrorStatus(&ss)); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", ss.ID).Msg("Failed to update subscription")
			http.Error(w, "failed to update subscription", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		userID, err := s.getUserIDFromEvent(ctx, ss.Metadata, ss.Customer)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", ss.ID).Msg("Failed to determine user ID from subscription")
			http.Error(w, "failed to identify user", http.StatusInternalServerError)
			return
		}
		endedAt := s.now().UTC()
		if ss.EndedAt > 0 {
			endedAt = time.Unix(ss.EndedAt, 0).UTC()
		}
		if err := s.endSubscription(ctx, userID, endedAt); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to end subscription on customer.subscription.deleted")
			http.Error(w, "failed to end subscription", http.StatusInternalServerError)
			return
		}

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			s.logger.Error().Err(err).Msg("Invalid invoice.payment_failed payload")
			http.Error(w, "invalid invoice data", http.StatusBadRequest)
			return
		}
		userID, err := s.getUserIDFromEvent(ctx, invoice.Metadata, invoice.Customer)
		if err != nil {
			s.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("Failed to determine user ID from invoice")
			http.Error(w, "failed to identify user", http.StatusInternalServerError)
			return
		}

		stored, err := s.subRepo.GetSubscription(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch stored subscription")
			http.Error(w, "failed to fetch subscription", http.StatusInternalServerError)
			return
		}
		if stored == nil || stored.StripeSubscriptionID == nil {
			s.logger.Info().Str("invoice_id", invoice.ID).Msg("User has no subscription, skipping subscription update")
			break
		}
		subID := *stored.StripeSubscriptionID

		ss, err := s.gateway.GetSubscription(ctx, subID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to fetch subscription details")
			http.Error(w, "failed to fetch subscription details", http.StatusInternalServerError)
			return
		}
		if err := s.syncSubscription(ctx, userID, ss, model.SubscriptionPastDue); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to mark subscription as past_due on invoice.payment_failed")
			http.Error(w, "failed to mark past_due", http.StatusInternalServerError)
			return
		}

	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	w.WriteHeader(http.StatusOK)
}
