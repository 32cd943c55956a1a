package service

import (
	"context"
	"time"

	"policybolt/internal/model"
	"policybolt/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	// GetSubscription returns the user's subscription and its plan. The
	// subscription is nil when the user never subscribed.
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, *model.Plan, error)
	// RequireAccess returns the user's plan when the subscription allows
	// creating and syncing projects, ErrSubscriptionRequired otherwise.
	RequireAccess(ctx context.Context, userID string) (*model.Plan, error)
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	plans  *PlanCatalog
	now    func() time.Time
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, plans *PlanCatalog, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		plans:  plans,
		now:    time.Now,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, *model.Plan, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, nil
	}
	plan, ok := s.plans.ByID(sub.PlanID)
	if !ok {
		s.logger.Warn().Str("user_id", userID).Str("plan_id", sub.PlanID).Msg("Subscription references unknown plan")
		return sub, nil, nil
	}
	return sub, &plan, nil
}

func (s *subscriptionService) RequireAccess(ctx context.Context, userID string) (*model.Plan, error) {
	sub, plan, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.HasAccess(s.now()) || plan == nil {
		return nil, ErrSubscriptionRequired
	}
	return plan, nil
}
