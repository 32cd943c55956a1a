package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"policybolt/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// GetSubscription returns the user's subscription regardless of status, or nil if none exists.
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	// MarkEnded records that the Stripe subscription has ended. It reports
	// false when the subscription was already marked ended.
	MarkEnded(ctx context.Context, userID string, endedAt time.Time) (bool, error)
	SetCoupon(ctx context.Context, userID, coupon string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, plan_id, stripe_subscription_id, status::text, coupon, current_period_end, ended_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.UserID,
		&s.PlanID,
		&s.StripeSubscriptionID,
		&s.Status,
		&s.Coupon,
		&s.CurrentPeriodEnd,
		&s.EndedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, stripeSubscriptionID))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", stripeSubscriptionID, err)
	}
	return s, nil
}

// UpsertSubscription mirrors the Stripe subscription into the user's row.
// A nil coupon keeps the stored one. Switching to a new Stripe subscription
// clears ended_at.
func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	const q = `
		INSERT INTO subscriptions (user_id, plan_id, stripe_subscription_id, status, coupon, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4::subscription_status, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			coupon = COALESCE(EXCLUDED.coupon, subscriptions.coupon),
			current_period_end = EXCLUDED.current_period_end,
			ended_at = CASE
				WHEN EXCLUDED.stripe_subscription_id IS DISTINCT FROM subscriptions.stripe_subscription_id THEN NULL
				ELSE subscriptions.ended_at
			END,
			updated_at = NOW();
	`
	_, err := r.pool.Exec(ctx, q,
		sub.UserID,
		sub.PlanID,
		sub.StripeSubscriptionID,
		string(sub.Status),
		sub.Coupon,
		sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) MarkEnded(ctx context.Context, userID string, endedAt time.Time) (bool, error) {
	const q = `
		UPDATE subscriptions
		SET status = 'canceled',
			current_period_end = $2,
			ended_at = $2,
			updated_at = NOW()
		WHERE user_id = $1 AND ended_at IS NULL;
	`
	tag, err := r.pool.Exec(ctx, q, userID, endedAt)
	if err != nil {
		return false, fmt.Errorf("end subscription for user %s: %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) SetCoupon(ctx context.Context, userID, coupon string) error {
	const q = `UPDATE subscriptions SET coupon = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, coupon); err != nil {
		return fmt.Errorf("set coupon for user %s: %w", userID, err)
	}
	return nil
}
