// internal/app/store/subscriptions/store.go
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
)

// Subscription statuses that grant plan access.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
)

// ErrNotFound is returned when the user has no active subscription.
var ErrNotFound = errors.New("subscription not found")

// Subscription mirrors a Stripe subscription for one user.
type Subscription struct {
	ID                   string `db:"id"`
	ReferenceID          string `db:"reference_id"` // user id
	Plan                 string `db:"plan"`
	Status               string `db:"status"`
	StripeCustomerID     string `db:"stripe_customer_id"`
	StripeSubscriptionID string `db:"stripe_subscription_id"`
	PeriodStart          int64  `db:"period_start"`
	PeriodEnd            int64  `db:"period_end"`
	CancelAtPeriodEnd    bool   `db:"cancel_at_period_end"`
	CreatedAt            int64  `db:"created_at"`
	UpdatedAt            int64  `db:"updated_at"`
}

// Active reports whether the status grants access.
func (s Subscription) Active() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

type Store struct {
	h *database.Handle
}

func New(h *database.Handle) *Store {
	return &Store{h: h}
}

// Upsert writes sub keyed by its Stripe subscription id.
func (s *Store) Upsert(ctx context.Context, sub Subscription) (Subscription, error) {
	now := time.Now().UTC().Unix()
	sub.UpdatedAt = now

	var existingID string
	err := s.h.DB.GetContext(ctx, &existingID, s.h.Rebind(
		"SELECT id FROM subscriptions WHERE stripe_subscription_id = ?"), sub.StripeSubscriptionID)
	switch {
	case err == nil:
		sub.ID = existingID
		_, err = s.h.DB.NamedExecContext(ctx, `UPDATE subscriptions SET
			reference_id = :reference_id, plan = :plan, status = :status,
			stripe_customer_id = :stripe_customer_id, period_start = :period_start,
			period_end = :period_end, cancel_at_period_end = :cancel_at_period_end,
			updated_at = :updated_at
			WHERE id = :id`, sub)
	case errors.Is(err, sql.ErrNoRows):
		sub.ID = uuid.NewString()
		sub.CreatedAt = now
		_, err = s.h.DB.NamedExecContext(ctx, `INSERT INTO subscriptions
			(id, reference_id, plan, status, stripe_customer_id, stripe_subscription_id,
			 period_start, period_end, cancel_at_period_end, created_at, updated_at)
			VALUES (:id, :reference_id, :plan, :status, :stripe_customer_id, :stripe_subscription_id,
			 :period_start, :period_end, :cancel_at_period_end, :created_at, :updated_at)`, sub)
	}
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// GetActiveByUser returns the newest active or trialing subscription.
func (s *Store) GetActiveByUser(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	err := s.h.DB.GetContext(ctx, &sub, s.h.Rebind(`SELECT * FROM subscriptions
		WHERE reference_id = ? AND status IN (?, ?)
		ORDER BY updated_at DESC LIMIT 1`), userID, StatusActive, StatusTrialing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByStripeID returns the row mirroring a Stripe subscription.
func (s *Store) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	var sub Subscription
	err := s.h.DB.GetContext(ctx, &sub, s.h.Rebind(
		"SELECT * FROM subscriptions WHERE stripe_subscription_id = ?"), stripeSubscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SetStatus updates the status of a subscription by its Stripe id.
func (s *Store) SetStatus(ctx context.Context, stripeSubscriptionID, status string) error {
	res, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"UPDATE subscriptions SET status = ?, updated_at = ? WHERE stripe_subscription_id = ?"),
		status, time.Now().UTC().Unix(), stripeSubscriptionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
