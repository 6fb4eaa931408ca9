package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	FindByPurchaseID(ctx context.Context, db *gorm.DB, purchaseID string) (*Purchase, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Purchase, error)

	// MarkPaid is a status-guarded update: it only fires while the row is
	// still `created`, so duplicate deliveries are harmless no-ops.
	MarkPaid(ctx context.Context, db *gorm.DB, purchaseID string, update PaidUpdate) (bool, error)

	// UpsertPaidBySession reconstructs a missing row from webhook metadata,
	// anchored on the session ID. On conflict only mutable status fields
	// are touched; a refunded row is never demoted back to paid.
	UpsertPaidBySession(ctx context.Context, db *gorm.DB, purchase *Purchase) error

	// MarkRefunded fires only while the row is `paid`.
	MarkRefunded(ctx context.Context, db *gorm.DB, purchaseID string, at time.Time) (bool, error)

	UpdateSubscriptionState(ctx context.Context, db *gorm.DB, subscriptionID string, update SubscriptionUpdate) error
	FindLatestPaidBySubscription(ctx context.Context, db *gorm.DB, subscriptionID string) (*Purchase, error)

	// ClaimUpsell atomically claims the one-shot upsell DM for a purchase.
	// At most one caller ever sees true, however often the event replays.
	ClaimUpsell(ctx context.Context, db *gorm.DB, purchaseID string, at time.Time) (bool, error)
}

// PaidUpdate carries the mutable fields a paid event is allowed to set.
type PaidUpdate struct {
	PaidAt             time.Time
	PaymentIntentID    *string
	SubscriptionID     *string
	SubscriptionStatus *string
	CancelAtPeriodEnd  bool
	CurrentPeriodEnd   *time.Time
}

type SubscriptionUpdate struct {
	SubscriptionStatus string
	CancelAtPeriodEnd  bool
	CurrentPeriodEnd   *time.Time
}
