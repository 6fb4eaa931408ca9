// Package domain contains the entitlement ledger: one row per
// (guild, user, product) recording what the user currently owns.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/oakline/storefront/internal/money"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

type Entitlement struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	GuildID   string `json:"guild_id" gorm:"type:text;not null;uniqueIndex:idx_entitlements_owner,priority:1"`
	UserID    string `json:"user_id" gorm:"type:text;not null;uniqueIndex:idx_entitlements_owner,priority:2"`
	ProductID int64  `json:"product_id" gorm:"not null;uniqueIndex:idx_entitlements_owner,priority:3"`

	Status          Status        `json:"status" gorm:"type:text;not null"`
	PlanKey         money.PlanKey `json:"plan_key" gorm:"type:text;not null"`
	SubscriptionRef *string       `json:"subscription_ref,omitempty" gorm:"type:text"`
	ReferenceCode   *string       `json:"reference_code,omitempty" gorm:"type:text"`

	GrantedAt time.Time  `json:"granted_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy *string    `json:"revoked_by,omitempty" gorm:"type:text"`
}

func (Entitlement) TableName() string { return "entitlements" }

// Gate denials. Each names the condition that blocked the purchase so the
// caller can show the user a precise reason.
var (
	ErrLifetimeOwned       = errors.New("lifetime_plan_owned")
	ErrAlreadyOwned        = errors.New("plan_already_owned")
	ErrUpgradeSourcePlan   = errors.New("upgrade_requires_one_time_plan")
	ErrUpgradeTargetPlan   = errors.New("upgrade_target_must_be_subscription")
	ErrSubscriptionPresent = errors.New("subscription_already_attached")
)

var ErrInvalidOwner = errors.New("invalid_owner")

type GrantParams struct {
	GuildID         string
	UserID          string
	ProductID       int64
	PlanKey         money.PlanKey
	SubscriptionRef *string
	ReferenceCode   *string
}

type Service interface {
	// EvaluatePurchaseGate returns nil when the purchase may proceed. It is
	// re-checked at checkout-session creation, not only at render time, so
	// two racing plan clicks cannot both pass.
	EvaluatePurchaseGate(ctx context.Context, guildID, userID string, productID int64, target money.PlanKey, isUpgrade bool) error
	UpsertOnPaid(ctx context.Context, params GrantParams) error
	RevokeOnRefund(ctx context.Context, guildID, userID string, productID int64, actorID string) error
	Find(ctx context.Context, guildID, userID string, productID int64) (*Entitlement, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, guildID, userID string, productID int64) (*Entitlement, error)
	// UpsertActive inserts or reactivates by the (guild,user,product) key.
	// Calling it twice with the same inputs is harmless.
	UpsertActive(ctx context.Context, db *gorm.DB, id int64, params GrantParams, at time.Time) error
	Revoke(ctx context.Context, db *gorm.DB, guildID, userID string, productID int64, actorID string, at time.Time) (bool, error)
}
