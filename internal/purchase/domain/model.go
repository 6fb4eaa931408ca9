// Package domain contains the purchase record and its lifecycle rules.
package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusCreated  Status = "created"
	StatusPaid     Status = "paid"
	StatusRefunded Status = "refunded"
)

type Kind string

const (
	KindProduct  Kind = "product"
	KindDonation Kind = "donation"
)

// Subscription side-states tracked after a purchase is paid. They evolve
// independently of Status.
const (
	SubscriptionEnded = "ended"
)

// Purchase is created in `created` state when a checkout session is opened
// and transitions to `paid` at most once, driven only by a verified webhook
// event whose metadata matches. PurchaseID is the human-readable public
// key; SessionID is the processor-side idempotency anchor.
type Purchase struct {
	ID         int64   `json:"id" gorm:"primaryKey"`
	PurchaseID string  `json:"purchase_id" gorm:"type:text;not null;uniqueIndex"`
	SessionID  *string `json:"session_id,omitempty" gorm:"type:text;uniqueIndex"`

	GuildID string `json:"guild_id" gorm:"type:text;not null;index:idx_purchases_guild_paid,priority:1"`
	BuyerID string `json:"buyer_id" gorm:"type:text;not null;index"`
	Kind    Kind   `json:"kind" gorm:"type:text;not null"`

	ProductID   *int64  `json:"product_id,omitempty" gorm:"index"`
	PlanKey     *string `json:"plan_key,omitempty" gorm:"type:text"`
	GrantRoleID *string `json:"grant_role_id,omitempty" gorm:"type:text"`

	AmountMinor int64  `json:"amount_minor" gorm:"not null"`
	Currency    string `json:"currency" gorm:"type:text;not null"`
	Status      Status `json:"status" gorm:"type:text;not null"`

	PaymentIntentID    *string    `json:"payment_intent_id,omitempty" gorm:"type:text"`
	SubscriptionID     *string    `json:"subscription_id,omitempty" gorm:"type:text;index"`
	SubscriptionStatus *string    `json:"subscription_status,omitempty" gorm:"type:text"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	ReferenceCode *string    `json:"reference_code,omitempty" gorm:"type:text"`
	UpsellSentAt  *time.Time `json:"upsell_sent_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at" gorm:"not null;index:idx_purchases_guild_paid,priority:2"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`
}

func (Purchase) TableName() string { return "purchases" }

var (
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("purchase_not_found")
)

// Transition advances Status along created → paid → refunded and rejects
// everything else, including repeats.
func (p *Purchase) Transition(target Status, at time.Time) error {
	switch {
	case p.Status == StatusCreated && target == StatusPaid:
		p.Status = StatusPaid
		stamped := at.UTC()
		p.PaidAt = &stamped
	case p.Status == StatusPaid && target == StatusRefunded:
		p.Status = StatusRefunded
		stamped := at.UTC()
		p.RefundedAt = &stamped
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, target)
	}
	return nil
}
