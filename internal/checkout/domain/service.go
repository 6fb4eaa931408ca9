// Package domain defines the checkout-session initiation contract.
package domain

import (
	"context"
	"errors"

	"github.com/oakline/storefront/internal/money"
)

var (
	ErrInvalidGuild           = errors.New("invalid_guild")
	ErrInvalidUser            = errors.New("invalid_user")
	ErrPlanUnavailable        = errors.New("plan_unavailable")
	ErrCheckoutCreationFailed = errors.New("checkout_creation_failed")
	ErrAmountBelowMinimum     = errors.New("amount_below_minimum")
	ErrCooldownActive         = errors.New("cooldown_active")
)

type ProductCheckoutRequest struct {
	GuildID       string
	UserID        string
	ProductID     string
	Plan          money.PlanKey
	ReferenceCode *string
	// IsUpgrade marks a one_time → subscription upgrade attempt; the
	// entitlement gate judges it under upgrade rules.
	IsUpgrade bool
}

type DonationCheckoutRequest struct {
	GuildID string
	UserID  string
	// Amount is the user-entered decimal string, parsed to minor units.
	Amount string
}

// Session is the caller-facing result: the public purchase ID and the
// processor-hosted URL the buyer is sent to.
type Session struct {
	PurchaseID string `json:"purchase_id"`
	URL        string `json:"url"`
}

type Service interface {
	StartProductCheckout(ctx context.Context, req ProductCheckoutRequest) (*Session, error)
	StartDonationCheckout(ctx context.Context, req DonationCheckoutRequest) (*Session, error)
}
