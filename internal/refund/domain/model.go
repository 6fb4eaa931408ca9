// Package domain contains the refund request: a two-party state machine
// gating financial reversal behind a time window and explicit approval.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRefunded Status = "refunded"
	StatusFailed   Status = "failed"
)

type RefundRequest struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	RequestID string `json:"request_id" gorm:"type:text;not null;uniqueIndex"`

	GuildID     string `json:"guild_id" gorm:"type:text;not null;index"`
	PurchaseID  string `json:"purchase_id" gorm:"type:text;not null;index"`
	RequesterID string `json:"requester_id" gorm:"type:text;not null"`

	Status            Status  `json:"status" gorm:"type:text;not null"`
	ApproverID        *string `json:"approver_id,omitempty" gorm:"type:text"`
	ProcessorRefundID *string `json:"processor_refund_id,omitempty" gorm:"type:text"`
	FailureReason     *string `json:"failure_reason,omitempty" gorm:"type:text"`

	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

func (RefundRequest) TableName() string { return "refund_requests" }

var (
	ErrNotFound          = errors.New("refund_request_not_found")
	ErrAlreadyDecided    = errors.New("refund_request_already_decided")
	ErrUnauthorized      = errors.New("refund_unauthorized")
	ErrPurchaseNotFound  = errors.New("refund_purchase_not_found")
	ErrPurchaseNotPaid   = errors.New("refund_purchase_not_paid")
	ErrWindowExpired     = errors.New("refund_window_expired")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// Transition enforces pending → approved|rejected and
// approved → refunded|failed. Decisions and execution outcomes are each
// single-use.
func (r *RefundRequest) Transition(target Status, at time.Time) error {
	valid := (r.Status == StatusPending && (target == StatusApproved || target == StatusRejected)) ||
		(r.Status == StatusApproved && (target == StatusRefunded || target == StatusFailed))
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, target)
	}
	r.Status = target
	stamped := at.UTC()
	switch target {
	case StatusApproved, StatusRejected:
		r.DecidedAt = &stamped
	case StatusRefunded, StatusFailed:
		r.ExecutedAt = &stamped
	}
	return nil
}

type CreateRequest struct {
	GuildID     string
	PurchaseID  string
	RequesterID string
}

type DecisionRequest struct {
	GuildID   string
	RequestID string
	ActorID   string
	// ActorIsAdmin comes from the interaction payload; a configured
	// approver identity qualifies as well.
	ActorIsAdmin bool
}

type Service interface {
	// Create files a pending request. The 24h window is checked here and
	// again at approval time.
	Create(ctx context.Context, req CreateRequest) (*RefundRequest, error)
	// Approve re-validates and executes the refund against the processor.
	// The approval decision and the execution outcome are recorded
	// separately; a processor failure leaves the purchase paid.
	Approve(ctx context.Context, req DecisionRequest) (*RefundRequest, error)
	Reject(ctx context.Context, req DecisionRequest) (*RefundRequest, error)
	Get(ctx context.Context, guildID, requestID string) (*RefundRequest, error)
}
