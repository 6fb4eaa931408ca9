// Package domain contains the ticket record: one private channel per user
// per purpose, opened for a purchase or a support conversation.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	// StatusStale marks a record whose channel was deleted out from under
	// us on the platform side.
	StatusStale Status = "stale"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSupport  Kind = "support"
)

type Ticket struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	GuildID   string `json:"guild_id" gorm:"type:text;not null;uniqueIndex:idx_tickets_channel,priority:1;index:idx_tickets_lookup,priority:1"`
	ChannelID string `json:"channel_id" gorm:"type:text;not null;uniqueIndex:idx_tickets_channel,priority:2"`
	OwnerID   string `json:"owner_id" gorm:"type:text;not null;index:idx_tickets_lookup,priority:2"`
	Kind      Kind   `json:"kind" gorm:"type:text;not null;index:idx_tickets_lookup,priority:4"`
	Status    Status `json:"status" gorm:"type:text;not null;index:idx_tickets_lookup,priority:3"`

	ProductID     *int64  `json:"product_id,omitempty"`
	ReferenceCode *string `json:"reference_code,omitempty" gorm:"type:text"`
	// PanelMessageID points at the rendered view inside the channel so it
	// can be edited in place.
	PanelMessageID *string `json:"panel_message_id,omitempty" gorm:"type:text"`

	ClosedBy  *string    `json:"closed_by,omitempty" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func (Ticket) TableName() string { return "tickets" }

var (
	ErrInvalidGuild      = errors.New("invalid_guild")
	ErrInvalidOwner      = errors.New("invalid_owner")
	ErrInvalidKind       = errors.New("invalid_kind")
	ErrNotFound          = errors.New("ticket_not_found")
	ErrNotOpen           = errors.New("ticket_not_open")
	ErrUnauthorized      = errors.New("ticket_close_unauthorized")
	ErrChannelCreation   = errors.New("channel_creation_failed")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// Transition moves Status along open → closed or open → stale and rejects
// everything else.
func (t *Ticket) Transition(target Status, at time.Time) error {
	if t.Status != StatusOpen || (target != StatusClosed && target != StatusStale) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, target)
	}
	t.Status = target
	t.UpdatedAt = at.UTC()
	if target == StatusClosed {
		stamped := at.UTC()
		t.ClosedAt = &stamped
	}
	return nil
}

type OpenRequest struct {
	GuildID       string
	UserID        string
	Kind          Kind
	ProductID     *int64
	ReferenceCode *string
}

type CloseRequest struct {
	GuildID   string
	ChannelID string
	ActorID   string
	// ActorIsAdmin and ActorRoleIDs come from the interaction payload; the
	// service never calls back into the platform to re-fetch them.
	ActorIsAdmin bool
	ActorRoleIDs []string
}

type Service interface {
	// OpenOrReuse returns the caller's open ticket for the kind, creating
	// a fresh private channel when none exists or the old channel is gone.
	OpenOrReuse(ctx context.Context, req OpenRequest) (*Ticket, bool, error)
	Close(ctx context.Context, req CloseRequest) (*Ticket, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	FindOpen(ctx context.Context, db *gorm.DB, guildID, ownerID string, kind Kind) (*Ticket, error)
	FindByChannel(ctx context.Context, db *gorm.DB, guildID, channelID string) (*Ticket, error)
	// MarkStale and Close fire only while the row is still open.
	MarkStale(ctx context.Context, db *gorm.DB, id int64, at time.Time) (bool, error)
	Close(ctx context.Context, db *gorm.DB, id int64, actorID string, at time.Time) (bool, error)
	SetPanelMessage(ctx context.Context, db *gorm.DB, id int64, messageID string, at time.Time) error
}
