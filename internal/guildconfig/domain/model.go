// Package domain contains the per-guild settings model.
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GuildConfig stores the chat-platform identifiers the storefront needs in
// one guild: where to log, which role staffs tickets, where the purchase
// panel lives and who approves refunds.
type GuildConfig struct {
	GuildID        string    `json:"guild_id" gorm:"primaryKey;type:text"`
	SupportRoleID  *string   `json:"support_role_id,omitempty" gorm:"type:text"`
	LogChannelID   *string   `json:"log_channel_id,omitempty" gorm:"type:text"`
	PanelChannelID *string   `json:"panel_channel_id,omitempty" gorm:"type:text"`
	PanelMessageID *string   `json:"panel_message_id,omitempty" gorm:"type:text"`
	ApproverUserID *string   `json:"approver_user_id,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (GuildConfig) TableName() string { return "guild_configs" }

// Patch carries a partial update; nil fields are left untouched so
// concurrent upserts targeting different fields never clobber each other.
type Patch struct {
	SupportRoleID  *string `json:"support_role_id,omitempty"`
	LogChannelID   *string `json:"log_channel_id,omitempty"`
	PanelChannelID *string `json:"panel_channel_id,omitempty"`
	PanelMessageID *string `json:"panel_message_id,omitempty"`
	ApproverUserID *string `json:"approver_user_id,omitempty"`
}

func (p Patch) Empty() bool {
	return p.SupportRoleID == nil &&
		p.LogChannelID == nil &&
		p.PanelChannelID == nil &&
		p.PanelMessageID == nil &&
		p.ApproverUserID == nil
}

type Repository interface {
	FindByGuild(ctx context.Context, db *gorm.DB, guildID string) (*GuildConfig, error)
	Upsert(ctx context.Context, db *gorm.DB, guildID string, patch Patch, now time.Time) error
}

type Service interface {
	// Get serves from a bounded-staleness cache; a missing config is a
	// valid (nil, nil) result and is itself cached.
	Get(ctx context.Context, guildID string) (*GuildConfig, error)
	Upsert(ctx context.Context, guildID string, patch Patch) error
}

var (
	ErrInvalidGuild = errors.New("invalid_guild")
	ErrEmptyPatch   = errors.New("empty_patch")
)
