package repository

import (
	"context"
	"time"

	"github.com/oakline/storefront/internal/guildconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByGuild(ctx context.Context, db *gorm.DB, guildID string) (*domain.GuildConfig, error) {
	var cfg domain.GuildConfig
	err := db.WithContext(ctx).Raw(
		`SELECT guild_id, support_role_id, log_channel_id, panel_channel_id,
			panel_message_id, approver_user_id, created_at, updated_at
		 FROM guild_configs
		 WHERE guild_id = ?
		 LIMIT 1`,
		guildID,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.GuildID == "" {
		return nil, nil
	}
	return &cfg, nil
}

// Upsert creates the row if absent, then merges only the patched columns.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, guildID string, patch domain.Patch, now time.Time) error {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO guild_configs (guild_id, created_at, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (guild_id) DO NOTHING`,
		guildID,
		now,
		now,
	).Error; err != nil {
		return err
	}

	updates := map[string]any{"updated_at": now}
	if patch.SupportRoleID != nil {
		updates["support_role_id"] = *patch.SupportRoleID
	}
	if patch.LogChannelID != nil {
		updates["log_channel_id"] = *patch.LogChannelID
	}
	if patch.PanelChannelID != nil {
		updates["panel_channel_id"] = *patch.PanelChannelID
	}
	if patch.PanelMessageID != nil {
		updates["panel_message_id"] = *patch.PanelMessageID
	}
	if patch.ApproverUserID != nil {
		updates["approver_user_id"] = *patch.ApproverUserID
	}

	return db.WithContext(ctx).
		Model(&domain.GuildConfig{}).
		Where("guild_id = ?", guildID).
		Updates(updates).Error
}
