package repository

import (
	"context"
	"time"

	"github.com/oakline/storefront/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, guildID, userID string, productID int64) (*domain.Entitlement, error) {
	var item domain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT id, guild_id, user_id, product_id, status, plan_key,
			subscription_ref, reference_code, granted_at, updated_at,
			revoked_at, revoked_by
		 FROM entitlements
		 WHERE guild_id = ? AND user_id = ? AND product_id = ?
		 LIMIT 1`,
		guildID, userID, productID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertActive(ctx context.Context, db *gorm.DB, id int64, params domain.GrantParams, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entitlements (
			id, guild_id, user_id, product_id, status, plan_key,
			subscription_ref, reference_code, granted_at, updated_at,
			revoked_at, revoked_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)
		ON CONFLICT (guild_id, user_id, product_id) DO UPDATE SET
			status = excluded.status,
			plan_key = excluded.plan_key,
			subscription_ref = COALESCE(excluded.subscription_ref, entitlements.subscription_ref),
			reference_code = COALESCE(excluded.reference_code, entitlements.reference_code),
			updated_at = excluded.updated_at,
			revoked_at = NULL,
			revoked_by = NULL`,
		id,
		params.GuildID,
		params.UserID,
		params.ProductID,
		domain.StatusActive,
		params.PlanKey,
		params.SubscriptionRef,
		params.ReferenceCode,
		at,
		at,
	).Error
}

func (r *repo) Revoke(ctx context.Context, db *gorm.DB, guildID, userID string, productID int64, actorID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET status = ?, revoked_at = ?, revoked_by = ?, updated_at = ?
		 WHERE guild_id = ? AND user_id = ? AND product_id = ? AND status = ?`,
		domain.StatusRevoked,
		at,
		actorID,
		at,
		guildID, userID, productID,
		domain.StatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
