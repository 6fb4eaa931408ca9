package repository

import (
	"context"
	"time"

	"github.com/oakline/storefront/internal/purchase/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const purchaseColumns = `id, purchase_id, session_id, guild_id, buyer_id, kind,
	product_id, plan_key, grant_role_id, amount_minor, currency, status,
	payment_intent_id, subscription_id, subscription_status, cancel_at_period_end,
	current_period_end, reference_code, upsell_sent_at, created_at, paid_at, refunded_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, purchase *domain.Purchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO purchases (
			id, purchase_id, session_id, guild_id, buyer_id, kind,
			product_id, plan_key, grant_role_id, amount_minor, currency, status,
			payment_intent_id, subscription_id, subscription_status, cancel_at_period_end,
			current_period_end, reference_code, upsell_sent_at, created_at, paid_at, refunded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		purchase.ID,
		purchase.PurchaseID,
		purchase.SessionID,
		purchase.GuildID,
		purchase.BuyerID,
		purchase.Kind,
		purchase.ProductID,
		purchase.PlanKey,
		purchase.GrantRoleID,
		purchase.AmountMinor,
		purchase.Currency,
		purchase.Status,
		purchase.PaymentIntentID,
		purchase.SubscriptionID,
		purchase.SubscriptionStatus,
		purchase.CancelAtPeriodEnd,
		purchase.CurrentPeriodEnd,
		purchase.ReferenceCode,
		purchase.UpsellSentAt,
		purchase.CreatedAt,
		purchase.PaidAt,
		purchase.RefundedAt,
	).Error
}

func (r *repo) FindByPurchaseID(ctx context.Context, db *gorm.DB, purchaseID string) (*domain.Purchase, error) {
	return r.findOne(ctx, db, `purchase_id = ?`, purchaseID)
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Purchase, error) {
	return r.findOne(ctx, db, `session_id = ?`, sessionID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Purchase, error) {
	var item domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM purchases WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, purchaseID string, update domain.PaidUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET status = ?,
			paid_at = ?,
			payment_intent_id = COALESCE(?, payment_intent_id),
			subscription_id = COALESCE(?, subscription_id),
			subscription_status = COALESCE(?, subscription_status),
			cancel_at_period_end = ?,
			current_period_end = COALESCE(?, current_period_end)
		 WHERE purchase_id = ? AND status = ?`,
		domain.StatusPaid,
		update.PaidAt,
		update.PaymentIntentID,
		update.SubscriptionID,
		update.SubscriptionStatus,
		update.CancelAtPeriodEnd,
		update.CurrentPeriodEnd,
		purchaseID,
		domain.StatusCreated,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpsertPaidBySession(ctx context.Context, db *gorm.DB, purchase *domain.Purchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO purchases (
			id, purchase_id, session_id, guild_id, buyer_id, kind,
			product_id, plan_key, grant_role_id, amount_minor, currency, status,
			payment_intent_id, subscription_id, subscription_status, cancel_at_period_end,
			current_period_end, reference_code, upsell_sent_at, created_at, paid_at, refunded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			status = CASE WHEN purchases.status = 'refunded' THEN purchases.status ELSE excluded.status END,
			paid_at = COALESCE(purchases.paid_at, excluded.paid_at),
			payment_intent_id = COALESCE(excluded.payment_intent_id, purchases.payment_intent_id),
			subscription_id = COALESCE(excluded.subscription_id, purchases.subscription_id),
			subscription_status = COALESCE(excluded.subscription_status, purchases.subscription_status),
			cancel_at_period_end = excluded.cancel_at_period_end,
			current_period_end = COALESCE(excluded.current_period_end, purchases.current_period_end)`,
		purchase.ID,
		purchase.PurchaseID,
		purchase.SessionID,
		purchase.GuildID,
		purchase.BuyerID,
		purchase.Kind,
		purchase.ProductID,
		purchase.PlanKey,
		purchase.GrantRoleID,
		purchase.AmountMinor,
		purchase.Currency,
		purchase.Status,
		purchase.PaymentIntentID,
		purchase.SubscriptionID,
		purchase.SubscriptionStatus,
		purchase.CancelAtPeriodEnd,
		purchase.CurrentPeriodEnd,
		purchase.ReferenceCode,
		purchase.UpsellSentAt,
		purchase.CreatedAt,
		purchase.PaidAt,
		purchase.RefundedAt,
	).Error
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, purchaseID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET status = ?, refunded_at = ?
		 WHERE purchase_id = ? AND status = ?`,
		domain.StatusRefunded,
		at,
		purchaseID,
		domain.StatusPaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateSubscriptionState(ctx context.Context, db *gorm.DB, subscriptionID string, update domain.SubscriptionUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET subscription_status = ?,
			cancel_at_period_end = ?,
			current_period_end = COALESCE(?, current_period_end)
		 WHERE subscription_id = ?`,
		update.SubscriptionStatus,
		update.CancelAtPeriodEnd,
		update.CurrentPeriodEnd,
		subscriptionID,
	).Error
}

func (r *repo) FindLatestPaidBySubscription(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Purchase, error) {
	var item domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE subscription_id = ? AND status = ?
		 ORDER BY paid_at DESC
		 LIMIT 1`,
		subscriptionID,
		domain.StatusPaid,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ClaimUpsell(ctx context.Context, db *gorm.DB, purchaseID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET upsell_sent_at = ?
		 WHERE purchase_id = ? AND upsell_sent_at IS NULL`,
		at,
		purchaseID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
