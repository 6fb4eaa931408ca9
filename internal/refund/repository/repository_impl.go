package repository

import (
	"context"
	"time"

	"github.com/oakline/storefront/internal/refund/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, request *domain.RefundRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO refund_requests (
			id, request_id, guild_id, purchase_id, requester_id, status,
			approver_id, processor_refund_id, failure_reason,
			created_at, decided_at, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID,
		request.RequestID,
		request.GuildID,
		request.PurchaseID,
		request.RequesterID,
		request.Status,
		request.ApproverID,
		request.ProcessorRefundID,
		request.FailureReason,
		request.CreatedAt,
		request.DecidedAt,
		request.ExecutedAt,
	).Error
}

func (r *repo) FindByRequestID(ctx context.Context, db *gorm.DB, guildID, requestID string) (*domain.RefundRequest, error) {
	var item domain.RefundRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, request_id, guild_id, purchase_id, requester_id, status,
			approver_id, processor_refund_id, failure_reason,
			created_at, decided_at, executed_at
		 FROM refund_requests
		 WHERE guild_id = ? AND request_id = ?
		 LIMIT 1`,
		guildID, requestID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, id int64, target domain.Status, approverID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE refund_requests
		 SET status = ?, approver_id = ?, decided_at = ?
		 WHERE id = ? AND status = ?`,
		target, approverID, at, id, domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkExecuted(ctx context.Context, db *gorm.DB, id int64, processorRefundID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE refund_requests
		 SET status = ?, processor_refund_id = ?, executed_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusRefunded, processorRefundID, at, id, domain.StatusApproved,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id int64, reason string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE refund_requests
		 SET status = ?, failure_reason = ?, executed_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed, reason, at, id, domain.StatusApproved,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
