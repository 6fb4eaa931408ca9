package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, request *RefundRequest) error
	FindByRequestID(ctx context.Context, db *gorm.DB, guildID, requestID string) (*RefundRequest, error)

	// Decide claims the single-use pending → approved|rejected transition.
	// At most one caller ever sees true for a given request.
	Decide(ctx context.Context, db *gorm.DB, id int64, target Status, approverID string, at time.Time) (bool, error)
	// MarkExecuted and MarkFail record the execution outcome; both fire
	// only while the row is approved.
	MarkExecuted(ctx context.Context, db *gorm.DB, id int64, processorRefundID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id int64, reason string, at time.Time) (bool, error)
}
