package repository

import (
	"context"
	"time"

	"github.com/oakline/storefront/internal/ticket/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const ticketColumns = `id, guild_id, channel_id, owner_id, kind, status,
	product_id, reference_code, panel_message_id, closed_by,
	created_at, updated_at, closed_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tickets (
			id, guild_id, channel_id, owner_id, kind, status,
			product_id, reference_code, panel_message_id, closed_by,
			created_at, updated_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID,
		ticket.GuildID,
		ticket.ChannelID,
		ticket.OwnerID,
		ticket.Kind,
		ticket.Status,
		ticket.ProductID,
		ticket.ReferenceCode,
		ticket.PanelMessageID,
		ticket.ClosedBy,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ClosedAt,
	).Error
}

func (r *repo) FindOpen(ctx context.Context, db *gorm.DB, guildID, ownerID string, kind domain.Kind) (*domain.Ticket, error) {
	var item domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE guild_id = ? AND owner_id = ? AND kind = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		guildID, ownerID, kind, domain.StatusOpen,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByChannel(ctx context.Context, db *gorm.DB, guildID, channelID string) (*domain.Ticket, error) {
	var item domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE guild_id = ? AND channel_id = ?
		 LIMIT 1`,
		guildID, channelID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkStale(ctx context.Context, db *gorm.DB, id int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.StatusStale, at, id, domain.StatusOpen,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Close(ctx context.Context, db *gorm.DB, id int64, actorID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tickets
		 SET status = ?, closed_by = ?, closed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusClosed, actorID, at, at, id, domain.StatusOpen,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetPanelMessage(ctx context.Context, db *gorm.DB, id int64, messageID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tickets SET panel_message_id = ?, updated_at = ? WHERE id = ?`,
		messageID, at, id,
	).Error
}
