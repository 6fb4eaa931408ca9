package repository

import (
	"context"

	"github.com/oakline/storefront/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, guild_id, name, description, grant_role_id, prices, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.GuildID,
		product.Name,
		product.Description,
		product.GrantRoleID,
		product.Prices,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, guildID string, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, guild_id, name, description, grant_role_id, prices, created_at, updated_at
		 FROM products
		 WHERE guild_id = ? AND id = ?`,
		guildID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, guildID string) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, guild_id, name, description, grant_role_id, prices, created_at, updated_at
		 FROM products
		 WHERE guild_id = ?
		 ORDER BY created_at ASC`,
		guildID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePrices(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET prices = ?, updated_at = ?
		 WHERE guild_id = ? AND id = ?`,
		product.Prices,
		product.UpdatedAt,
		product.GuildID,
		product.ID,
	).Error
}
