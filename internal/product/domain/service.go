package domain

import (
	"context"
	"errors"
	"time"

	"github.com/oakline/storefront/internal/money"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, guildID, id string) (*Response, error)
	List(ctx context.Context, guildID string) ([]Response, error)
	// SetPrice enables a plan at a user-entered decimal amount.
	SetPrice(ctx context.Context, req SetPriceRequest) (*Response, error)
	// UnsetPrice disables a plan. The last plan may be removed; checkout
	// rejects unpriced products, catalog state stays editable.
	UnsetPrice(ctx context.Context, guildID, id string, plan money.PlanKey) (*Response, error)
}

type CreateRequest struct {
	GuildID     string  `json:"guild_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	GrantRoleID string  `json:"grant_role_id"`
}

type SetPriceRequest struct {
	GuildID string        `json:"guild_id"`
	ID      string        `json:"id"`
	Plan    money.PlanKey `json:"plan"`
	Amount  string        `json:"amount"`
}

type Response struct {
	ID           string          `json:"id"`
	GuildID      string          `json:"guild_id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	GrantRoleID  string          `json:"grant_role_id"`
	Prices       map[string]any  `json:"prices,omitempty"`
	EnabledPlans []money.PlanKey `json:"enabled_plans"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, guildID string, id int64) (*Product, error)
	List(ctx context.Context, db *gorm.DB, guildID string) ([]Product, error)
	UpdatePrices(ctx context.Context, db *gorm.DB, product *Product) error
}

var (
	ErrInvalidGuild = errors.New("invalid_guild")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("product_not_found")
)
