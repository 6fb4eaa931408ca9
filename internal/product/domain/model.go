// Package domain contains the purchasable product model.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Product is an admin-managed purchasable item. Prices maps plan keys
// (one_time, monthly, annual, lifetime) to positive minor-unit amounts; a
// product is purchasable only while at least one plan is priced.
type Product struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	GuildID     string            `json:"guild_id" gorm:"type:text;not null;index"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	GrantRoleID string            `json:"grant_role_id" gorm:"type:text;not null"`
	Prices      datatypes.JSONMap `json:"prices,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
