// Package domain contains persistence models for storage usage sampling.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// UsageSample is one observed storage measurement, collected at least daily
// per (asset, target, path).
type UsageSample struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Client        string          `gorm:"type:text;not null;index"`
	AssetFQDN     string          `gorm:"type:text;not null;index"`
	StorageTarget string          `gorm:"type:text;not null"`
	Path          string          `gorm:"type:text;not null"`
	MegaBytes     decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	SampledAt     time.Time       `gorm:"not null;index"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageSample) TableName() string { return "usage_samples" }
