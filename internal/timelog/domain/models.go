// Package domain contains persistence models for employee time tracking.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TimeLogEntry is one unit of tracked work. Labels carry both the billable
// marker and the asset fqdn the work was performed on.
type TimeLogEntry struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	Employee    string                      `gorm:"type:text;not null;index"`
	Description string                      `gorm:"type:text"`
	Labels      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Hours       decimal.Decimal             `gorm:"type:numeric(10,4);not null"`
	LoggedAt    time.Time                   `gorm:"not null;index"`
	CreatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TimeLogEntry) TableName() string { return "timelog_entries" }

// HasLabel reports whether the entry carries the given label.
func (e TimeLogEntry) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}
