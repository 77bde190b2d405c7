// Package domain contains the consumption ledger and the invoice ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CheckedRecord marks one source usage record as consumed by a billing
// transaction. Rows are append only; a marked record is never priced again.
type CheckedRecord struct {
	SourceRecordID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	TransactionID  snowflake.ID `gorm:"not null;index"`
	CheckedAt      time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (CheckedRecord) TableName() string { return "checked_records" }

// InvoiceStatus tracks an invoice row through its lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// InvoiceRow is one issued invoice in the append-only invoice ledger. The
// most recent row per client determines the client's last billing date.
type InvoiceRow struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Client      string          `gorm:"type:text;not null;index"`
	Type        string          `gorm:"type:text;not null"`
	Period      string          `gorm:"type:text;not null"`
	Currency    string          `gorm:"type:text;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Status      InvoiceStatus   `gorm:"type:text;not null"`
	DateCreated time.Time       `gorm:"not null;index"`
}

// TableName sets the database table name.
func (InvoiceRow) TableName() string { return "invoice_rows" }
