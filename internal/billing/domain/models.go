// Package domain contains invoice computation models shared by the billing
// aggregators.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceType selects which aggregator produced an invoice.
type InvoiceType string

const (
	InvoiceTypeHourly  InvoiceType = "Hourly"
	InvoiceTypeMonthly InvoiceType = "Monthly"
	InvoiceTypeStorage InvoiceType = "Storage"
)

// InvoiceLineItem is one priced unit of work or service, tagged with the
// ledger transaction that consumed its source record.
type InvoiceLineItem struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	TransactionID snowflake.ID      `gorm:"not null;index"`
	Client        string            `gorm:"type:text;not null;index"`
	Type          InvoiceType       `gorm:"type:text;not null"`
	Period        string            `gorm:"type:text;not null"`
	PlanLabel     string            `gorm:"type:text;not null"`
	AssetFQDN     string            `gorm:"type:text"`
	Employee      string            `gorm:"type:text"`
	Description   string            `gorm:"type:text"`
	Quantity      decimal.Decimal   `gorm:"type:numeric(20,4);not null"`
	Rate          decimal.Decimal   `gorm:"type:numeric(20,8);not null"`
	Currency      string            `gorm:"type:text;not null"`
	Cost          decimal.Decimal   `gorm:"type:numeric(20,8);not null"`
	EmployeeCost  decimal.Decimal   `gorm:"type:numeric(20,8)"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// PlanSummary is the per-plan invoice group: totals over every line item
// carrying the same plan label, at one uniform rate.
type PlanSummary struct {
	PlanLabel string
	Quantity  decimal.Decimal
	Rate      decimal.Decimal
	Currency  string
	Cost      decimal.Decimal
}

// EmployeeShare is one employee's revenue participation on an invoice.
type EmployeeShare struct {
	Employee     string
	Cost         decimal.Decimal
	SharePercent decimal.Decimal
}

// InvoiceSummary is the aggregated output for one client and invoice type,
// handed downstream to templating and ledger-append.
type InvoiceSummary struct {
	Client         string
	Type           InvoiceType
	Period         string
	Currency       string
	Lines          []InvoiceLineItem
	Plans          []PlanSummary
	Employees      []EmployeeShare
	GrandTotal     decimal.Decimal
	GrandTotalText string
}

// ClientOutcome is one client's result within a batch run.
type ClientOutcome struct {
	Client  string
	Summary *InvoiceSummary
	Err     error
}

// BatchReport collects per-client outcomes so failure visibility does not
// depend on log scraping. Collected errors are only valid for bulk
// operations that do not move money; billing runs abort on the first
// failure instead.
type BatchReport struct {
	Type     InvoiceType
	Period   string
	Outcomes []ClientOutcome
}

// Failed returns the outcomes that carry an error.
func (r BatchReport) Failed() []ClientOutcome {
	var out []ClientOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
