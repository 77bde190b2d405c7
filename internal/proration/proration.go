// Package proration computes the billable fraction of a monthly tariff for
// one asset in one target month.
package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	one  = decimal.NewFromInt(1)
	zero = decimal.Zero
)

// Input describes one asset's billing position against a target month.
type Input struct {
	// Activated is the tariff version's activation date.
	Activated time.Time
	// Added is the date the tariff entry itself was added to the asset.
	Added time.Time
	// LastBillingDate is the client's most recent invoice date. Zero means
	// the client has never been billed.
	//
	// Leftover test invoices in the ledger shift this date and change the
	// gap decision below. Operators must delete test invoices before a
	// real run.
	LastBillingDate time.Time
	// TargetMonth is any instant inside the month being billed.
	TargetMonth time.Time
	// OlderTariffExists is true when the version history continues past
	// this entry, meaning a predecessor tariff covered earlier periods.
	OlderTariffExists bool
	// Migrated is true when this version was migrated from another asset.
	Migrated bool
}

// Portion returns the fraction of the monthly rate owed for the target
// month, rounded to two decimals.
//
// An asset already billed under a predecessor tariff or a migration is owed
// exactly one flat month. Otherwise the span from activation to the target
// month is accrued: whole months plus the partial activation month. Accruals
// above one month collapse to a single month unless the tariff entry was
// added after the client's last invoice, in which case the uncovered gap is
// billed in full. Negative spans clamp to zero.
func Portion(in Input) decimal.Decimal {
	if in.OlderTariffExists || in.Migrated {
		return one.Round(2)
	}

	wholeMonths := monthsBetween(in.Activated, in.TargetMonth)
	daysInMonth := lastDayOfMonth(in.Activated)
	partial := decimal.NewFromInt(int64(daysInMonth - in.Activated.Day() + 1)).
		Div(decimal.NewFromInt(int64(daysInMonth)))

	raw := decimal.NewFromInt(int64(wholeMonths)).Add(partial).Round(2)

	if raw.GreaterThan(one) && !in.Added.After(in.LastBillingDate) {
		return one.Round(2)
	}
	if raw.IsNegative() {
		return zero.Round(2)
	}
	return raw
}

// monthsBetween counts calendar months from a's month to b's month. Negative
// when b's month precedes a's.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
