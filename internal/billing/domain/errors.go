package domain

import "errors"

var (
	// ErrTariffRateConflict is returned when labels on one loggable item
	// resolve to differing rate or currency pairs.
	ErrTariffRateConflict = errors.New("billing_tariff_rate_conflict")
	// ErrCurrencyMismatch is returned when line items span currencies or
	// disagree with the client's configured billing currency.
	ErrCurrencyMismatch = errors.New("billing_currency_mismatch")
	// ErrPlanRateConflict is returned when one plan group carries two
	// different rates.
	ErrPlanRateConflict = errors.New("billing_plan_rate_conflict")
	// ErrMultipleStorageTariffs is returned when an asset's resolved
	// tariff chain carries more than one storage rate.
	ErrMultipleStorageTariffs = errors.New("billing_multiple_storage_tariffs")
	// ErrNoHourlyRate is returned when no label on a billable entry
	// resolves to an hourly rate.
	ErrNoHourlyRate = errors.New("billing_no_hourly_rate")
)
