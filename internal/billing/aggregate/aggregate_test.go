package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testClient(currency string) *assetdomain.Client {
	return &assetdomain.Client{
		Name: "acme",
		Billing: assetdomain.Billing{
			Currency: currency,
			Locale:   "en",
		},
	}
}

func line(plan, currency, qty, rate, cost string) billingdomain.InvoiceLineItem {
	return billingdomain.InvoiceLineItem{
		Client:    "acme",
		PlanLabel: plan,
		Currency:  currency,
		Quantity:  d(qty),
		Rate:      d(rate),
		Cost:      d(cost),
	}
}

func TestSummarizeGroupsByPlan(t *testing.T) {
	lines := []billingdomain.InvoiceLineItem{
		line("support basic 1", "EUR", "2", "10", "20"),
		line("support basic 1", "EUR", "3", "10", "30"),
		line("hosting premium 2", "EUR", "1", "100", "100"),
	}

	sum, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeHourly, "2024-05", lines)
	require.NoError(t, err)

	require.Len(t, sum.Plans, 2)
	assert.Equal(t, "hosting premium 2", sum.Plans[0].PlanLabel)
	assert.True(t, d("100").Equal(sum.Plans[0].Cost))
	assert.Equal(t, "support basic 1", sum.Plans[1].PlanLabel)
	assert.True(t, d("5").Equal(sum.Plans[1].Quantity))
	assert.True(t, d("50").Equal(sum.Plans[1].Cost))
	assert.True(t, d("150").Equal(sum.GrandTotal))
	assert.Equal(t, "one hundred fifty and 00/100 EUR", sum.GrandTotalText)
}

func TestSummarizeRejectsMixedRateWithinPlan(t *testing.T) {
	lines := []billingdomain.InvoiceLineItem{
		line("support basic 1", "EUR", "2", "10", "20"),
		line("support basic 1", "EUR", "1", "12", "12"),
	}

	_, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeHourly, "2024-05", lines)
	assert.ErrorIs(t, err, billingdomain.ErrPlanRateConflict)
}

func TestSummarizeRejectsCurrencyMismatch(t *testing.T) {
	lines := []billingdomain.InvoiceLineItem{
		line("support basic 1", "EUR", "2", "10", "20"),
		line("hosting premium 2", "USD", "1", "100", "100"),
	}

	_, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeHourly, "2024-05", lines)
	assert.ErrorIs(t, err, billingdomain.ErrCurrencyMismatch)
}

func TestSummarizeEmployeeShares(t *testing.T) {
	a := line("support basic 1", "EUR", "2", "10", "20")
	a.Employee = "alice"
	a.EmployeeCost = d("10")
	b := line("support basic 1", "EUR", "8", "10", "80")
	b.Employee = "bob"
	b.EmployeeCost = d("40")

	sum, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeHourly, "2024-05", []billingdomain.InvoiceLineItem{a, b})
	require.NoError(t, err)

	require.Len(t, sum.Employees, 2)
	assert.Equal(t, "alice", sum.Employees[0].Employee)
	assert.True(t, d("10").Equal(sum.Employees[0].SharePercent), "got %s", sum.Employees[0].SharePercent)
	assert.Equal(t, "bob", sum.Employees[1].Employee)
	assert.True(t, d("40").Equal(sum.Employees[1].SharePercent), "got %s", sum.Employees[1].SharePercent)
}

func TestSummarizeZeroTotalShareGuard(t *testing.T) {
	a := line("support basic 1", "EUR", "0", "10", "0")
	a.Employee = "alice"
	a.EmployeeCost = d("0")

	sum, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeHourly, "2024-05", []billingdomain.InvoiceLineItem{a})
	require.NoError(t, err)

	require.Len(t, sum.Employees, 1)
	assert.True(t, sum.Employees[0].SharePercent.IsZero())
}

func TestSummarizeEmptyLines(t *testing.T) {
	sum, err := Summarize(testClient("EUR"), billingdomain.InvoiceTypeMonthly, "2024-05", nil)
	require.NoError(t, err)
	assert.True(t, sum.GrandTotal.IsZero())
	assert.Empty(t, sum.Plans)
}
