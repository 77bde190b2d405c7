// Package aggregate folds flat invoice line items into the per-plan and
// per-employee summaries invoices are rendered from.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/billing/format"
)

var hundred = decimal.NewFromInt(100)

// Summarize aggregates one client's line items into an invoice summary.
// Every line must carry the client's configured billing currency, and every
// plan group must carry a single uniform rate.
func Summarize(client *assetdomain.Client, invoiceType billingdomain.InvoiceType, period string, lines []billingdomain.InvoiceLineItem) (*billingdomain.InvoiceSummary, error) {
	currency := client.Billing.Currency

	planIndex := map[string]int{}
	var plans []billingdomain.PlanSummary
	employeeCost := map[string]decimal.Decimal{}
	grandTotal := decimal.Zero

	for _, line := range lines {
		if line.Currency != currency {
			return nil, fmt.Errorf("%w: client %s configured %s, line item %s carries %s",
				billingdomain.ErrCurrencyMismatch, client.Name, currency, line.PlanLabel, line.Currency)
		}

		idx, ok := planIndex[line.PlanLabel]
		if !ok {
			planIndex[line.PlanLabel] = len(plans)
			plans = append(plans, billingdomain.PlanSummary{
				PlanLabel: line.PlanLabel,
				Rate:      line.Rate,
				Currency:  line.Currency,
			})
			idx = len(plans) - 1
		} else if !plans[idx].Rate.Equal(line.Rate) {
			return nil, fmt.Errorf("%w: plan %q seen at %s and %s",
				billingdomain.ErrPlanRateConflict, line.PlanLabel, plans[idx].Rate, line.Rate)
		}

		plans[idx].Quantity = plans[idx].Quantity.Add(line.Quantity)
		plans[idx].Cost = plans[idx].Cost.Add(line.Cost)
		grandTotal = grandTotal.Add(line.Cost)

		if line.Employee != "" {
			employeeCost[line.Employee] = employeeCost[line.Employee].Add(line.EmployeeCost)
		}
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].PlanLabel < plans[j].PlanLabel })

	employees := make([]billingdomain.EmployeeShare, 0, len(employeeCost))
	for employee, cost := range employeeCost {
		share := decimal.Zero
		if !grandTotal.IsZero() {
			share = cost.Div(grandTotal).Mul(hundred).Round(2)
		}
		employees = append(employees, billingdomain.EmployeeShare{
			Employee:     employee,
			Cost:         cost,
			SharePercent: share,
		})
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].Employee < employees[j].Employee })

	return &billingdomain.InvoiceSummary{
		Client:         client.Name,
		Type:           invoiceType,
		Period:         period,
		Currency:       currency,
		Lines:          lines,
		Plans:          plans,
		Employees:      employees,
		GrandTotal:     grandTotal,
		GrandTotalText: format.SpellAmount(grandTotal, currency, client.Billing.Locale),
	}, nil
}
