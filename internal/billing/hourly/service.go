// Package hourly prices tracked work hours against asset hourly rates.
package hourly

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	"github.com/smallbiznis/servicebill/internal/billing/aggregate"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/config"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/servicebill/internal/observability/metrics"
	timelogdomain "github.com/smallbiznis/servicebill/internal/timelog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// resolvedRate is the single rate an entry's labels must agree on.
type resolvedRate struct {
	assetFQDN string
	planLabel string
	rate      decimal.Decimal
	currency  string
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	ledger  ledgerdomain.Service
	assets  assetdomain.Service
	holder  *config.BillingConfigHolder
	metrics *obsmetrics.BillingMetrics
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Ledger ledgerdomain.Service
	Assets assetdomain.Service
	Holder *config.BillingConfigHolder
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.hourly"),
		genID:   p.GenID,
		ledger:  p.Ledger,
		assets:  p.Assets,
		holder:  p.Holder,
		metrics: obsmetrics.Billing(),
	}
}

// Run prices the client's billable time log entries for the month containing
// at. Entries already consumed by an earlier run drop out of the claim and
// produce no new line items.
func (s *Service) Run(ctx context.Context, client *assetdomain.Client, at time.Time, lenient bool) (*billingdomain.InvoiceSummary, error) {
	started := time.Now()
	s.metrics.IncRun(string(billingdomain.InvoiceTypeHourly))
	defer func() {
		s.metrics.ObserveRunDuration(string(billingdomain.InvoiceTypeHourly), time.Since(started))
	}()

	cfg := s.holder.Get()
	period := billingdomain.PeriodLabel(at)

	assets, err := s.assets.ResolveAssets(ctx, client, assetdomain.ResolveOptions{At: at})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeHourly), "resolve_assets")
		return nil, err
	}
	rates, err := hourlyRates(assets)
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeHourly), "rates")
		return nil, fmt.Errorf("client %s: %w", client.Name, err)
	}

	start, end := billingdomain.MonthBounds(at)

	var lines []billingdomain.InvoiceLineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []timelogdomain.TimeLogEntry
		if err := tx.
			Where("logged_at >= ? AND logged_at < ?", start, end).
			Order("logged_at ASC, id ASC").
			Find(&entries).Error; err != nil {
			return err
		}

		// Only entries labeled with one of this client's asset fqdns
		// belong to this run; the rest stay unclaimed for other
		// clients.
		billable := make([]timelogdomain.TimeLogEntry, 0, len(entries))
		ids := make([]snowflake.ID, 0, len(entries))
		for _, entry := range entries {
			if !entry.HasLabel(cfg.BillableLabel) || !labelsMatch(entry, rates) {
				continue
			}
			billable = append(billable, entry)
			ids = append(ids, entry.ID)
		}
		if len(ids) == 0 {
			return nil
		}

		token, err := s.ledger.Claim(ctx, tx, ids)
		if err != nil {
			return err
		}
		claimed := map[snowflake.ID]struct{}{}
		for _, id := range token.RecordIDs {
			claimed[id] = struct{}{}
		}

		for _, entry := range billable {
			if _, ok := claimed[entry.ID]; !ok {
				continue
			}

			rr, err := resolveEntryRate(entry, rates)
			if err != nil {
				if lenient {
					s.metrics.IncLenientSkip(string(billingdomain.InvoiceTypeHourly), "rate_conflict")
					s.log.Warn("skipping entry with unresolvable rate",
						zap.String("client", client.Name),
						zap.String("entry_id", entry.ID.String()),
						zap.Error(err),
					)
					continue
				}
				return fmt.Errorf("client %s entry %s: %w", client.Name, entry.ID, err)
			}

			cost := entry.Hours.Mul(rr.rate)
			sharePercent := employeeShare(client, entry.Employee, cfg)
			employeeCost := cost.Mul(sharePercent).Div(hundred)

			item := billingdomain.InvoiceLineItem{
				ID:            s.genID.Generate(),
				TransactionID: token.TransactionID,
				Client:        client.Name,
				Type:          billingdomain.InvoiceTypeHourly,
				Period:        period,
				PlanLabel:     rr.planLabel,
				AssetFQDN:     rr.assetFQDN,
				Employee:      entry.Employee,
				Description:   entry.Description,
				Quantity:      entry.Hours,
				Rate:          rr.rate,
				Currency:      rr.currency,
				Cost:          cost,
				EmployeeCost:  employeeCost,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			lines = append(lines, item)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeHourly), "run")
		return nil, err
	}

	s.metrics.AddLineItems(string(billingdomain.InvoiceTypeHourly), len(lines))
	s.log.Info("hourly run complete",
		zap.String("client", client.Name),
		zap.String("period", period),
		zap.Int("line_items", len(lines)),
	)

	return aggregate.Summarize(client, billingdomain.InvoiceTypeHourly, period, lines)
}

// hourlyRates indexes the hourly rate of every asset by fqdn.
func hourlyRates(assets []assetdomain.Asset) (map[string]resolvedRate, error) {
	rates := map[string]resolvedRate{}
	for _, asset := range assets {
		for _, plan := range asset.ActivatedTariff {
			if plan.Hourly == nil {
				continue
			}
			currency := plan.Hourly.Currency
			if currency == "" {
				currency = plan.Currency
			}
			candidate := resolvedRate{
				assetFQDN: asset.FQDN,
				planLabel: plan.Label(),
				rate:      plan.Hourly.Rate,
				currency:  currency,
			}
			if existing, ok := rates[asset.FQDN]; ok {
				if !existing.rate.Equal(candidate.rate) || existing.currency != candidate.currency {
					return nil, fmt.Errorf("%w: asset %s carries %s %s and %s %s",
						billingdomain.ErrTariffRateConflict, asset.FQDN,
						existing.rate, existing.currency, candidate.rate, candidate.currency)
				}
				continue
			}
			rates[asset.FQDN] = candidate
		}
	}
	return rates, nil
}

// labelsMatch reports whether any entry label names one of the client's
// assets.
func labelsMatch(entry timelogdomain.TimeLogEntry, rates map[string]resolvedRate) bool {
	for _, label := range entry.Labels {
		if _, ok := rates[label]; ok {
			return true
		}
	}
	return false
}

// resolveEntryRate scans the entry's labels for asset fqdns and requires
// every match to agree on one rate and currency.
func resolveEntryRate(entry timelogdomain.TimeLogEntry, rates map[string]resolvedRate) (resolvedRate, error) {
	var found *resolvedRate
	for _, label := range entry.Labels {
		rr, ok := rates[label]
		if !ok {
			continue
		}
		if found == nil {
			match := rr
			found = &match
			continue
		}
		if !found.rate.Equal(rr.rate) || found.currency != rr.currency {
			return resolvedRate{}, fmt.Errorf("%w: labels resolve to %s %s and %s %s",
				billingdomain.ErrTariffRateConflict,
				found.rate, found.currency, rr.rate, rr.currency)
		}
	}
	if found == nil {
		return resolvedRate{}, billingdomain.ErrNoHourlyRate
	}
	return *found, nil
}

func employeeShare(client *assetdomain.Client, employee string, cfg config.BillingConfig) decimal.Decimal {
	if pct, ok := client.Billing.EmployeeShare[employee]; ok {
		return decimal.NewFromFloat(pct)
	}
	return decimal.NewFromFloat(cfg.DefaultEmployeeShare)
}
