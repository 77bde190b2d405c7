// Package storage prices metered storage consumption from daily usage
// samples.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	"github.com/smallbiznis/servicebill/internal/billing/aggregate"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/servicebill/internal/observability/metrics"
	storagedomain "github.com/smallbiznis/servicebill/internal/storageusage/domain"
	tariffdomain "github.com/smallbiznis/servicebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var mbPerGB = decimal.NewFromInt(1000)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	ledger  ledgerdomain.Service
	assets  assetdomain.Service
	metrics *obsmetrics.BillingMetrics
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Ledger ledgerdomain.Service
	Assets assetdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.storage"),
		genID:   p.GenID,
		ledger:  p.Ledger,
		assets:  p.Assets,
		metrics: obsmetrics.Billing(),
	}
}

// measurementKey splits samples into independently averaged series.
type measurementKey struct {
	assetFQDN string
	target    string
	path      string
}

// Run prices the client's storage usage for the month containing at. Same-day
// duplicate samples per series collapse to one daily figure; the daily
// figures are summed and divided by the days in the month, converted MB to
// GB, and priced at the asset's storage rate.
func (s *Service) Run(ctx context.Context, client *assetdomain.Client, at time.Time) (*billingdomain.InvoiceSummary, error) {
	started := time.Now()
	s.metrics.IncRun(string(billingdomain.InvoiceTypeStorage))
	defer func() {
		s.metrics.ObserveRunDuration(string(billingdomain.InvoiceTypeStorage), time.Since(started))
	}()

	period := billingdomain.PeriodLabel(at)

	assets, err := s.assets.ResolveAssets(ctx, client, assetdomain.ResolveOptions{At: at})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeStorage), "resolve_assets")
		return nil, err
	}

	rates, err := storageRates(assets)
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeStorage), "rates")
		return nil, fmt.Errorf("client %s: %w", client.Name, err)
	}

	start, end := billingdomain.MonthBounds(at)
	daysInMonth := decimal.NewFromInt(int64(billingdomain.DaysInMonth(at)))

	var lines []billingdomain.InvoiceLineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var samples []storagedomain.UsageSample
		if err := tx.
			Where("client = ? AND sampled_at >= ? AND sampled_at < ?", client.Name, start, end).
			Order("sampled_at ASC, id ASC").
			Find(&samples).Error; err != nil {
			return err
		}
		// Samples for assets without a storage tariff stay unclaimed:
		// no charge, no consumption, not an error.
		priced := samples[:0]
		for _, sample := range samples {
			if _, ok := rates[sample.AssetFQDN]; ok {
				priced = append(priced, sample)
			}
		}
		samples = priced
		if len(samples) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(samples))
		for _, sample := range samples {
			ids = append(ids, sample.ID)
		}
		token, err := s.ledger.Claim(ctx, tx, ids)
		if err != nil {
			return err
		}
		claimed := map[snowflake.ID]struct{}{}
		for _, id := range token.RecordIDs {
			claimed[id] = struct{}{}
		}

		monthly := monthlyAverages(samples, claimed, daysInMonth)

		keys := make([]measurementKey, 0, len(monthly))
		for key := range monthly {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if a.assetFQDN != b.assetFQDN {
				return a.assetFQDN < b.assetFQDN
			}
			if a.target != b.target {
				return a.target < b.target
			}
			return a.path < b.path
		})

		for _, key := range keys {
			rr, ok := rates[key.assetFQDN]
			if !ok {
				// No storage tariff for this asset this month.
				continue
			}

			gigabytes := monthly[key].Div(mbPerGB)
			cost := gigabytes.Mul(rr.rate)

			item := billingdomain.InvoiceLineItem{
				ID:            s.genID.Generate(),
				TransactionID: token.TransactionID,
				Client:        client.Name,
				Type:          billingdomain.InvoiceTypeStorage,
				Period:        period,
				PlanLabel:     rr.planLabel,
				AssetFQDN:     key.assetFQDN,
				Description:   fmt.Sprintf("%s:%s", key.target, key.path),
				Quantity:      gigabytes,
				Rate:          rr.rate,
				Currency:      rr.currency,
				Cost:          cost,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			lines = append(lines, item)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeStorage), "run")
		return nil, err
	}

	s.metrics.AddLineItems(string(billingdomain.InvoiceTypeStorage), len(lines))
	s.log.Info("storage run complete",
		zap.String("client", client.Name),
		zap.String("period", period),
		zap.Int("line_items", len(lines)),
	)

	return aggregate.Summarize(client, billingdomain.InvoiceTypeStorage, period, lines)
}

// monthlyAverages collapses same-day duplicates to a daily mean per series,
// then averages the daily figures over the whole month.
func monthlyAverages(samples []storagedomain.UsageSample, claimed map[snowflake.ID]struct{}, daysInMonth decimal.Decimal) map[measurementKey]decimal.Decimal {
	type daily struct {
		sum   decimal.Decimal
		count int64
	}
	perDay := map[measurementKey]map[string]*daily{}

	for _, sample := range samples {
		if _, ok := claimed[sample.ID]; !ok {
			continue
		}
		key := measurementKey{
			assetFQDN: sample.AssetFQDN,
			target:    sample.StorageTarget,
			path:      sample.Path,
		}
		day := sample.SampledAt.UTC().Format("2006-01-02")
		if perDay[key] == nil {
			perDay[key] = map[string]*daily{}
		}
		if perDay[key][day] == nil {
			perDay[key][day] = &daily{}
		}
		perDay[key][day].sum = perDay[key][day].sum.Add(sample.MegaBytes)
		perDay[key][day].count++
	}

	out := map[measurementKey]decimal.Decimal{}
	for key, days := range perDay {
		total := decimal.Zero
		for _, d := range days {
			total = total.Add(d.sum.Div(decimal.NewFromInt(d.count)))
		}
		out[key] = total.Div(daysInMonth)
	}
	return out
}

type resolvedRate struct {
	planLabel string
	rate      decimal.Decimal
	currency  string
}

// storageRates indexes each asset's storage rate by fqdn. More than one
// storage rate in an asset's activated tariff is a configuration error.
func storageRates(assets []assetdomain.Asset) (map[string]resolvedRate, error) {
	rates := map[string]resolvedRate{}
	for _, asset := range assets {
		var found *tariffdomain.Plan
		for i := range asset.ActivatedTariff {
			plan := &asset.ActivatedTariff[i]
			if plan.Storage == nil {
				continue
			}
			if found != nil {
				return nil, fmt.Errorf("%w: asset %s matches %q and %q",
					billingdomain.ErrMultipleStorageTariffs, asset.FQDN,
					found.Label(), plan.Label())
			}
			found = plan
		}
		if found == nil {
			continue
		}
		currency := found.Storage.Currency
		if currency == "" {
			currency = found.Currency
		}
		rates[asset.FQDN] = resolvedRate{
			planLabel: found.Label(),
			rate:      found.Storage.Rate,
			currency:  currency,
		}
	}
	return rates, nil
}
