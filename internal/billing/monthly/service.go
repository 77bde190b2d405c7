// Package monthly prices flat monthly tariffs with mid-month proration.
package monthly

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	"github.com/smallbiznis/servicebill/internal/billing/aggregate"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/servicebill/internal/observability/metrics"
	"github.com/smallbiznis/servicebill/internal/proration"
	tariffdomain "github.com/smallbiznis/servicebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		log:     p.Log.Named("billing.monthly"),
		genID:   p.GenID,
		ledger:  p.Ledger,
		assets:  p.Assets,
		metrics: obsmetrics.Billing(),
	}
}

// Run prices the client's monthly tariffs for the month containing at. Each
// active asset with a monthly rate in its activated tariff yields one line
// item, scaled by the prorated portion of the month owed.
func (s *Service) Run(ctx context.Context, client *assetdomain.Client, at time.Time) (*billingdomain.InvoiceSummary, error) {
	started := time.Now()
	s.metrics.IncRun(string(billingdomain.InvoiceTypeMonthly))
	defer func() {
		s.metrics.ObserveRunDuration(string(billingdomain.InvoiceTypeMonthly), time.Since(started))
	}()

	period := billingdomain.PeriodLabel(at)

	assets, err := s.assets.ResolveAssets(ctx, client, assetdomain.ResolveOptions{At: at})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeMonthly), "resolve_assets")
		return nil, err
	}

	lastBilled, err := s.ledger.LastBillingDate(ctx, client.Name)
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeMonthly), "last_billing_date")
		return nil, err
	}

	var lines []billingdomain.InvoiceLineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transactionID := s.genID.Generate()

		for _, asset := range assets {
			version, err := tariffdomain.ResolveVersion(asset.Tariffs, at)
			if err != nil {
				return fmt.Errorf("client %s asset %s: %w", client.Name, asset.FQDN, err)
			}
			olderExists, err := tariffdomain.OlderVersionExists(asset.Tariffs, at)
			if err != nil {
				return fmt.Errorf("client %s asset %s: %w", client.Name, asset.FQDN, err)
			}

			portion := proration.Portion(proration.Input{
				Activated:         version.ActivatedAt(),
				Added:             version.AddedAt(),
				LastBillingDate:   lastBilled,
				TargetMonth:       at,
				OlderTariffExists: olderExists,
				Migrated:          version.Migrated(),
			})
			if portion.IsZero() {
				continue
			}

			for _, plan := range asset.ActivatedTariff {
				if plan.Monthly == nil {
					continue
				}
				currency := plan.Monthly.Currency
				if currency == "" {
					currency = plan.Currency
				}

				cost := plan.Monthly.Rate.Mul(portion)
				item := billingdomain.InvoiceLineItem{
					ID:            s.genID.Generate(),
					TransactionID: transactionID,
					Client:        client.Name,
					Type:          billingdomain.InvoiceTypeMonthly,
					Period:        period,
					PlanLabel:     plan.Label(),
					AssetFQDN:     asset.FQDN,
					Description:   asset.Description,
					Quantity:      portion,
					Rate:          plan.Monthly.Rate,
					Currency:      currency,
					Cost:          cost,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				lines = append(lines, item)
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.IncRunError(string(billingdomain.InvoiceTypeMonthly), "run")
		return nil, err
	}

	s.metrics.AddLineItems(string(billingdomain.InvoiceTypeMonthly), len(lines))
	s.log.Info("monthly run complete",
		zap.String("client", client.Name),
		zap.String("period", period),
		zap.Int("line_items", len(lines)),
	)

	return aggregate.Summarize(client, billingdomain.InvoiceTypeMonthly, period, lines)
}
