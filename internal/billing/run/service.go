// Package run orchestrates billing runs across clients and invoice types.
package run

import (
	"context"
	"fmt"
	"time"

	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/billing/hourly"
	"github.com/smallbiznis/servicebill/internal/billing/monthly"
	"github.com/smallbiznis/servicebill/internal/billing/storage"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options selects what a billing run covers.
type Options struct {
	// Client restricts the run to one client name. Empty means every
	// active client.
	Client string
	// Include restricts the batch to the named clients when non-empty.
	Include []string
	// Exclude drops the named clients from the batch.
	Exclude []string
	// At is the instant the run is computed against, normally now but
	// overridable for simulated replays.
	At time.Time
	// Lenient downgrades label rate conflicts to log-and-skip. Audit runs
	// only.
	Lenient bool
	// DryRun computes summaries without appending invoice rows.
	DryRun bool
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	assets  assetdomain.Service
	ledger  ledgerdomain.Service
	hourly  *hourly.Service
	monthly *monthly.Service
	storage *storage.Service
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Assets  assetdomain.Service
	Ledger  ledgerdomain.Service
	Hourly  *hourly.Service
	Monthly *monthly.Service
	Storage *storage.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.run"),
		assets:  p.Assets,
		ledger:  p.Ledger,
		hourly:  p.Hourly,
		monthly: p.Monthly,
		storage: p.Storage,
	}
}

// Run executes one billing run and returns the per-client batch report.
// Billing runs are monetary: the first client failure aborts the whole run,
// so an operator never gets a partially billed batch to untangle. Collected
// per-outcome errors in BatchReport are reserved for bulk operations that do
// not move money.
func (s *Service) Run(ctx context.Context, invoiceType billingdomain.InvoiceType, opts Options) (*billingdomain.BatchReport, error) {
	clients, err := s.selectClients(ctx, opts)
	if err != nil {
		return nil, err
	}

	report := &billingdomain.BatchReport{
		Type:   invoiceType,
		Period: billingdomain.PeriodLabel(opts.At),
	}

	for _, client := range clients {
		summary, err := s.runClient(ctx, invoiceType, client, opts)
		if err != nil {
			s.log.Error("billing run aborted",
				zap.String("client", client.Name),
				zap.String("type", string(invoiceType)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("client %s: %w", client.Name, err)
		}
		report.Outcomes = append(report.Outcomes, billingdomain.ClientOutcome{
			Client:  client.Name,
			Summary: summary,
		})
	}
	return report, nil
}

func (s *Service) runClient(ctx context.Context, invoiceType billingdomain.InvoiceType, client *assetdomain.Client, opts Options) (*billingdomain.InvoiceSummary, error) {
	var (
		summary *billingdomain.InvoiceSummary
		err     error
	)
	switch invoiceType {
	case billingdomain.InvoiceTypeHourly:
		summary, err = s.hourly.Run(ctx, client, opts.At, opts.Lenient)
	case billingdomain.InvoiceTypeMonthly:
		summary, err = s.monthly.Run(ctx, client, opts.At)
	case billingdomain.InvoiceTypeStorage:
		summary, err = s.storage.Run(ctx, client, opts.At)
	default:
		return nil, fmt.Errorf("unknown invoice type %q", invoiceType)
	}
	if err != nil {
		return nil, err
	}

	if opts.DryRun || len(summary.Lines) == 0 {
		return summary, nil
	}

	row := &ledgerdomain.InvoiceRow{
		Client:   summary.Client,
		Type:     string(summary.Type),
		Period:   summary.Period,
		Currency: summary.Currency,
		Amount:   summary.GrandTotal,
		Status:   ledgerdomain.InvoiceStatusDraft,
	}
	if err := s.ledger.AppendInvoice(ctx, s.db.WithContext(ctx), row); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Service) selectClients(ctx context.Context, opts Options) ([]*assetdomain.Client, error) {
	if opts.Client != "" {
		clients, err := s.assets.LoadClients(ctx)
		if err != nil {
			return nil, err
		}
		for _, client := range clients {
			if client.Name == opts.Client {
				return []*assetdomain.Client{client}, nil
			}
		}
		return nil, fmt.Errorf("client %q not found", opts.Client)
	}

	clients, err := s.assets.LoadClients(ctx)
	if err != nil {
		return nil, err
	}

	include := toSet(opts.Include)
	exclude := toSet(opts.Exclude)

	var out []*assetdomain.Client
	for _, client := range clients {
		if !client.Active {
			continue
		}
		if len(include) > 0 {
			if _, ok := include[client.Name]; !ok {
				continue
			}
		}
		if _, ok := exclude[client.Name]; ok {
			continue
		}
		out = append(out, client)
	}
	return out, nil
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}
