package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicebill/internal/asset"
	"github.com/smallbiznis/servicebill/internal/billing"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/billing/run"
	"github.com/smallbiznis/servicebill/internal/clock"
	"github.com/smallbiznis/servicebill/internal/config"
	"github.com/smallbiznis/servicebill/internal/ledger"
	"github.com/smallbiznis/servicebill/internal/migration"
	"github.com/smallbiznis/servicebill/internal/observability"
	"github.com/smallbiznis/servicebill/internal/tariff"
	"github.com/smallbiznis/servicebill/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	flagClient  string
	flagType    string
	flagAt      string
	flagLenient bool
	flagDryRun  bool
	flagInclude []string
	flagExclude []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "servicebill",
		Short: "Tariff resolution and usage-based billing computation engine",
		RunE:  runBilling,
	}

	rootCmd.Flags().StringVar(&flagClient, "client", "", "bill a single client; empty means every active client")
	rootCmd.Flags().StringVar(&flagType, "type", string(billingdomain.InvoiceTypeMonthly), "invoice type: Hourly, Monthly or Storage")
	rootCmd.Flags().StringVar(&flagAt, "at", "", "simulated run date (YYYY-MM-DD); empty means now")
	rootCmd.Flags().BoolVar(&flagLenient, "lenient", false, "downgrade label rate conflicts to log-and-skip (audit runs only)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute without appending invoice rows")
	rootCmd.Flags().StringSliceVar(&flagInclude, "include", nil, "restrict the batch to these clients")
	rootCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "drop these clients from the batch")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBilling(cmd *cobra.Command, _ []string) error {
	invoiceType, err := parseInvoiceType(flagType)
	if err != nil {
		return err
	}

	clockModule := clock.Module
	at := time.Now().UTC()
	if flagAt != "" {
		parsed, err := time.Parse("2006-01-02", flagAt)
		if err != nil {
			return fmt.Errorf("invalid --at date %q: %w", flagAt, err)
		}
		at = parsed.UTC()
		clockModule = fx.Module("clock", fx.Provide(func() clock.Clock { return clock.At(at) }))
	}

	var runErr error
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clockModule,
		migration.Module,

		tariff.Module,
		asset.Module,
		ledger.Module,
		billing.Module,

		fx.Invoke(func(lc fx.Lifecycle, runner *run.Service, log *zap.Logger, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer shutdowner.Shutdown()
						report, err := runner.Run(cmd.Context(), invoiceType, run.Options{
							Client:  flagClient,
							Include: flagInclude,
							Exclude: flagExclude,
							At:      at,
							Lenient: flagLenient,
							DryRun:  flagDryRun,
						})
						if err != nil {
							log.Error("billing run aborted", zap.Error(err))
							runErr = err
							return
						}
						printReport(report)
					}()
					return nil
				},
			})
		}),
	)

	app.Run()
	if runErr != nil {
		return fmt.Errorf("billing run aborted: %w", runErr)
	}
	return nil
}

func printReport(report *billingdomain.BatchReport) {
	for _, outcome := range report.Outcomes {
		s := outcome.Summary
		fmt.Printf("%-30s %s %s: %s %s (%s), %d line item(s)\n",
			outcome.Client, s.Type, s.Period, s.GrandTotal.StringFixed(2), s.Currency,
			s.GrandTotalText, len(s.Lines))
	}
}

func parseInvoiceType(raw string) (billingdomain.InvoiceType, error) {
	switch strings.ToLower(raw) {
	case "hourly":
		return billingdomain.InvoiceTypeHourly, nil
	case "monthly":
		return billingdomain.InvoiceTypeMonthly, nil
	case "storage":
		return billingdomain.InvoiceTypeStorage, nil
	default:
		return "", fmt.Errorf("unknown invoice type %q", raw)
	}
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
