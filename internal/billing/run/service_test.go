package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	assetservice "github.com/smallbiznis/servicebill/internal/asset/service"
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/billing/hourly"
	"github.com/smallbiznis/servicebill/internal/billing/monthly"
	"github.com/smallbiznis/servicebill/internal/billing/storage"
	"github.com/smallbiznis/servicebill/internal/clock"
	"github.com/smallbiznis/servicebill/internal/config"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/servicebill/internal/ledger/service"
	tariffservice "github.com/smallbiznis/servicebill/internal/tariff/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func writeFile(t *testing.T, dir, name, doc string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func setup(t *testing.T) (*Service, *gorm.DB, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.CheckedRecord{},
		&ledgerdomain.InvoiceRow{},
		&billingdomain.InvoiceLineItem{},
	))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()

	tariffsDir := t.TempDir()
	writeFile(t, tariffsDir, "hosting.yaml", `
service: hosting
plan: premium
revision: 2
currency: EUR
monthly:
  rate: 100
`)

	clientsDir := t.TempDir()
	tariffs := tariffservice.NewServiceAt(tariffsDir, log)
	assets := assetservice.NewServiceAt(clientsDir, tariffs, log)

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: log, GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)),
	})
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	hourlySvc := hourly.NewService(hourly.Params{
		DB: db, Log: log, GenID: node, Ledger: ledger, Assets: assets, Holder: holder,
	})
	monthlySvc := monthly.NewService(monthly.Params{
		DB: db, Log: log, GenID: node, Ledger: ledger, Assets: assets,
	})
	storageSvc := storage.NewService(storage.Params{
		DB: db, Log: log, GenID: node, Ledger: ledger, Assets: assets,
	})

	svc := NewService(Params{
		DB: db, Log: log, Assets: assets, Ledger: ledger,
		Hourly: hourlySvc, Monthly: monthlySvc, Storage: storageSvc,
	})
	return svc, db, clientsDir
}

const clientDoc = `
name: %NAME%
active: true
billing:
  currency: EUR
  locale: en
assets:
  - fqdn: web1.%NAME%.example
    active: true
    tariffs:
      - activated: 2024-05-01T00:00:00Z
        tariffs:
          - file: hosting.yaml
`

func seedClient(t *testing.T, dir, name string) {
	writeFile(t, dir, name+".yaml", strings.ReplaceAll(clientDoc, "%NAME%", name))
}

func TestRunAllClientsAppendsInvoices(t *testing.T) {
	svc, db, clientsDir := setup(t)
	seedClient(t, clientsDir, "acme")
	seedClient(t, clientsDir, "globex")

	at := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{At: at})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Empty(t, report.Failed())
	for _, outcome := range report.Outcomes {
		require.NoError(t, outcome.Err)
		assert.True(t, decimal.RequireFromString("100").Equal(outcome.Summary.GrandTotal))
	}

	var rows []ledgerdomain.InvoiceRow
	require.NoError(t, db.Order("client").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "acme", rows[0].Client)
	assert.Equal(t, "globex", rows[1].Client)
	assert.Equal(t, "2024-05", rows[0].Period)
}

func TestRunSingleClient(t *testing.T) {
	svc, _, clientsDir := setup(t)
	seedClient(t, clientsDir, "acme")
	seedClient(t, clientsDir, "globex")

	at := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{At: at, Client: "acme"})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "acme", report.Outcomes[0].Client)
}

func TestRunUnknownClient(t *testing.T) {
	svc, _, clientsDir := setup(t)
	seedClient(t, clientsDir, "acme")

	_, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{
		At:     time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		Client: "nope",
	})
	assert.Error(t, err)
}

func TestRunIncludeExcludeFilters(t *testing.T) {
	svc, _, clientsDir := setup(t)
	seedClient(t, clientsDir, "acme")
	seedClient(t, clientsDir, "globex")
	seedClient(t, clientsDir, "initech")

	at := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{
		At:      at,
		Include: []string{"acme", "globex"},
		Exclude: []string{"globex"},
	})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "acme", report.Outcomes[0].Client)
}

func TestRunDryRunAppendsNothing(t *testing.T) {
	svc, db, clientsDir := setup(t)
	seedClient(t, clientsDir, "acme")

	at := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{At: at, DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.InvoiceRow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunAbortsOnFirstClientFailure(t *testing.T) {
	svc, db, clientsDir := setup(t)
	// Broken client: tariff file that does not exist. Sorts before the
	// healthy one, so the abort must happen before any money moves.
	writeFile(t, clientsDir, "broken.yaml", `
name: broken
active: true
billing:
  currency: EUR
assets:
  - fqdn: web1.broken.example
    active: true
    tariffs:
      - activated: 2024-01-01T00:00:00Z
        tariffs:
          - file: missing.yaml
`)
	seedClient(t, clientsDir, "globex")

	at := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.Run(context.Background(), billingdomain.InvoiceTypeMonthly, Options{At: at})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Nil(t, report)

	// The healthy client was never billed: no partial batch.
	var count int64
	require.NoError(t, db.Model(&ledgerdomain.InvoiceRow{}).Count(&count).Error)
	assert.Zero(t, count)
}
