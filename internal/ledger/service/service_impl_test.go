package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/servicebill/internal/clock"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&ledgerdomain.CheckedRecord{},
		&ledgerdomain.InvoiceRow{},
	)
	require.NoError(t, err)

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)),
	})
	return svc, db, node
}

func TestClaimMarksRecordsOnce(t *testing.T) {
	svc, db, node := setupLedger(t)
	ctx := context.Background()

	ids := []snowflake.ID{node.Generate(), node.Generate(), node.Generate()}

	token, err := svc.Claim(ctx, db, ids)
	require.NoError(t, err)
	assert.Len(t, token.RecordIDs, 3)
	assert.NotZero(t, token.TransactionID)

	// A second claim over the same ids consumes nothing.
	again, err := svc.Claim(ctx, db, ids)
	require.NoError(t, err)
	assert.Empty(t, again.RecordIDs)
	assert.NotEqual(t, token.TransactionID, again.TransactionID)
}

func TestClaimPartialOverlap(t *testing.T) {
	svc, db, node := setupLedger(t)
	ctx := context.Background()

	a, b, c := node.Generate(), node.Generate(), node.Generate()

	first, err := svc.Claim(ctx, db, []snowflake.ID{a, b})
	require.NoError(t, err)
	assert.Len(t, first.RecordIDs, 2)

	second, err := svc.Claim(ctx, db, []snowflake.ID{b, c})
	require.NoError(t, err)
	require.Len(t, second.RecordIDs, 1)
	assert.Equal(t, c, second.RecordIDs[0])
}

func TestClaimEmpty(t *testing.T) {
	svc, db, _ := setupLedger(t)
	_, err := svc.Claim(context.Background(), db, nil)
	assert.ErrorIs(t, err, ledgerdomain.ErrEmptyClaim)
}

func TestClaimTransactionIDsMonotonic(t *testing.T) {
	svc, db, node := setupLedger(t)
	ctx := context.Background()

	var last snowflake.ID
	for i := 0; i < 5; i++ {
		token, err := svc.Claim(ctx, db, []snowflake.ID{node.Generate()})
		require.NoError(t, err)
		assert.Greater(t, int64(token.TransactionID), int64(last))
		last = token.TransactionID
	}
}

func TestLastBillingDate(t *testing.T) {
	svc, db, _ := setupLedger(t)
	ctx := context.Background()

	got, err := svc.LastBillingDate(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, svc.AppendInvoice(ctx, db, &ledgerdomain.InvoiceRow{
		Client:      "acme",
		Type:        "Monthly",
		Period:      "2024-03",
		Currency:    "EUR",
		Amount:      decimal.RequireFromString("100"),
		DateCreated: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, svc.AppendInvoice(ctx, db, &ledgerdomain.InvoiceRow{
		Client:      "acme",
		Type:        "Monthly",
		Period:      "2024-04",
		Currency:    "EUR",
		Amount:      decimal.RequireFromString("100"),
		DateCreated: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}))

	got, err = svc.LastBillingDate(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), got.UTC())

	// Other clients' invoices do not leak in.
	got, err = svc.LastBillingDate(ctx, "globex")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestAppendInvoiceDefaults(t *testing.T) {
	svc, db, _ := setupLedger(t)
	ctx := context.Background()

	row := &ledgerdomain.InvoiceRow{
		Client:   "acme",
		Type:     "Hourly",
		Period:   "2024-05",
		Currency: "EUR",
		Amount:   decimal.RequireFromString("42"),
	}
	require.NoError(t, svc.AppendInvoice(ctx, db, row))
	assert.NotZero(t, row.ID)
	assert.Equal(t, ledgerdomain.InvoiceStatusDraft, row.Status)
	assert.Equal(t, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC), row.DateCreated.UTC())
}

func TestAppendInvoiceValidation(t *testing.T) {
	svc, db, _ := setupLedger(t)
	err := svc.AppendInvoice(context.Background(), db, &ledgerdomain.InvoiceRow{Client: "acme"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidInvoice)
}
