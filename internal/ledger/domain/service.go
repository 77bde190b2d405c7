package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ClaimToken identifies one exactly-once consumption of a set of source
// records. The token's transaction id tags every line item priced from the
// claimed records.
type ClaimToken struct {
	TransactionID snowflake.ID
	RecordIDs     []snowflake.ID
	ClaimedAt     time.Time
}

// Service is the append-only ledger. Claim is the only way to read
// unconsumed record ids; callers must price the claimed records inside the
// same transaction the claim was taken in.
type Service interface {
	// Claim marks the given record ids as consumed within tx and returns
	// the token covering the ones that were not already consumed. A
	// record claimed by an earlier run is silently excluded.
	Claim(ctx context.Context, tx *gorm.DB, recordIDs []snowflake.ID) (*ClaimToken, error)
	// LastBillingDate returns the date of the client's most recent
	// invoice row. Zero time when the client has never been billed.
	LastBillingDate(ctx context.Context, client string) (time.Time, error)
	// AppendInvoice appends one invoice row within tx.
	AppendInvoice(ctx context.Context, tx *gorm.DB, row *InvoiceRow) error
}

var (
	ErrEmptyClaim     = errors.New("ledger_empty_claim")
	ErrInvalidInvoice = errors.New("ledger_invalid_invoice")
)
