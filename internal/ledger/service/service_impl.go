package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicebill/internal/clock"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	"github.com/smallbiznis/servicebill/pkg/db"
	"github.com/smallbiznis/servicebill/pkg/db/option"
	"github.com/smallbiznis/servicebill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices repository.Repository[ledgerdomain.InvoiceRow]
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: repository.ProvideStore[ledgerdomain.InvoiceRow](p.DB),
	}
}

func (s *Service) Claim(ctx context.Context, tx *gorm.DB, recordIDs []snowflake.ID) (*ledgerdomain.ClaimToken, error) {
	if len(recordIDs) == 0 {
		return nil, ledgerdomain.ErrEmptyClaim
	}
	if tx == nil {
		tx = s.db
	}

	transactionID := s.genID.Generate()
	now := s.clock.Now()

	rows := make([]ledgerdomain.CheckedRecord, 0, len(recordIDs))
	for _, id := range recordIDs {
		rows = append(rows, ledgerdomain.CheckedRecord{
			SourceRecordID: id,
			TransactionID:  transactionID,
			CheckedAt:      now,
		})
	}

	// Insert-or-ignore, then read back which rows carry this transaction
	// id. Records marked by an earlier run keep their original marker and
	// drop out of the claim.
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if db.IsDuplicateKeyErr(err) {
		// Driver without conflict-clause support; insert one by one and
		// skip the rows already marked.
		for i := range rows {
			rowErr := tx.WithContext(ctx).Create(&rows[i]).Error
			if rowErr != nil && !db.IsDuplicateKeyErr(rowErr) {
				return nil, rowErr
			}
		}
	} else if err != nil {
		return nil, err
	}

	var claimedIDs []snowflake.ID
	if err := tx.WithContext(ctx).
		Model(&ledgerdomain.CheckedRecord{}).
		Where("transaction_id = ?", transactionID).
		Pluck("source_record_id", &claimedIDs).Error; err != nil {
		return nil, err
	}

	s.log.Debug("records claimed",
		zap.String("transaction_id", transactionID.String()),
		zap.Int("requested", len(recordIDs)),
		zap.Int("claimed", len(claimedIDs)),
	)

	return &ledgerdomain.ClaimToken{
		TransactionID: transactionID,
		RecordIDs:     claimedIDs,
		ClaimedAt:     now,
	}, nil
}

func (s *Service) LastBillingDate(ctx context.Context, client string) (time.Time, error) {
	row, err := s.invoices.FindOne(ctx, &ledgerdomain.InvoiceRow{Client: client},
		option.WithOrderBy("date_created DESC"),
	)
	if err != nil {
		return time.Time{}, err
	}
	if row == nil {
		return time.Time{}, nil
	}
	return row.DateCreated, nil
}

func (s *Service) AppendInvoice(ctx context.Context, tx *gorm.DB, row *ledgerdomain.InvoiceRow) error {
	if row == nil || row.Client == "" || row.Currency == "" {
		return ledgerdomain.ErrInvalidInvoice
	}
	if tx == nil {
		tx = s.db
	}
	if row.ID == 0 {
		row.ID = s.genID.Generate()
	}
	if row.DateCreated.IsZero() {
		row.DateCreated = s.clock.Now()
	}
	if row.Status == "" {
		row.Status = ledgerdomain.InvoiceStatusDraft
	}
	return s.invoices.WithTrx(tx).Create(ctx, row)
}
