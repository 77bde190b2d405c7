package migration

import (
	billingdomain "github.com/smallbiznis/servicebill/internal/billing/domain"
	"github.com/smallbiznis/servicebill/internal/config"
	ledgerdomain "github.com/smallbiznis/servicebill/internal/ledger/domain"
	storagedomain "github.com/smallbiznis/servicebill/internal/storageusage/domain"
	timelogdomain "github.com/smallbiznis/servicebill/internal/timelog/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres deployments (sqlite smoke setups, mysql)
			// fall back to schema sync from the models.
			return conn.AutoMigrate(
				&timelogdomain.TimeLogEntry{},
				&storagedomain.UsageSample{},
				&ledgerdomain.CheckedRecord{},
				&ledgerdomain.InvoiceRow{},
				&billingdomain.InvoiceLineItem{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
