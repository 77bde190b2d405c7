package billing

import (
	"github.com/smallbiznis/servicebill/internal/billing/hourly"
	"github.com/smallbiznis/servicebill/internal/billing/monthly"
	"github.com/smallbiznis/servicebill/internal/billing/run"
	"github.com/smallbiznis/servicebill/internal/billing/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(
		hourly.NewService,
		monthly.NewService,
		storage.NewService,
		run.NewService,
	),
)
