// Package observability wires logging and metrics for the engine.
package observability

import (
	"github.com/smallbiznis/servicebill/internal/logger"
	"github.com/smallbiznis/servicebill/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Invoke(ensureBillingMetrics),
)

// ensureBillingMetrics registers the billing collectors at startup instead of
// on first use.
func ensureBillingMetrics() {
	_ = metrics.Billing()
}
