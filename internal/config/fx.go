package config

import "go.uber.org/fx"

// Module wires process and billing configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewBillingConfigHolder,
	),
)
