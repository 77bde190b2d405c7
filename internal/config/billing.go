package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries operator-tunable billing defaults. It is kept apart
// from the process Config because operators adjust these without redeploys.
type BillingConfig struct {
	// BillableLabel marks a time log entry as hourly-billable.
	BillableLabel string `mapstructure:"billableLabel"`
	// DefaultEmployeeShare is the revenue share percent applied when a
	// client does not override it.
	DefaultEmployeeShare float64 `mapstructure:"defaultEmployeeShare"`
	// LenientLabels downgrades label rate conflicts from fatal to
	// log-and-skip. Audit runs only, never real invoicing.
	LenientLabels bool `mapstructure:"lenientLabels"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		BillableLabel:        "Hourly",
		DefaultEmployeeShare: 50,
		LenientLabels:        false,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/servicebill/config")
	v.AddConfigPath("/etc/servicebill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SERVICEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.billableLabel", defaults.BillableLabel)
		v.SetDefault("billing.defaultEmployeeShare", defaults.DefaultEmployeeShare)
		v.SetDefault("billing.lenientLabels", defaults.LenientLabels)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// NewStaticBillingConfigHolder wraps a fixed config without file watching,
// for tests and one-shot tooling.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.BillableLabel) == "" {
		return errors.New("billing.billableLabel cannot be empty")
	}
	if cfg.DefaultEmployeeShare < 0 || cfg.DefaultEmployeeShare > 100 {
		return errors.New("billing.defaultEmployeeShare must be within 0..100")
	}
	return nil
}
