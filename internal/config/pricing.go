package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig holds the discount defaults applied when an event does not
// carry its own rate, plus the reconciliation guard rails.
type PricingConfig struct {
	StudentDiscountPercent    float64 `mapstructure:"studentDiscountPercent"`
	MultiEventDiscountPercent float64 `mapstructure:"multiEventDiscountPercent"`
	OverpayTolerance          float64 `mapstructure:"overpayTolerance"`
	MinChargeMinorUnits       int64   `mapstructure:"minChargeMinorUnits"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		StudentDiscountPercent:    50,
		MultiEventDiscountPercent: 40,
		OverpayTolerance:          0.01,
		MinChargeMinorUnits:       100,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/summit/config") // Volume-mounted config
	v.AddConfigPath("/etc/summit")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("SUMMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.studentDiscountPercent", defaults.StudentDiscountPercent)
		v.SetDefault("pricing.multiEventDiscountPercent", defaults.MultiEventDiscountPercent)
		v.SetDefault("pricing.overpayTolerance", defaults.OverpayTolerance)
		v.SetDefault("pricing.minChargeMinorUnits", defaults.MinChargeMinorUnits)
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// NewStaticPricingConfigHolder returns a holder pinned to cfg, for tests and
// embedded callers that do not want file watching.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.StudentDiscountPercent < 0 || cfg.StudentDiscountPercent > 100 {
		return errors.New("pricing.studentDiscountPercent must be within [0, 100]")
	}
	if cfg.MultiEventDiscountPercent < 0 || cfg.MultiEventDiscountPercent > 100 {
		return errors.New("pricing.multiEventDiscountPercent must be within [0, 100]")
	}
	if cfg.OverpayTolerance < 0 {
		return errors.New("pricing.overpayTolerance cannot be negative")
	}
	if cfg.MinChargeMinorUnits < 0 {
		return errors.New("pricing.minChargeMinorUnits cannot be negative")
	}
	return nil
}
