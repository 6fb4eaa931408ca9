package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StorefrontConfig carries the operator-tunable purchase policy.
type StorefrontConfig struct {
	RefundWindowHours    int   `mapstructure:"refundWindowHours"`
	DonationMinimumMinor int64 `mapstructure:"donationMinimumMinor"`
	CheckoutCooldownSecs int   `mapstructure:"checkoutCooldownSecs"`
	ConfigCacheTTLSecs   int   `mapstructure:"configCacheTTLSecs"`
}

func DefaultStorefrontConfig() StorefrontConfig {
	return StorefrontConfig{
		RefundWindowHours:    24,
		DonationMinimumMinor: 100,
		CheckoutCooldownSecs: 10,
		ConfigCacheTTLSecs:   30,
	}
}

func (c StorefrontConfig) RefundWindow() time.Duration {
	return time.Duration(c.RefundWindowHours) * time.Hour
}

func (c StorefrontConfig) CheckoutCooldown() time.Duration {
	return time.Duration(c.CheckoutCooldownSecs) * time.Second
}

func (c StorefrontConfig) ConfigCacheTTL() time.Duration {
	return time.Duration(c.ConfigCacheTTLSecs) * time.Second
}

type StorefrontConfigHolder struct {
	current atomic.Value // holds StorefrontConfig
}

// NewStorefrontConfigHolder reads storefront.yml and hot-reloads it on
// change. Missing files fall back to defaults.
func NewStorefrontConfigHolder() (*StorefrontConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("storefront")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultStorefrontConfig()
	v.SetDefault("storefront.refundWindowHours", defaults.RefundWindowHours)
	v.SetDefault("storefront.donationMinimumMinor", defaults.DonationMinimumMinor)
	v.SetDefault("storefront.checkoutCooldownSecs", defaults.CheckoutCooldownSecs)
	v.SetDefault("storefront.configCacheTTLSecs", defaults.ConfigCacheTTLSecs)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg StorefrontConfig
	if err := v.UnmarshalKey("storefront", &cfg); err != nil {
		return nil, err
	}
	if err := validateStorefrontConfig(cfg); err != nil {
		return nil, err
	}

	holder := &StorefrontConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated StorefrontConfig
		if err := v.UnmarshalKey("storefront", &updated); err != nil {
			log.Printf("[storefront-config] reload failed: %v", err)
			return
		}
		if err := validateStorefrontConfig(updated); err != nil {
			log.Printf("[storefront-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[storefront-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *StorefrontConfigHolder) Get() StorefrontConfig {
	return h.current.Load().(StorefrontConfig)
}

// NewStaticStorefrontConfigHolder is a test helper bypassing viper.
func NewStaticStorefrontConfigHolder(cfg StorefrontConfig) *StorefrontConfigHolder {
	holder := &StorefrontConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateStorefrontConfig(cfg StorefrontConfig) error {
	if cfg.RefundWindowHours <= 0 {
		return errors.New("storefront.refundWindowHours must be positive")
	}
	if cfg.DonationMinimumMinor <= 0 {
		return errors.New("storefront.donationMinimumMinor must be positive")
	}
	if cfg.ConfigCacheTTLSecs <= 0 {
		return errors.New("storefront.configCacheTTLSecs must be positive")
	}
	return nil
}
