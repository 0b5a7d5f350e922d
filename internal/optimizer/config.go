package optimizer

import "time"

// Config holds the configuration for the basket optimizer.
// It is loaded from environment variables or a config file.
type Config struct {
	// Result sizing
	DefaultTopN int `mapstructure:"default_top_n"`
	OnlineTopN  int `mapstructure:"online_top_n"`
	MaxTopN     int `mapstructure:"max_top_n"`

	// Geographic filtering
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`

	// Validation limits
	MaxBasketItems int `mapstructure:"max_basket_items"`

	// Price source call
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	FetchRetries        int           `mapstructure:"fetch_retries"`
	RetryInitialBackoff time.Duration `mapstructure:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `mapstructure:"retry_max_backoff"`

	// Circuit breaker
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`

	// Online/delivery storefronts searched by the online variant
	OnlineStoreIDs []int64 `mapstructure:"online_store_ids"`

	// Nearby deals
	NearbyLimit int `mapstructure:"nearby_limit"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		DefaultTopN:         5,
		OnlineTopN:          10,
		MaxTopN:             50,
		DefaultRadiusKm:     10,
		MaxBasketItems:      200,
		FetchTimeout:        10 * time.Second,
		FetchRetries:        0,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 30 * time.Second,
		NearbyLimit:         50,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.DefaultTopN < 1 {
		return ErrInvalidConfig{Field: "default_top_n", Reason: "must be at least 1"}
	}
	if c.OnlineTopN < 1 {
		return ErrInvalidConfig{Field: "online_top_n", Reason: "must be at least 1"}
	}
	if c.MaxTopN < c.DefaultTopN || c.MaxTopN < c.OnlineTopN {
		return ErrInvalidConfig{Field: "max_top_n", Reason: "must be >= default_top_n and online_top_n"}
	}
	if c.DefaultRadiusKm <= 0 {
		return ErrInvalidConfig{Field: "default_radius_km", Reason: "must be positive"}
	}
	if c.MaxBasketItems < 1 {
		return ErrInvalidConfig{Field: "max_basket_items", Reason: "must be at least 1"}
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidConfig{Field: "fetch_timeout", Reason: "must be positive"}
	}
	if c.FetchRetries < 0 {
		return ErrInvalidConfig{Field: "fetch_retries", Reason: "must be non-negative"}
	}
	if c.FetchRetries > 0 && (c.RetryInitialBackoff <= 0 || c.RetryMaxBackoff < c.RetryInitialBackoff) {
		return ErrInvalidConfig{Field: "retry_max_backoff", Reason: "must be >= retry_initial_backoff > 0"}
	}
	if c.BreakerMaxFailures < 1 {
		return ErrInvalidConfig{Field: "breaker_max_failures", Reason: "must be at least 1"}
	}
	if c.BreakerResetTimeout <= 0 {
		return ErrInvalidConfig{Field: "breaker_reset_timeout", Reason: "must be positive"}
	}
	for _, id := range c.OnlineStoreIDs {
		if id <= 0 {
			return ErrInvalidConfig{Field: "online_store_ids", Reason: "ids must be positive"}
		}
	}
	if c.NearbyLimit < 1 {
		return ErrInvalidConfig{Field: "nearby_limit", Reason: "must be at least 1"}
	}
	return nil
}

// ErrInvalidConfig is returned when the configuration is invalid.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return e.Field + ": " + e.Reason
}
