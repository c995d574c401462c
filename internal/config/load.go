package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. HUBCOMPARE_CACHE_DIR.
const EnvPrefix = "HUBCOMPARE"

// Load reads configuration from an optional YAML file plus environment
// variables, on top of Default(). An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Trading.Standings == nil {
		cfg.Trading.Standings = map[string]HubStanding{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults mirrors Default() so env-only overrides are picked up by viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("esi.base_url", d.ESI.BaseURL)
	v.SetDefault("esi.user_agent", d.ESI.UserAgent)
	v.SetDefault("esi.timeout", d.ESI.Timeout)
	v.SetDefault("esi.max_retries", d.ESI.MaxRetries)
	v.SetDefault("esi.backoff_base", d.ESI.BackoffBase)
	v.SetDefault("esi.max_rate_limit_wait", d.ESI.MaxRateLimitWait)
	v.SetDefault("esi.low_remaining_threshold", d.ESI.LowRemainingThreshold)
	v.SetDefault("esi.low_remaining_pause", d.ESI.LowRemainingPause)
	v.SetDefault("esi.requests_per_second", d.ESI.RequestsPerSecond)
	v.SetDefault("esi.concurrency", d.ESI.Concurrency)
	v.SetDefault("esi.max_pages", d.ESI.MaxPages)
	v.SetDefault("esi.max_payload_bytes", d.ESI.MaxPayloadBytes)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.chunk_size", d.Cache.ChunkSize)
	v.SetDefault("cache.ladder_depth", d.Cache.LadderDepth)
	v.SetDefault("cache.workers", d.Cache.Workers)

	v.SetDefault("refresh.lease_ttl", d.Refresh.LeaseTTL)
	v.SetDefault("refresh.client_interval", d.Refresh.ClientInterval)
	v.SetDefault("refresh.background_timeout", d.Refresh.BackgroundTimeout)
	v.SetDefault("refresh.maintenance_start", d.Refresh.MaintenanceStart)
	v.SetDefault("refresh.maintenance_end", d.Refresh.MaintenanceEnd)
	v.SetDefault("refresh.poll_interval", d.Refresh.PollInterval)
	v.SetDefault("refresh.poll_timeout", d.Refresh.PollTimeout)

	v.SetDefault("trading.min_margin_percent", d.Trading.MinMarginPercent)
	v.SetDefault("trading.quantity_limit", d.Trading.QuantityLimit)
	v.SetDefault("trading.buy_mode", d.Trading.BuyMode)
	v.SetDefault("trading.sell_mode", d.Trading.SellMode)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)

	v.SetDefault("catalog_file", "")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.ESI.BaseURL == "" {
		return fmt.Errorf("esi.base_url is required")
	}
	if c.ESI.MaxRetries < 1 {
		return fmt.Errorf("esi.max_retries must be at least 1")
	}
	if c.ESI.MaxPages < 1 {
		return fmt.Errorf("esi.max_pages must be at least 1")
	}
	if c.ESI.MaxPayloadBytes < 1024 {
		return fmt.Errorf("esi.max_payload_bytes must be at least 1024")
	}
	if c.ESI.Timeout <= 0 {
		return fmt.Errorf("esi.timeout must be positive")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.ChunkSize < 1 {
		return fmt.Errorf("cache.chunk_size must be at least 1")
	}
	if c.Cache.LadderDepth < 1 {
		return fmt.Errorf("cache.ladder_depth must be at least 1")
	}
	if c.Refresh.LeaseTTL < 10*time.Second {
		return fmt.Errorf("refresh.lease_ttl must be at least 10s")
	}
	if _, err := ParseClock(c.Refresh.MaintenanceStart); err != nil {
		return fmt.Errorf("refresh.maintenance_start: %w", err)
	}
	if _, err := ParseClock(c.Refresh.MaintenanceEnd); err != nil {
		return fmt.Errorf("refresh.maintenance_end: %w", err)
	}
	validModes := map[string]bool{"buy": true, "sell": true}
	if !validModes[c.Trading.BuyMode] || !validModes[c.Trading.SellMode] {
		return fmt.Errorf("trading.buy_mode and trading.sell_mode must be one of: buy, sell")
	}
	if c.Trading.QuantityLimit < 0 {
		return fmt.Errorf("trading.quantity_limit must not be negative")
	}
	for _, lvl := range []int{c.Trading.AccountingLevel, c.Trading.BrokerRelationsLevel, c.Trading.ConnectionsLevel, c.Trading.DiplomacyLevel} {
		if lvl < 0 || lvl > 5 {
			return fmt.Errorf("trading skill levels must be between 0 and 5")
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}

// ParseClock parses an "HH:MM" time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
