package config

import "time"

// HubStanding is the player's standing towards the faction and corporation
// owning a hub's station. Both feed the broker fee.
type HubStanding struct {
	Faction float64 `mapstructure:"faction" json:"faction"`
	Corp    float64 `mapstructure:"corp" json:"corp"`
}

// ESIConfig controls the upstream market API client.
type ESIConfig struct {
	BaseURL               string        `mapstructure:"base_url" json:"base_url"`
	UserAgent             string        `mapstructure:"user_agent" json:"user_agent"`
	Timeout               time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries            int           `mapstructure:"max_retries" json:"max_retries"`
	BackoffBase           time.Duration `mapstructure:"backoff_base" json:"backoff_base"`
	MaxRateLimitWait      time.Duration `mapstructure:"max_rate_limit_wait" json:"max_rate_limit_wait"`
	LowRemainingThreshold int           `mapstructure:"low_remaining_threshold" json:"low_remaining_threshold"`
	LowRemainingPause     time.Duration `mapstructure:"low_remaining_pause" json:"low_remaining_pause"`
	RequestsPerSecond     float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
	Concurrency           int           `mapstructure:"concurrency" json:"concurrency"`
	MaxPages              int           `mapstructure:"max_pages" json:"max_pages"`
	MaxPayloadBytes       int64         `mapstructure:"max_payload_bytes" json:"max_payload_bytes"`
}

// CacheConfig controls snapshot persistence.
type CacheConfig struct {
	Dir         string `mapstructure:"dir" json:"dir"`
	ChunkSize   int    `mapstructure:"chunk_size" json:"chunk_size"`
	LadderDepth int    `mapstructure:"ladder_depth" json:"ladder_depth"`
	Workers     int    `mapstructure:"workers" json:"workers"`
}

// RefreshConfig controls the refresh coordinator.
type RefreshConfig struct {
	LeaseTTL          time.Duration `mapstructure:"lease_ttl" json:"lease_ttl"`
	ClientInterval    time.Duration `mapstructure:"client_interval" json:"client_interval"`
	BackgroundTimeout time.Duration `mapstructure:"background_timeout" json:"background_timeout"`
	MaintenanceStart  string        `mapstructure:"maintenance_start" json:"maintenance_start"` // "HH:MM" UTC
	MaintenanceEnd    string        `mapstructure:"maintenance_end" json:"maintenance_end"`     // "HH:MM" UTC
	PollInterval      time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout" json:"poll_timeout"`
}

// TradingConfig holds the fee assumptions and simulator defaults.
type TradingConfig struct {
	AccountingLevel      int                    `mapstructure:"accounting_level" json:"accounting_level"`
	BrokerRelationsLevel int                    `mapstructure:"broker_relations_level" json:"broker_relations_level"`
	ConnectionsLevel     int                    `mapstructure:"connections_level" json:"connections_level"`
	DiplomacyLevel       int                    `mapstructure:"diplomacy_level" json:"diplomacy_level"`
	Standings            map[string]HubStanding `mapstructure:"standings" json:"standings"` // keyed by lower-case hub name
	MinMarginPercent     float64                `mapstructure:"min_margin_percent" json:"min_margin_percent"`
	QuantityLimit        int64                  `mapstructure:"quantity_limit" json:"quantity_limit"` // 0 = no limit
	AllowedHubs          []string               `mapstructure:"allowed_hubs" json:"allowed_hubs"`     // empty = all
	BuyMode              string                 `mapstructure:"buy_mode" json:"buy_mode"`             // buy | sell
	SellMode             string                 `mapstructure:"sell_mode" json:"sell_mode"`           // buy | sell
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr       string `mapstructure:"addr" json:"addr"`
	AdminToken string `mapstructure:"admin_token" json:"-"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	Output string `mapstructure:"output" json:"output"`
	MaxAge int    `mapstructure:"max_age" json:"max_age"` // days, file output only
}

// Config holds application settings.
type Config struct {
	ESI         ESIConfig     `mapstructure:"esi" json:"esi"`
	Cache       CacheConfig   `mapstructure:"cache" json:"cache"`
	Refresh     RefreshConfig `mapstructure:"refresh" json:"refresh"`
	Trading     TradingConfig `mapstructure:"trading" json:"trading"`
	Server      ServerConfig  `mapstructure:"server" json:"server"`
	Logging     LoggingConfig `mapstructure:"logging" json:"logging"`
	CatalogFile string        `mapstructure:"catalog_file" json:"catalog_file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ESI: ESIConfig{
			BaseURL:               "https://esi.evetech.net/latest",
			UserAgent:             "eve-hubcompare/1.0 (github.com)",
			Timeout:               30 * time.Second,
			MaxRetries:            3,
			BackoffBase:           500 * time.Millisecond,
			MaxRateLimitWait:      5 * time.Second,
			LowRemainingThreshold: 20,
			LowRemainingPause:     250 * time.Millisecond,
			RequestsPerSecond:     20,
			Concurrency:           8,
			MaxPages:              10,
			MaxPayloadBytes:       8 << 20,
		},
		Cache: CacheConfig{
			Dir:         "data/cache",
			ChunkSize:   3,
			LadderDepth: 150,
			Workers:     4,
		},
		Refresh: RefreshConfig{
			LeaseTTL:          5 * time.Minute,
			ClientInterval:    20 * time.Second,
			BackgroundTimeout: 4 * time.Minute,
			MaintenanceStart:  "10:55",
			MaintenanceEnd:    "11:30",
			PollInterval:      5 * time.Second,
			PollTimeout:       90 * time.Second,
		},
		Trading: TradingConfig{
			Standings:        map[string]HubStanding{},
			MinMarginPercent: 5,
			BuyMode:          "sell",
			SellMode:         "buy",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:13371",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
