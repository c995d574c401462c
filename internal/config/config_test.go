package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	content := `
esi:
  base_url: "http://127.0.0.1:9999/latest"
  max_pages: 3
  timeout: 10s
cache:
  dir: "/tmp/hubcompare-test"
  chunk_size: 2
refresh:
  client_interval: 30s
trading:
  accounting_level: 5
  broker_relations_level: 4
  standings:
    Jita:
      faction: 2.5
      corp: 1.0
  allowed_hubs: [Jita, Amarr]
logging:
  level: debug
  format: json
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999/latest", cfg.ESI.BaseURL)
	assert.Equal(t, 3, cfg.ESI.MaxPages)
	assert.Equal(t, 10*time.Second, cfg.ESI.Timeout)
	assert.Equal(t, 3, cfg.ESI.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Cache.ChunkSize)
	assert.Equal(t, 150, cfg.Cache.LadderDepth)
	assert.Equal(t, 30*time.Second, cfg.Refresh.ClientInterval)
	assert.Equal(t, 5, cfg.Trading.AccountingLevel)
	// viper lower-cases map keys
	assert.InDelta(t, 2.5, cfg.Trading.Standings["jita"].Faction, 1e-9)
	assert.Equal(t, []string{"Jita", "Amarr"}, cfg.Trading.AllowedHubs)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HUBCOMPARE_CACHE_DIR", "/var/tmp/hc")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/hc", cfg.Cache.Dir)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no base url", func(c *Config) { c.ESI.BaseURL = "" }},
		{"zero pages", func(c *Config) { c.ESI.MaxPages = 0 }},
		{"bad clock", func(c *Config) { c.Refresh.MaintenanceStart = "25:99" }},
		{"bad mode", func(c *Config) { c.Trading.BuyMode = "hold" }},
		{"bad skill", func(c *Config) { c.Trading.AccountingLevel = 6 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"short lease", func(c *Config) { c.Refresh.LeaseTTL = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("10:55")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour+55*time.Minute, d)

	_, err = ParseClock("noon")
	assert.Error(t, err)
}
