package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/broker"
	"github.com/roach88/idocore/internal/tier"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idocore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "idocore.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 20.0, cfg.HTTP.RateLimit.RPS)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.Broker.Enabled)
	assert.Equal(t, broker.DefaultResolutionQueue, cfg.Broker.ResolutionQueue)
	assert.Equal(t, 3*time.Second, cfg.Broker.RetryDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, uint8(tier.DefaultTokenDecimals), cfg.Tiers.Decimals)
	assert.Equal(t, tier.DefaultConfig(tier.DefaultTokenDecimals), cfg.Tiers.Table())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://idocore@localhost/idocore
http:
  addr: 127.0.0.1:9000
  rate_limit:
    rps: 0
broker:
  enabled: true
  retry_delay: 250ms
log:
  level: debug
  format: json
tiers:
  levels:
    - tier: 0
      min_point: "0"
    - tier: 1
      min_point: "50"
      tickets:
        - {days: 0, count: 2}
        - {days: 30, count: 4}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Zero(t, cfg.HTTP.RateLimit.RPS)
	assert.Equal(t, 40, cfg.HTTP.RateLimit.Burst)
	assert.True(t, cfg.Broker.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.RetryDelay)
	assert.Equal(t, "json", cfg.Log.Format)

	table := cfg.Tiers.Table()
	require.Len(t, table.Levels, 2)
	assert.Equal(t, tier.Tier1, table.Levels[1].Tier)
	assert.Equal(t, []tier.Step{{Days: 0, Count: 2}, {Days: 30, Count: 4}}, table.Levels[1].Tickets)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IDOCORE_HTTP_ADDR", ":7000")
	t.Setenv("IDOCORE_DATABASE_DRIVER", "memory")
	t.Setenv("IDOCORE_SCHEDULER_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown driver", "database: {driver: mysql}", "unknown database.driver"},
		{"postgres without dsn", "database: {driver: postgres}", "database.dsn"},
		{"unknown format", "log: {format: xml}", "unknown log.format"},
		{"broker without url", "broker: {enabled: true, url: \"\"}", "broker.url"},
		{"duplicate tier", "tiers: {levels: [{tier: 1, min_point: \"1\"}, {tier: 1, min_point: \"2\"}]}", "duplicate Tier1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
