package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadWithViper(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "dispatch:events", cfg.Redis.QueueKey)
	assert.Equal(t, 24*time.Hour, cfg.Redis.LocationTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Dispatch.LocationStaleAfter)
	assert.Equal(t, 100, cfg.Dispatch.LargeRouteWarn)
	assert.Equal(t, SinkLog, cfg.Notify.Sink)
	assert.Equal(t, 4, cfg.Notify.Workers)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.WorkerAddr)
	assert.Equal(t, time.UTC, cfg.Dispatch.Location)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost:5432/dispatch")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKERS", "8")
	t.Setenv("DISPATCH_TIMEZONE", "America/Chicago")
	t.Setenv("DISPATCH_DEPOT_LAT", "41.88")
	t.Setenv("DISPATCH_DEPOT_LNG", "-87.63")
	t.Setenv("DISPATCH_LOCATION_STALE_AFTER", "5m")

	cfg, err := LoadWithViper(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Notify.Workers)
	assert.Equal(t, "America/Chicago", cfg.Dispatch.Location.String())
	assert.Equal(t, 41.88, cfg.Dispatch.DepotLat)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.LocationStaleAfter)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: memory
notify:
  sink: sns
  sns_topic_arn: arn:aws:sns:us-east-1:123456789012:dispatch
redis:
  queue_key: test:events
`), 0o600))

	cfg, err := LoadWithViper(newViper(), path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, SinkSNS, cfg.Notify.Sink)
	assert.Equal(t, "test:events", cfg.Redis.QueueKey)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:    StoreConfig{Driver: DriverMemory},
			Dispatch: DispatchConfig{Timezone: "UTC", LocationStaleAfter: time.Minute},
			Notify:   NotifyConfig{Sink: SinkLog, Workers: 2},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"bad timezone", func(c *Config) { c.Dispatch.Timezone = "Mars/Olympus" }},
		{"depot latitude", func(c *Config) { c.Dispatch.DepotLat = 91 }},
		{"depot longitude", func(c *Config) { c.Dispatch.DepotLng = -181 }},
		{"stale window", func(c *Config) { c.Dispatch.LocationStaleAfter = 0 }},
		{"sns without topic", func(c *Config) { c.Notify.Sink = SinkSNS }},
		{"unknown sink", func(c *Config) { c.Notify.Sink = "pigeon" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ClampsWorkers(t *testing.T) {
	cfg := Config{
		Store:    StoreConfig{Driver: DriverMemory},
		Dispatch: DispatchConfig{Timezone: "UTC", LocationStaleAfter: time.Minute},
		Notify:   NotifyConfig{Sink: SinkLog},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Notify.Workers)
}

func TestValidateWorker_SkipsStoreRules(t *testing.T) {
	cfg := Config{
		Store:    StoreConfig{Driver: DriverPostgres},
		Dispatch: DispatchConfig{Timezone: "UTC", LocationStaleAfter: time.Minute},
		Notify:   NotifyConfig{Sink: SinkLog, Workers: 2},
	}
	assert.Error(t, cfg.Validate())
	require.NoError(t, cfg.ValidateWorker())
	assert.Equal(t, time.UTC, cfg.Dispatch.Location)

	cfg.Notify.Sink = SinkSNS
	assert.Error(t, cfg.ValidateWorker())
}

func TestLoadWorker_NeedsNoDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("NOTIFY_WORKERS", "3")

	_, err := LoadWithViper(newViper(), "")
	require.Error(t, err)

	cfg, err := load(newViper(), "", (*Config).ValidateWorker)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Notify.Workers)
}
