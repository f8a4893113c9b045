// Package config loads process configuration from defaults, an optional
// config file, a .env file and the environment, in rising precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Store    StoreConfig    `mapstructure:"store"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	QueueKey       string        `mapstructure:"queue_key"`
	ProcessingKey  string        `mapstructure:"processing_key"`
	LocationPrefix string        `mapstructure:"location_prefix"`
	LocationTTL    time.Duration `mapstructure:"location_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DispatchConfig struct {
	Timezone           string        `mapstructure:"timezone"`
	DepotLat           float64       `mapstructure:"depot_lat"`
	DepotLng           float64       `mapstructure:"depot_lng"`
	LocationStaleAfter time.Duration `mapstructure:"location_stale_after"`
	LargeRouteWarn     int           `mapstructure:"large_route_warn"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `mapstructure:"-"`
}

type NotifyConfig struct {
	Sink        string        `mapstructure:"sink"`
	SNSTopicARN string        `mapstructure:"sns_topic_arn"`
	AWSRegion   string        `mapstructure:"aws_region"`
	Workers     int           `mapstructure:"workers"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// WorkerAddr serves /metrics from cmd/worker, which has no API router.
	WorkerAddr string `mapstructure:"worker_addr"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	SinkLog = "log"
	SinkSNS = "sns"
)

// SetDefaults registers every key so that environment overrides reach
// Unmarshal even when no config file is present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("postgres.dsn", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "dispatch:events")
	v.SetDefault("redis.processing_key", "dispatch:events:processing")
	v.SetDefault("redis.location_prefix", "dispatch:tech:loc:")
	v.SetDefault("redis.location_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("dispatch.timezone", "UTC")
	v.SetDefault("dispatch.depot_lat", 0.0)
	v.SetDefault("dispatch.depot_lng", 0.0)
	v.SetDefault("dispatch.location_stale_after", 30*time.Minute)
	v.SetDefault("dispatch.large_route_warn", 100)

	v.SetDefault("notify.sink", SinkLog)
	v.SetDefault("notify.sns_topic_arn", "")
	v.SetDefault("notify.aws_region", "us-east-1")
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.timeout", 2*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.worker_addr", ":9091")
}

// Load builds a Config. path names an optional YAML/TOML/JSON file; an
// empty path skips it. A .env file in the working directory is applied
// first but never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	return LoadWithViper(newViper(), path)
}

// LoadWorker is Load for processes that never open the store, such as the
// notification worker: the store rules are skipped.
func LoadWorker(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	return load(newViper(), path, (*Config).ValidateWorker)
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	// http.addr -> HTTP_ADDR and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names kept from the worker's original environment
	_ = v.BindEnv("notify.workers", "NOTIFY_WORKERS", "WORKERS")
	_ = v.BindEnv("notify.aws_region", "NOTIFY_AWS_REGION", "AWS_REGION")
	return v
}

func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	return load(v, path, (*Config).Validate)
}

func load(v *viper.Viper, path string, validate func(*Config) error) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Validate checks cross-field rules and resolves Dispatch.Location.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when store.driver is postgres")
		}
	case DriverMemory:
	default:
		return errors.Newf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	return c.ValidateWorker()
}

// ValidateWorker applies every rule except the store ones.
func (c *Config) ValidateWorker() error {
	loc, err := time.LoadLocation(c.Dispatch.Timezone)
	if err != nil {
		return errors.Wrapf(err, "dispatch.timezone %q", c.Dispatch.Timezone)
	}
	c.Dispatch.Location = loc

	if c.Dispatch.DepotLat < -90 || c.Dispatch.DepotLat > 90 || c.Dispatch.DepotLng < -180 || c.Dispatch.DepotLng > 180 {
		return errors.Newf("dispatch depot %v,%v is not a valid coordinate", c.Dispatch.DepotLat, c.Dispatch.DepotLng)
	}
	if c.Dispatch.LocationStaleAfter <= 0 {
		return errors.New("dispatch.location_stale_after must be positive")
	}

	switch c.Notify.Sink {
	case SinkLog:
	case SinkSNS:
		if c.Notify.SNSTopicARN == "" {
			return errors.New("notify.sns_topic_arn is required when notify.sink is sns")
		}
	default:
		return errors.Newf("notify.sink must be %q or %q, got %q", SinkLog, SinkSNS, c.Notify.Sink)
	}
	if c.Notify.Workers < 1 {
		c.Notify.Workers = 1
	}
	return nil
}
