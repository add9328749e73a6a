package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Ingest   IngestConfig   `yaml:"ingest"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
}

type AppConfig struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"SMS Banking Ledger"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type ServerConfig struct {
	Host           string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port           string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host        string `yaml:"host" env:"DB_HOST"`
	Port        string `yaml:"port" env:"DB_PORT"`
	User        string `yaml:"user" env:"DB_USER"`
	Password    string `yaml:"password" env:"DB_PASSWORD"`
	DBName      string `yaml:"dbname" env:"DB_NAME"`
	SSLMode     string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SQLitePath  string `yaml:"sqlite_path" env:"DB_SQLITE_PATH"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type IngestConfig struct {
	// EventIDLength is the number of hex characters kept from the SHA-256 digest.
	EventIDLength int `yaml:"event_id_length" env:"INGEST_EVENT_ID_LENGTH" env-default:"16"`
	// ExpectedVolume is the anticipated number of distinct events; 0 disables the collision check.
	ExpectedVolume uint64 `yaml:"expected_volume" env:"INGEST_EXPECTED_VOLUME" env-default:"0"`
}

type RabbitMQConfig struct {
	Enabled            bool   `yaml:"enabled" env:"RABBITMQ_ENABLED" env-default:"false"`
	URL                string `yaml:"url" env:"RABBITMQ_URL"`
	IngestQueue        string `yaml:"ingest_queue" env:"RABBITMQ_INGEST_QUEUE" env-default:"sms.ingest"`
	PrefetchCount      int    `yaml:"prefetch" env:"RABBITMQ_PREFETCH" env-default:"10"`
	NotifyExchange     string `yaml:"notify_exchange" env:"RABBITMQ_NOTIFY_EXCHANGE"`
	NotifyRoutingKey   string `yaml:"notify_routing_key" env:"RABBITMQ_NOTIFY_ROUTING_KEY" env-default:"sms.recorded"`
	NotifySecret       string `yaml:"notify_secret" env:"RABBITMQ_NOTIFY_SECRET"`
	ConnectionName     string `yaml:"connection_name" env:"RABBITMQ_CONNECTION_NAME" env-default:"sms-ledger"`
	MaxInitialAttempts int    `yaml:"max_initial_attempts" env:"RABBITMQ_MAX_INITIAL_ATTEMPTS" env-default:"10"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	SeenTTL  time.Duration `yaml:"seen_ttl" env:"REDIS_SEEN_TTL" env-default:"24h"`
}

// Load reads the YAML file at path when it exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every missing key at once rather than failing on the first.
func (c *Config) Validate() error {
	var missing []string

	require := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		require("DB_HOST", c.Database.Host)
		require("DB_PORT", c.Database.Port)
		require("DB_USER", c.Database.User)
		require("DB_NAME", c.Database.DBName)
	case DriverSQLite:
		require("DB_SQLITE_PATH", c.Database.SQLitePath)
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}

	if c.RabbitMQ.Enabled {
		require("RABBITMQ_URL", c.RabbitMQ.URL)
		require("RABBITMQ_INGEST_QUEUE", c.RabbitMQ.IngestQueue)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}

	if c.Ingest.EventIDLength < 1 || c.Ingest.EventIDLength > 64 {
		return fmt.Errorf("INGEST_EVENT_ID_LENGTH must be between 1 and 64, got %d", c.Ingest.EventIDLength)
	}

	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the database URL understood by golang-migrate for the configured driver.
func (c *DatabaseConfig) MigrationURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Enabled reports whether the seen-identity cache should be used.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}
