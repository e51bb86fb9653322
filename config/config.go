package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPath = "./config/config.yaml"
)

type GRPC struct {
	Addr string `yaml:"addr" env:"MEET_GRPC_ADDR"`
}

type HTTP struct {
	Addr           string   `yaml:"addr" env:"MEET_HTTP_ADDR"`
	AllowedOrigins []string `yaml:"allowedOrigins" env:"MEET_HTTP_ALLOWED_ORIGINS" envSeparator:","`
}

type Server struct {
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Logging struct {
	Env       string `yaml:"env" env:"MEET_LOG_ENV"`         // dev|stage|prod
	Service   string `yaml:"service"`                        // meet-service
	Version   string `yaml:"version"`                        // v0.1.0
	Backend   string `yaml:"backend" env:"MEET_LOG_BACKEND"` // std|zap
	AddSource bool   `yaml:"addSource"`                      // false|true
	Debug     bool   `yaml:"debug" env:"MEET_LOG_DEBUG"`     // false|true
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"MEET_OTEL_ENDPOINT"` // empty: tracing off
}

type Storage struct {
	Driver     string `yaml:"driver" env:"MEET_STORAGE_DRIVER"`  // sqlite|postgres
	SQLitePath string `yaml:"sqlitePath" env:"MEET_SQLITE_PATH"` // empty: ~/.blackroad/meet.db
}

type Postgres struct {
	DSN               string        `yaml:"dsn" env:"MEET_POSTGRES_DSN"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type Meet struct {
	BaseURL        string `yaml:"baseURL" env:"MEET_BASE_URL"`
	DefaultMaxSize int    `yaml:"defaultMaxSize"`
	HistoryLimit   int    `yaml:"historyLimit"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Tracing  Tracing  `yaml:"tracing"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Meet     Meet     `yaml:"meet"`
}

// LoadConfig reads path, else CONFIG_PATH, else ./config/config.yaml, then
// applies MEET_* environment overrides. A missing default file is not an
// error: the CLI works with defaults alone.
func LoadConfig(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		if p := os.Getenv("CONFIG_PATH"); p != "" {
			path, explicit = p, true
		} else {
			path = defaultPath
		}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "meet-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverSQLite
	case DriverSQLite:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Meet.DefaultMaxSize < 0 {
		return errors.New("meet.defaultMaxSize must be >= 0")
	}
	if c.Meet.HistoryLimit < 0 {
		return errors.New("meet.historyLimit must be >= 0")
	}
	return nil
}
