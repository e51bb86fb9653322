package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	req.NoError(err)
	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(":9090", cfg.GRPC.Addr)
	req.Equal(DriverSQLite, cfg.Storage.Driver)
	req.Equal("meet-service", cfg.Logging.Service)
	req.Equal("std", cfg.Logging.Backend)
	req.Equal(10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadConfig_File(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
http:
  addr: ":1234"
storage:
  driver: Postgres
postgres:
  dsn: "postgres://u:p@localhost/meet"
  maxConns: 4
  maxConnLifetime: 30m
meet:
  baseURL: "https://example.test"
  defaultMaxSize: 8
`)

	cfg, err := LoadConfig(path)
	req.NoError(err)
	req.Equal(":1234", cfg.HTTP.Addr)
	req.Equal(DriverPostgres, cfg.Storage.Driver)
	req.Equal(int32(4), cfg.Postgres.MaxConns)
	req.Equal(30*time.Minute, cfg.Postgres.MaxConnLifetime)
	req.Equal("https://example.test", cfg.Meet.BaseURL)
	req.Equal(8, cfg.Meet.DefaultMaxSize)
}

func TestLoadConfig_FromEnvPath(t *testing.T) {
	path := writeConfig(t, "grpc:\n  addr: \":7777\"\n")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.GRPC.Addr)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
http:
  addr: ":1234"
storage:
  sqlitePath: "/tmp/from-file.db"
`)
	t.Setenv("MEET_HTTP_ADDR", ":4321")
	t.Setenv("MEET_HTTP_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("MEET_BASE_URL", "https://env.test")
	t.Setenv("MEET_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := LoadConfig(path)
	req.NoError(err)
	req.Equal(":4321", cfg.HTTP.Addr)
	req.Equal([]string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	req.Equal("https://env.test", cfg.Meet.BaseURL)
	req.Equal("http://collector:4318", cfg.Tracing.Endpoint)
	// unset variables keep the file value
	req.Equal("/tmp/from-file.db", cfg.Storage.SQLitePath)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "storage:\n  driver: postgres\n",
		"unknown driver":       "storage:\n  driver: mysql\n",
		"negative max":         "meet:\n  defaultMaxSize: -1\n",
		"bad yaml":             "http: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
