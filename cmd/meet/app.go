package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/meet-service/config"
	"github.com/cwrk-planet/meet-service/internal/logger"
	"github.com/cwrk-planet/meet-service/internal/postgres"
	"github.com/cwrk-planet/meet-service/internal/registry"
	"github.com/cwrk-planet/meet-service/internal/sqlite"
	"github.com/cwrk-planet/meet-service/internal/storage"
)

const usage = `usage: meet [--config path] <command> [args]

commands:
  create <name> <host> [--max N]
  rooms
  join <room_id> <user>
  leave <room_id> <user>
  leave-session <session_id>
  media <room_id> <user> [--camera on|off] [--mic on|off]
  end <room_id> [--recording URL]
  get <room_id>
  history <user> [--n N]
  stats <room_id>
  serve
`

// errUsage makes run exit with status 2 after printing usage.
var errUsage = errors.New("usage")

type app struct {
	cfg    *config.Config
	reg    *registry.Registry
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"create":        cmdCreate,
	"rooms":         cmdRooms,
	"join":          cmdJoin,
	"leave":         cmdLeave,
	"leave-session": cmdLeaveSession,
	"media":         cmdMedia,
	"end":           cmdEnd,
	"get":           cmdGet,
	"history":       cmdHistory,
	"stats":         cmdStats,
	"serve":         cmdServe,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("meet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := fs.String("config", "", "path to config.yaml (default: $CONFIG_PATH or ./config/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	logCfg := logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	}
	if name != "serve" {
		// keep stdout for command output
		logCfg.Output = stderr
		if !cfg.Logging.Debug {
			logCfg.Level = slog.LevelWarn
		}
	}
	logger.Init(logCfg)

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store", "err", err)
		}
	}()

	reg := registry.New(store,
		registry.WithBaseURL(cfg.Meet.BaseURL),
		registry.WithDefaultMaxSize(cfg.Meet.DefaultMaxSize),
	)
	if err := reg.Load(ctx); err != nil {
		fmt.Fprintf(stderr, "load registry: %v\n", err)
		return 1
	}

	a := &app{cfg: cfg, reg: reg, stdout: stdout, stderr: stderr}
	switch err := cmd(ctx, a, fs.Args()[1:]); {
	case err == nil:
		return 0
	case errors.Is(err, errSilent):
		return 1
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		st, err := postgres.Open(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	path := cfg.Storage.SQLitePath
	if strings.TrimSpace(path) == "" {
		p, err := sqlite.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	st, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// parseArgs lets flags appear before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errUsage
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
