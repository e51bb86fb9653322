// Package logger installs the process-wide slog handler.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// Init builds the handler for cfg and makes it the slog default.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "meet-service"
	}
	if cfg.InstanceID == "" {
		hn, _ := os.Hostname()
		cfg.InstanceID = hn + "-" + uuid.NewString()[:8]
	}
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = slog.NewTextHandler(cfg.output(), &slog.HandlerOptions{
			Level:     cfg.level(),
			AddSource: cfg.AddSource,
		})
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	})

	base := slog.New(h)
	slog.SetDefault(base)

	mu.Lock()
	def = base
	mu.Unlock()
	return base
}

func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}

// Ctx is L() with the trace ids of ctx attached, if any.
func Ctx(ctx context.Context) *slog.Logger {
	attrs := AttrsFromCtx(ctx)
	if len(attrs) == 0 {
		return L()
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return L().With(args...)
}
