package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cwrk-planet/meet-service/internal/tracing"
	grpcx "github.com/cwrk-planet/meet-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/meet-service/internal/transport/http"
	"github.com/cwrk-planet/meet-service/internal/transport/ws"

	"golang.org/x/sync/errgroup"
)

// cmdServe runs the HTTP/WS and gRPC servers until ctx is cancelled.
func cmdServe(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	cfg := a.cfg

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Logging.Service, cfg.Logging.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown", "err", err)
		}
	}()

	slog.Info("starting meet-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	a.reg.Subscribe(hub.Publish)
	wsServer := ws.NewServer(hub, a.reg)

	// --- HTTP ---
	handler := httpx.NewHandler(a.reg, cfg.Meet.HistoryLimit)
	router := httpx.NewRouter(handler, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(a.reg, cfg.Meet.HistoryLimit)

	// --- run both servers ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		return grpcSrv.Serve(lis)
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		grpcSrv.GracefulStop()
		if err := httpSrv.Shutdown(ctxShutdown); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		slog.Error("server error", "err", err)
	}
	slog.Info("stopped")
	return err
}
