// Package main runs the storefront: the catalog and cart HTTP API, the gRPC health service and the
// connectivity monitor that replays offline changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/bazaar/internal/app"
	"github.com/abgdnv/bazaar/internal/config"
	"github.com/abgdnv/bazaar/migrations"
	"github.com/abgdnv/bazaar/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/bazaar/pkg/config"
	"github.com/abgdnv/bazaar/pkg/config/configloader"
	"github.com/abgdnv/bazaar/pkg/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, builds the dependencies and runs the servers until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if cfg.Telemetry.Traces.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer shutdownProvider(logger, "tracer", cfg.Shutdown.Timeout, tp.Shutdown)
	}
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		mp, handler, err := telemetry.NewMeterProvider(serviceName)
		if err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		defer shutdownProvider(logger, "meter", cfg.Shutdown.Timeout, mp.Shutdown)
		metricsHandler = handler
	}

	var dbPool *pgxpool.Pool
	if cfg.Backend.Driver == pkgconfig.BackendPostgres {
		if cfg.Database.Migrate {
			if err := migrations.Up(cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("Database migrations applied")
		}
		pool, err := bootstrap.NewDbPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to create database connection pool: %w", err)
		}
		defer pool.Close()
		dbPool = pool
		logger.Info("Successfully connected to the database!")
	}

	deps, err := app.SetupDependencies(ctx, cfg, dbPool, otel.GetMeterProvider(), logger)
	if err != nil {
		return fmt.Errorf("failed to set up dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("Failed to release dependencies", "error", err)
		}
	}()
	if err := deps.Catalog.Warm(ctx); err != nil {
		logger.Warn("Catalog not loaded at startup, serving on demand", "error", err)
	}

	httpServer := app.SetupHttpServer(deps, cfg, metricsHandler)
	grpcServer := app.SetupGrpcServer(deps, cfg.GRPC.ReflectionEnabled)
	probes := app.NewProbes(cfg.Probes, logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the backend and replay offline changes on reconnect
	g.Go(func() error {
		return deps.Monitor.Run(gCtx)
	})

	// Drop idle sessions from memory
	g.Go(func() error {
		return deps.Sessions.Run(gCtx, cfg.Sessions.SweepInterval)
	})

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start the gRPC server
	g.Go(func() error {
		grpcAddr := ":" + cfg.GRPC.Port
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})
	// gracefully shutdown gRPC server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gRPC server...")
		deps.Health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr: cfg.PProf.Addr,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	if err := probes.Ready(); err != nil {
		logger.Warn("Readiness probe unavailable", "error", err)
	}
	g.Go(func() error {
		return probes.Run(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// shutdownProvider flushes a telemetry provider within the shutdown timeout.
func shutdownProvider(logger *slog.Logger, name string, timeout time.Duration, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("Failed to shut down telemetry provider", "provider", name, "error", err)
	}
}
