// Package app contains the application setup for the storefront.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/abgdnv/bazaar/internal/cart"
	"github.com/abgdnv/bazaar/internal/config"
	"github.com/abgdnv/bazaar/internal/connectivity"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/abgdnv/bazaar/internal/notify"
	"github.com/abgdnv/bazaar/internal/service"
	"github.com/abgdnv/bazaar/internal/syncqueue"
	grpcImpl "github.com/abgdnv/bazaar/internal/transport/grpc"
	"github.com/abgdnv/bazaar/internal/transport/rest"
	"github.com/abgdnv/bazaar/pkg/auth"
	pkgconfig "github.com/abgdnv/bazaar/pkg/config"
	"github.com/abgdnv/bazaar/pkg/messaging"
	"github.com/abgdnv/bazaar/pkg/nats"
	"github.com/abgdnv/bazaar/pkg/server"
	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
)

const (
	serviceOperation  = "storefront"
	inboxCapacity     = 50
	queueInstrumentID = "github.com/abgdnv/bazaar/internal/syncqueue"
)

type Dependencies struct {
	Catalog    *service.Service
	Sessions   *cart.Manager
	Inbox      *notify.Inbox
	Identifier auth.Identifier
	Monitor    *connectivity.Monitor
	Health     *grpcImpl.Health
	Logger     *slog.Logger

	closers []func() error
}

// Close releases the connections opened by SetupDependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// SetupDependencies builds the storefront object graph. dbPool is only used by the postgres backend
// driver and may be nil otherwise.
func SetupDependencies(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, meters metric.MeterProvider,
	logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: logger}

	remote, err := newBackend(cfg, dbPool, logger)
	if err != nil {
		return nil, err
	}

	store, err := newLocalStore(ctx, cfg.LocalStore, deps)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	deps.Inbox = notify.NewInbox(inboxCapacity)
	notifier, err := newNotifier(ctx, cfg.Nats, deps.Inbox, deps, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	deps.Identifier, err = newIdentifier(ctx, cfg.IdP)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	deps.Catalog = service.NewService(remote, cfg.Catalog.RefreshTTL, cfg.Catalog.PageSize, logger)
	deps.Monitor = connectivity.NewMonitor(remote, cfg.Connectivity.Interval, cfg.Connectivity.Timeout, logger)
	deps.Sessions = cart.NewManager(cart.ManagerDeps{
		KV:           store,
		Backend:      remote,
		Connectivity: deps.Monitor,
		Resolver:     deps.Catalog,
		Notifier:     notifier,
		Logger:       logger,
		IdleTimeout:  cfg.Sessions.IdleTimeout,
		QueueOptions: []syncqueue.Option{
			syncqueue.WithRetryPolicy(retryPolicy(cfg.Resilience.Retry)),
			syncqueue.WithMeter(meters.Meter(queueInstrumentID)),
		},
	})

	deps.Health = grpcImpl.NewHealth()
	deps.Monitor.Subscribe(deps.Health.SetOnline)
	deps.Monitor.Subscribe(deps.onReconnect)

	return deps, nil
}

// onReconnect reloads the catalog and replays the pending changes of every session.
func (d *Dependencies) onReconnect(ctx context.Context, online bool) {
	if !online {
		return
	}
	d.Catalog.Invalidate()
	if err := d.Catalog.Warm(ctx); err != nil {
		d.Logger.WarnContext(ctx, "Failed to reload catalog after reconnect", "error", err)
	}
	if err := d.Sessions.DrainAll(ctx); err != nil {
		d.Logger.ErrorContext(ctx, "Failed to sync sessions after reconnect", "error", err)
	}
}

func newBackend(cfg *config.Config, dbPool *pgxpool.Pool, logger *slog.Logger) (backend.Backend, error) {
	ds, err := backend.MockDataset()
	if err != nil {
		return nil, err
	}
	mock := backend.NewMemoryBackend(ds)

	switch cfg.Backend.Driver {
	case pkgconfig.BackendMemory:
		logger.Info("Using in-memory backend with the bundled catalog")
		return mock, nil
	case pkgconfig.BackendPostgres:
		if dbPool == nil {
			return nil, fmt.Errorf("postgres backend requires a database pool")
		}
		primary := backend.WithFallback(backend.NewPgStore(dbPool), mock, logger)
		return backend.WithBreaker(primary, cfg.Resilience.CircuitBreaker, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

func newLocalStore(ctx context.Context, cfg pkgconfig.LocalStoreConfig, deps *Dependencies) (kv.Store, error) {
	switch cfg.Driver {
	case pkgconfig.LocalStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.Timeout,
			ReadTimeout: cfg.Redis.Timeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		return kv.NewRedis(client, cfg.KeyPrefix, cfg.TTL), nil
	case pkgconfig.LocalStoreSQLite:
		db, err := kv.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		return db, nil
	default:
		return kv.NewMemory(), nil
	}
}

// newNotifier fans notifications out to the session inbox and the log, and to NATS when enabled.
func newNotifier(ctx context.Context, cfg pkgconfig.NATSConfig, inbox *notify.Inbox, deps *Dependencies,
	logger *slog.Logger) (notify.Notifier, error) {
	notifiers := notify.Multi{inbox, notify.NewLogNotifier(logger)}
	if !cfg.Enabled {
		return notifiers, nil
	}

	nc, js, err := nats.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, nc.Drain)
	if err := nats.EnsureStream(ctx, js, cfg, messaging.SyncFailedSubject); err != nil {
		return nil, err
	}
	return append(notifiers, notify.NewEventNotifier(nats.NewPublisher(js))), nil
}

func newIdentifier(ctx context.Context, cfg pkgconfig.IdP) (auth.Identifier, error) {
	if !cfg.Enabled {
		return auth.HeaderIdentifier{Header: web.XUserId}, nil
	}
	verifier, err := auth.NewJWTVerifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}
	return auth.BearerIdentifier{Verifier: verifier, Claim: cfg.UserClaim}, nil
}

func retryPolicy(cfg pkgconfig.RetryConfig) syncqueue.RetryPolicy {
	return syncqueue.RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
	}
}

// SetupHttpHandler initializes the router and routes of the storefront.
// Used by tests to exercise the full middleware stack.
func SetupHttpHandler(deps *Dependencies) *chi.Mux {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Catalog, deps.Sessions, deps.Inbox, deps.Identifier, deps.Monitor, deps.Logger)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates the HTTP server. metrics, when not nil, is served on the configured path.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, metrics http.Handler) *http.Server {
	mux := SetupHttpHandler(deps)
	if metrics != nil {
		mux.Handle(cfg.Telemetry.Metrics.Path, metrics)
	}
	return server.NewHTTPServer(cfg.HTTPServer, mux, serviceOperation)
}

// SetupGrpcServer initializes the gRPC server carrying the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, deps.Health.Register)
}
