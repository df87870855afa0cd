// Package server builds the HTTP and gRPC servers with the shared middleware stack.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPServer wraps handler in an otel server span named after operation and applies the
// configured limits.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler, operation string) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(handler, operation),
		ReadTimeout:       cfg.Timeout.Read,
		WriteTimeout:      cfg.Timeout.Write,
		IdleTimeout:       cfg.Timeout.Idle,
		ReadHeaderTimeout: cfg.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// NewChiRouter returns a router that assigns request ids, logs every request and turns panics into 500s.
func NewChiRouter(logger *slog.Logger) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.RealIP,
		web.RequestIDHeader,
		web.StructuredLogger(logger),
		web.Recoverer(logger),
	)
	return mux
}
