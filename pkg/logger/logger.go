// Package logger enriches slog records with request-scoped values.
package logger

import (
	"context"
	"log/slog"

	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// extractor reads one attribute out of a context.
type extractor func(ctx context.Context) (slog.Attr, bool)

var extractors = []extractor{
	func(ctx context.Context) (slog.Attr, bool) {
		sc := trace.SpanContextFromContext(ctx)
		return slog.String("trace_id", sc.TraceID().String()), sc.IsValid()
	},
	func(ctx context.Context) (slog.Attr, bool) {
		id := middleware.GetReqID(ctx)
		return slog.String("request_id", id), id != ""
	},
	func(ctx context.Context) (slog.Attr, bool) {
		id, ok := web.GetSessionID(ctx)
		return slog.String("session_id", id), ok
	},
}

// ContextHandler adds the trace, request and session ids of the record's context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: handler}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, extract := range extractors {
		if attr, ok := extract(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(group string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(group)}
}
