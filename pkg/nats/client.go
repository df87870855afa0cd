// Package nats connects the storefront to NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Connect dials NATS and opens JetStream on the connection. The client reconnects forever and
// logs every disconnect and reconnect.
func Connect(cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(cfg.Url,
		nats.Name("storefront"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates the configured stream capturing subjects, or updates it if it exists.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg config.NATSConfig, subjects ...string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
		MaxAge:   cfg.MaxAge,
		Replicas: cfg.Replicas,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}
	return nil
}
