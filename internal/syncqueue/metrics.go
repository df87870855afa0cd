package syncqueue

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	enqueued  metric.Int64Counter
	replayed  metric.Int64Counter
	discarded metric.Int64Counter
	compacted metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.enqueued, err = meter.Int64Counter("sync_ops_enqueued",
		metric.WithDescription("Operations added to a sync queue.")); err != nil {
		return nil, fmt.Errorf("failed to create sync_ops_enqueued counter: %w", err)
	}
	if m.replayed, err = meter.Int64Counter("sync_ops_replayed",
		metric.WithDescription("Operations replayed successfully.")); err != nil {
		return nil, fmt.Errorf("failed to create sync_ops_replayed counter: %w", err)
	}
	if m.discarded, err = meter.Int64Counter("sync_ops_discarded",
		metric.WithDescription("Operations dropped after rejection or exhausted retries.")); err != nil {
		return nil, fmt.Errorf("failed to create sync_ops_discarded counter: %w", err)
	}
	if m.compacted, err = meter.Int64Counter("sync_ops_compacted",
		metric.WithDescription("Enqueues merged into or cancelled by a pending operation.")); err != nil {
		return nil, fmt.Errorf("failed to create sync_ops_compacted counter: %w", err)
	}
	return &m, nil
}

func kindAttr(k Kind) attribute.KeyValue {
	return attribute.String("kind", string(k))
}
