package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/abgdnv/bazaar/internal/syncqueue"

// RetryPolicy bounds the retries of a transiently failing operation during one drain.
type RetryPolicy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy is three attempts, 100ms doubling up to 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
	}
}

// DrainResult counts the outcome of a drain.
type DrainResult struct {
	Replayed  int
	Discarded int
}

// Key returns the storage key of the queue of a session.
func Key(session string) string {
	return "sync:" + session
}

// Queue is the persisted, ordered list of pending operations of one session.
// Enqueue may run concurrently with a drain; drains themselves are serialised.
type Queue struct {
	mu       sync.Mutex
	drainMu  sync.Mutex
	store    kv.Store
	key      string
	ops      []Operation
	inflight uuid.UUID

	policy    RetryPolicy
	onFailure FailureHandler
	meter     metric.Meter
	metrics   *metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithFailureHandler registers the callback for discarded operations.
func WithFailureHandler(h FailureHandler) Option {
	return func(q *Queue) { q.onFailure = h }
}

// WithMeter records queue counters on meter instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(q *Queue) { q.meter = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Open loads the queue of session from store.
func Open(ctx context.Context, store kv.Store, session string, logger *slog.Logger, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:     store,
		key:       Key(session),
		policy:    DefaultRetryPolicy(),
		onFailure: func(context.Context, Failure) {},
		meter:     otel.Meter(instrumentationName),
		logger:    logger.With("component", "syncqueue", "session_id", session),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.policy.MaxAttempts == 0 {
		q.policy.MaxAttempts = 1
	}

	m, err := newMetrics(q.meter)
	if err != nil {
		return nil, err
	}
	q.metrics = m

	if err := kv.GetJSON(ctx, store, q.key, &q.ops); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("failed to load sync queue: %w", err)
	}
	return q, nil
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a snapshot of the pending operations in replay order.
func (q *Queue) Pending() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.ops)
}

// HasPending reports whether an operation on the same target as op is waiting.
func (q *Queue) HasPending(op Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.ContainsFunc(q.ops, op.sameTarget)
}

// Enqueue appends op, compacting it against the pending operation on the same target.
// A creating add followed by a remove cancels both; any other add followed by a remove
// becomes the remove. Repeated adds merge into one.
func (q *Queue) Enqueue(ctx context.Context, op Operation) error {
	if err := validate(op); err != nil {
		return err
	}
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	next, compacted := compact(q.ops, op, q.inflight)
	if err := q.persist(ctx, next); err != nil {
		return err
	}
	q.ops = next

	attrs := metric.WithAttributes(kindAttr(op.Kind))
	q.metrics.enqueued.Add(ctx, 1, attrs)
	if compacted {
		q.metrics.compacted.Add(ctx, 1, attrs)
	}
	q.logger.DebugContext(ctx, "operation enqueued", "op", op.String(), "compacted", compacted, "pending", len(next))
	return nil
}

// DrainOnReconnect replays the pending operations one at a time in enqueue order.
// Successful operations are removed. Transient failures are retried per the RetryPolicy and
// discarded once it is exhausted; rejected operations are discarded right away. Every
// discarded operation is reported to the FailureHandler.
// A cancelled ctx stops the drain and keeps the remaining operations.
func (q *Queue) DrainOnReconnect(ctx context.Context, r Replayer) (DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var res DrainResult
	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			break
		}
		op := q.ops[0]
		q.inflight = op.ID
		q.mu.Unlock()

		attempts, err := q.replay(ctx, r, op)
		op.Attempts += attempts

		if err != nil && ctx.Err() != nil {
			q.mu.Lock()
			q.inflight = uuid.Nil
			if i := q.indexOf(op.ID); i >= 0 {
				q.ops[i].Attempts = op.Attempts
			}
			q.persistOrLog(context.WithoutCancel(ctx))
			q.mu.Unlock()
			return res, ctx.Err()
		}

		q.mu.Lock()
		q.inflight = uuid.Nil
		if i := q.indexOf(op.ID); i >= 0 {
			q.ops = slices.Delete(q.ops, i, i+1)
		}
		q.persistOrLog(context.WithoutCancel(ctx))
		q.mu.Unlock()

		attrs := metric.WithAttributes(kindAttr(op.Kind))
		if err == nil {
			res.Replayed++
			q.metrics.replayed.Add(ctx, 1, attrs)
			q.logger.DebugContext(ctx, "operation replayed", "op", op.String(), "attempts", op.Attempts)
			continue
		}

		res.Discarded++
		q.metrics.discarded.Add(ctx, 1, attrs)
		reason := "rejected by backend"
		if backend.IsTransient(err) {
			reason = fmt.Sprintf("gave up after %d attempts", attempts)
		}
		q.logger.WarnContext(ctx, "operation discarded", "op", op.String(), "reason", reason,
			"kind", backend.KindOf(err).String(), "error", err)
		q.onFailure(ctx, Failure{Op: op, Reason: reason, Err: err})
	}
	return res, nil
}

// replay runs op until it succeeds, is rejected or the retry budget is spent.
func (q *Queue) replay(ctx context.Context, r Replayer, op Operation) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.policy.InitialBackoff
	b.MaxInterval = q.policy.MaxBackoff
	b.Multiplier = q.policy.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(q.policy.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := r.Replay(ctx, op)
		if err != nil && !backend.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		q.logger.DebugContext(ctx, "replay failed, retrying", "op", op.String(), "attempt", attempts,
			"backoff", next, "error", err)
	})
	return attempts, err
}

func (q *Queue) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(q.ops, func(o Operation) bool { return o.ID == id })
}

func (q *Queue) persist(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		if err := q.store.Delete(ctx, q.key); err != nil {
			return fmt.Errorf("failed to persist sync queue: %w", err)
		}
		return nil
	}
	if err := kv.SetJSON(ctx, q.store, q.key, ops); err != nil {
		return fmt.Errorf("failed to persist sync queue: %w", err)
	}
	return nil
}

// persistOrLog writes the current queue. Callers hold q.mu.
func (q *Queue) persistOrLog(ctx context.Context) {
	if err := q.persist(ctx, q.ops); err != nil {
		q.logger.ErrorContext(ctx, "sync queue not persisted", "error", err)
	}
}

func validate(op Operation) error {
	switch op.Kind {
	case KindCart:
		switch op.Action {
		case ActionAdd, ActionSet:
			if op.Quantity < 1 || op.Quantity > MaxQuantity {
				return perrors.ErrInvalidQuantity
			}
		case ActionRemove:
		default:
			return fmt.Errorf("unknown cart action %q: %w", op.Action, perrors.ErrValidation)
		}
	case KindWishlist:
		if op.Action != ActionAdd && op.Action != ActionRemove {
			return fmt.Errorf("unknown wishlist action %q: %w", op.Action, perrors.ErrValidation)
		}
	default:
		return fmt.Errorf("unknown operation kind %q: %w", op.Kind, perrors.ErrValidation)
	}
	if op.Owner == "" {
		return fmt.Errorf("operation without owner: %w", perrors.ErrValidation)
	}
	return nil
}

// compact returns ops with op merged in and whether anything collapsed.
// The operation being replayed is never merged with.
func compact(ops []Operation, op Operation, inflight uuid.UUID) ([]Operation, bool) {
	out := slices.Clone(ops)
	if op.Action == ActionSet {
		out = slices.DeleteFunc(out, func(p Operation) bool {
			return p.ID != inflight && p.sameTarget(op)
		})
		return append(out, op), len(out) != len(ops)
	}

	i := -1
	for j := len(out) - 1; j >= 0; j-- {
		if out[j].sameTarget(op) {
			i = j
			break
		}
	}
	if i < 0 || out[i].ID == inflight {
		return append(out, op), false
	}

	last := out[i]
	summed := last.Quantity + op.Quantity
	if op.Kind == KindCart && op.Action == ActionAdd && summed > MaxQuantity {
		return append(out, op), false
	}
	switch {
	case last.Action == ActionAdd && op.Action == ActionAdd:
		if op.Kind == KindCart {
			out[i].Quantity = summed
		}
	case last.Action == ActionAdd && op.Action == ActionRemove:
		if last.Creates {
			out = slices.Delete(out, i, i+1)
			break
		}
		// the record predates the add, so the remove still has to reach the backend
		out[i] = op
	case last.Action == ActionRemove && op.Action == ActionRemove:
	case last.Action == ActionRemove && op.Action == ActionAdd:
		// remove then add leaves exactly the added quantity behind
		if op.Kind == KindCart {
			op.Action = ActionSet
		}
		op.Creates = false
		out[i] = op
	case last.Action == ActionSet && op.Action == ActionAdd:
		out[i].Quantity = summed
	case last.Action == ActionSet && op.Action == ActionRemove:
		out[i] = op
	default:
		return append(out, op), false
	}
	return out, true
}
