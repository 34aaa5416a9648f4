package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
	"github.com/sentinelmarkets/sentinel-keeper/internal/metrics"
	"github.com/sentinelmarkets/sentinel-keeper/internal/notify"
)

// Dispatcher starts coordinators for ready orders without blocking the poll
// cycle. It enforces the per-order exclusivity invariant through the Arena,
// bounds the number of concurrent coordinators, and optionally takes a
// cross-replica lock before any work begins.
type Dispatcher struct {
	client   domain.ChainClient
	vault    string
	policy   Policy
	lockTTL  time.Duration
	arena    *Arena
	sem      *semaphore.Weighted
	locker   domain.OrderLocker    // optional
	store    domain.ExecutionStore // optional
	notifier *notify.Notifier      // optional
	metrics  *metrics.Metrics
	logger   *slog.Logger

	wg sync.WaitGroup
}

// DispatcherConfig carries construction parameters for a Dispatcher.
type DispatcherConfig struct {
	Vault       string
	Policy      Policy
	MaxInFlight int64
	// LockTTL bounds how long the cross-replica lock is held. Zero derives a
	// TTL from the policy's worst-case confirmation window.
	LockTTL time.Duration
}

// NewDispatcher creates a Dispatcher. locker, store, and notifier may be nil.
func NewDispatcher(
	client domain.ChainClient,
	cfg DispatcherConfig,
	locker domain.OrderLocker,
	store domain.ExecutionStore,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = cfg.Policy.ConfirmTimeout*time.Duration(cfg.Policy.MaxAttempts) + 30*time.Second
	}
	return &Dispatcher{
		client:   client,
		vault:    cfg.Vault,
		policy:   cfg.Policy,
		lockTTL:  lockTTL,
		arena:    NewArena(),
		sem:      semaphore.NewWeighted(maxInFlight),
		locker:   locker,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// InFlight returns the number of active coordinators.
func (d *Dispatcher) InFlight() int {
	return d.arena.InFlight()
}

// Dispatch hands a ready order to a new coordinator goroutine. It returns
// false when the order was dropped: already in flight, at the concurrency
// bound, or locked by another replica. Dropped signals are not queued; the
// order will be re-evaluated on a later poll cycle if still eligible.
func (d *Dispatcher) Dispatch(ctx context.Context, order domain.Order, price *big.Int) bool {
	if !d.arena.TryAcquire(order.ID) {
		d.metrics.OrdersSkipped.WithLabelValues("in_flight").Inc()
		return false
	}

	if !d.sem.TryAcquire(1) {
		d.arena.Release(order.ID)
		d.logger.Warn("in-flight limit reached, dropping ready order",
			slog.Uint64("order_id", order.ID),
		)
		d.metrics.OrdersSkipped.WithLabelValues("capacity").Inc()
		return false
	}

	var unlock func()
	if d.locker != nil {
		key := fmt.Sprintf("order:%s:%d", d.client.ChainID(), order.ID)
		u, err := d.locker.Acquire(ctx, key, d.lockTTL)
		if err != nil {
			d.sem.Release(1)
			d.arena.Release(order.ID)
			if errors.Is(err, domain.ErrLockHeld) {
				d.metrics.OrdersSkipped.WithLabelValues("lock_held").Inc()
			} else {
				d.logger.Warn("order lock failed, dropping",
					slog.Uint64("order_id", order.ID),
					slog.String("error", err.Error()),
				)
				d.metrics.OrdersSkipped.WithLabelValues("lock_error").Inc()
			}
			return false
		}
		unlock = u
	}

	d.metrics.Dispatches.Inc()
	d.metrics.InFlight.Set(float64(d.arena.InFlight()))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if unlock != nil {
				unlock()
			}
			d.sem.Release(1)
			d.arena.Release(order.ID)
			d.metrics.InFlight.Set(float64(d.arena.InFlight()))
		}()
		d.run(ctx, order, price)
	}()
	return true
}

// run executes one coordinator and records its outcome.
func (d *Dispatcher) run(ctx context.Context, order domain.Order, price *big.Int) {
	started := time.Now()
	coord := NewCoordinator(d.client, d.vault, order, price, d.policy, d.logger)

	rec, terminal, err := coord.Run(ctx)
	if !terminal {
		// Cancelled confirmation wait: on-chain outcome unknown, no terminal
		// record. The next poll cycle re-reads the chain and resolves it.
		d.logger.Warn("coordinator cancelled before terminal state",
			slog.Uint64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	d.metrics.ExecLatency.Observe(time.Since(started).Seconds())
	d.metrics.Executions.WithLabelValues(string(rec.Status)).Inc()
	if rec.Attempts > 1 {
		d.metrics.FeeEscalations.Add(float64(rec.Attempts - 1))
	}

	if d.store != nil {
		// Persist with a detached context so a shutdown right after the
		// terminal state does not lose the record.
		storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.store.Insert(storeCtx, rec); err != nil {
			d.logger.Error("execution record insert failed",
				slog.Uint64("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}

	if d.notifier != nil {
		d.notifyOutcome(ctx, rec)
	}
}

func (d *Dispatcher) notifyOutcome(ctx context.Context, rec domain.ExecutionRecord) {
	switch rec.Status {
	case domain.ExecConfirmed:
		_ = d.notifier.Notify(ctx, notify.EventOrderExecuted,
			"Order executed",
			fmt.Sprintf("order %d (%s) executed on %s, tx %s", rec.OrderID, rec.OrderKind, rec.Chain, rec.TxHash),
		)
	case domain.ExecFailed:
		_ = d.notifier.Notify(ctx, notify.EventExecutionFailed,
			"Execution failed",
			fmt.Sprintf("order %d (%s) failed on %s after %d attempt(s): %s", rec.OrderID, rec.OrderKind, rec.Chain, rec.Attempts, rec.Reason),
		)
	case domain.ExecTimedOut:
		_ = d.notifier.Notify(ctx, notify.EventExecutionTimeout,
			"Confirmation timed out",
			fmt.Sprintf("order %d tx %s unconfirmed on %s, re-evaluating next cycle", rec.OrderID, rec.TxHash, rec.Chain),
		)
	}
}

// Drain blocks until every active coordinator returns, or the timeout
// elapses. Used during graceful shutdown.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
