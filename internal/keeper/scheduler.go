// Package keeper contains the top-level polling loop that turns on-chain
// order state and oracle prices into execution dispatches.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
	"github.com/sentinelmarkets/sentinel-keeper/internal/executor"
	"github.com/sentinelmarkets/sentinel-keeper/internal/metrics"
	"github.com/sentinelmarkets/sentinel-keeper/internal/strategy"
)

// Config holds the scheduler's timing parameters.
type Config struct {
	Vault string
	// PollInterval is the sleep between successful cycles.
	PollInterval time.Duration
	// ErrorBackoff is the longer sleep after a cycle fails outright, so the
	// loop does not hammer an unreachable RPC endpoint.
	ErrorBackoff time.Duration
	// DrainTimeout bounds how long shutdown waits for in-flight coordinators.
	DrainTimeout time.Duration
}

// Scheduler runs the poll → evaluate → dispatch cycle. One cycle reads the
// chain height, lists the vault's open orders, fetches each referenced oracle
// price exactly once, asks the matching strategy for readiness, and hands
// ready orders to the dispatcher without blocking on their outcome.
type Scheduler struct {
	client  domain.ChainClient
	table   *strategy.Table
	disp    *executor.Dispatcher
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Scheduler.
func New(client domain.ChainClient, table *strategy.Table, disp *executor.Dispatcher, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * cfg.PollInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Minute
	}
	return &Scheduler{
		client:  client,
		table:   table,
		disp:    disp,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Run loops until ctx is cancelled. A failed cycle is logged and retried
// after the error backoff; it never crashes the process. On cancellation the
// scheduler stops starting cycles, waits for in-flight coordinators to reach
// a terminal state (bounded by DrainTimeout), and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.String("chain", s.client.ChainName()),
		slog.String("vault", s.cfg.Vault),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
	defer s.logger.Info("scheduler stopped")

	for {
		sleep := s.cfg.PollInterval
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.metrics.PollFailures.Inc()
			s.logger.Error("poll cycle failed",
				slog.String("error", err.Error()),
			)
			sleep = s.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
		case <-time.After(sleep):
			continue
		}
		break
	}

	if !s.disp.Drain(s.cfg.DrainTimeout) {
		s.logger.Warn("shutdown drain timed out with coordinators still active",
			slog.Int("in_flight", s.disp.InFlight()),
		)
	}
	return ctx.Err()
}

// cycle performs one poll pass. Individual order errors are contained: only
// chain-level failures (height, order listing) abort the cycle.
func (s *Scheduler) cycle(ctx context.Context) error {
	started := time.Now()

	height, err := s.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("keeper: block height: %w", err)
	}

	now, err := s.client.ChainTime(ctx)
	if err != nil {
		return fmt.Errorf("keeper: chain time: %w", err)
	}

	orders, err := s.client.GetActiveOrders(ctx, s.cfg.Vault)
	if err != nil {
		return fmt.Errorf("keeper: list orders: %w", err)
	}

	s.metrics.BlockHeight.Set(float64(height))
	s.metrics.OpenOrders.Set(float64(len(orders)))
	s.logger.Debug("block polled",
		slog.Uint64("height", height),
		slog.Int("orders", len(orders)),
	)

	prices := s.fetchPrices(ctx, orders)

	for _, order := range orders {
		s.evaluate(ctx, order, now, prices)
	}

	s.metrics.PollCycles.Inc()
	s.metrics.PollLatency.Observe(time.Since(started).Seconds())
	return nil
}

// fetchPrices reads each distinct oracle referenced by the orders exactly
// once. The cache lives for this cycle only; prices are never reused across
// cycles.
func (s *Scheduler) fetchPrices(ctx context.Context, orders []domain.Order) map[string]oracleQuote {
	prices := make(map[string]oracleQuote)
	for _, order := range orders {
		oracle := order.Trigger.Oracle
		if oracle == "" {
			continue
		}
		if _, ok := prices[oracle]; ok {
			continue
		}
		price, err := s.client.GetOraclePrice(ctx, oracle)
		prices[oracle] = oracleQuote{price: price, err: err}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("oracle price fetch failed",
				slog.String("oracle", oracle),
				slog.String("error", err.Error()),
			)
		}
	}
	return prices
}

type oracleQuote struct {
	price *big.Int
	err   error
}

// evaluate runs the deadline and price checks for one order and dispatches it
// when ready. Deadline is checked before price: an expired order is never
// executed even when its price condition holds.
func (s *Scheduler) evaluate(ctx context.Context, order domain.Order, now time.Time, prices map[string]oracleQuote) {
	log := s.logger.With(
		slog.Uint64("order_id", order.ID),
		slog.String("kind", order.Kind.String()),
	)

	if order.State != domain.StateOpen {
		// GetActiveOrders only returns open orders; anything else here is a
		// decode or filter bug upstream.
		s.metrics.OrdersSkipped.WithLabelValues("not_open").Inc()
		return
	}

	if order.Expired(now) {
		s.metrics.OrdersSkipped.WithLabelValues("expired").Inc()
		log.Debug("order past deadline, skipping",
			slog.Time("deadline", order.Trigger.Deadline),
		)
		return
	}

	var price *big.Int
	if oracle := order.Trigger.Oracle; oracle != "" {
		quote, ok := prices[oracle]
		if !ok || quote.err != nil {
			s.metrics.OrdersSkipped.WithLabelValues("price_unavailable").Inc()
			log.Warn("no live price for oracle, skipping this cycle",
				slog.String("oracle", oracle),
			)
			return
		}
		price = quote.price
	}

	strat, err := s.table.ForKind(order.Kind)
	if err != nil {
		s.metrics.OrdersSkipped.WithLabelValues("unknown_kind").Inc()
		log.Error("no strategy for order kind", slog.String("error", err.Error()))
		return
	}

	if !strat.ShouldExecute(order, price, now) {
		return
	}

	log.Info("order ready for execution",
		slog.String("strategy", strat.Name()),
		slog.String("price", bigString(price)),
		slog.String("target", bigString(order.Trigger.TargetPrice)),
	)
	s.disp.Dispatch(ctx, order, price)
}

func bigString(x *big.Int) string {
	if x == nil {
		return "-"
	}
	return x.String()
}
