package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
// Big integers are stored as NUMERIC(78,0) and travel as decimal strings so
// amounts never pass through a float.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given
// connection pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, order_id, order_kind, chain, keeper, tx_hash,
	status, attempts, resource_used, amount_out::text, price_at_exec::text,
	reason, submitted_at, completed_at`

// Insert persists one terminal execution record.
func (s *ExecutionStore) Insert(ctx context.Context, rec domain.ExecutionRecord) error {
	const query = `
		INSERT INTO executions (
			id, order_id, order_kind, chain, keeper, tx_hash,
			status, attempts, resource_used, amount_out, price_at_exec,
			reason, submitted_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10::numeric, $11::numeric,
			$12, $13, $14
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, int64(rec.OrderID), rec.OrderKind.String(), rec.Chain,
		rec.Keeper, string(rec.TxHash), string(rec.Status), rec.Attempts,
		int64(rec.ResourceUsed), bigToText(rec.AmountOut), bigToText(rec.PriceAtExec),
		rec.Reason, rec.SubmittedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// RecentByOrder returns up to limit records for an order, newest first.
func (s *ExecutionStore) RecentByOrder(ctx context.Context, orderID uint64, limit int) ([]domain.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + executionSelectCols + `
		FROM executions
		WHERE order_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, int64(orderID), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions for order %d: %w", orderID, err)
	}
	defer rows.Close()

	return scanExecutionRows(rows)
}

func scanExecutionRows(rows pgx.Rows) ([]domain.ExecutionRecord, error) {
	var records []domain.ExecutionRecord
	for rows.Next() {
		var (
			rec          domain.ExecutionRecord
			orderID      int64
			kind         string
			txHash       string
			status       string
			resourceUsed int64
			amountOut    *string
			priceAtExec  *string
		)
		if err := rows.Scan(
			&rec.ID, &orderID, &kind, &rec.Chain, &rec.Keeper, &txHash,
			&status, &rec.Attempts, &resourceUsed, &amountOut, &priceAtExec,
			&rec.Reason, &rec.SubmittedAt, &rec.CompletedAt,
		); err != nil {
			return nil, err
		}

		rec.OrderID = uint64(orderID)
		rec.OrderKind = kindFromString(kind)
		rec.TxHash = domain.TxHandle(txHash)
		rec.Status = domain.ExecutionStatus(status)
		rec.ResourceUsed = uint64(resourceUsed)

		var err error
		if rec.AmountOut, err = textToBig(amountOut); err != nil {
			return nil, fmt.Errorf("postgres: execution %s amount_out: %w", rec.ID, err)
		}
		if rec.PriceAtExec, err = textToBig(priceAtExec); err != nil {
			return nil, fmt.Errorf("postgres: execution %s price_at_exec: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

func kindFromString(s string) domain.OrderKind {
	switch s {
	case "stop_loss":
		return domain.KindStopLoss
	case "take_profit":
		return domain.KindTakeProfit
	case "twap":
		return domain.KindTWAP
	default:
		return domain.OrderKind(255)
	}
}

func bigToText(x *big.Int) *string {
	if x == nil {
		return nil
	}
	s := x.String()
	return &s
}

func textToBig(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable numeric %q", *s)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
