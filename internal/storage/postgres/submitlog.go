package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/marketplace-postsubmit/internal/domain/submit"
)

const (
	insertResultSQL = `INSERT INTO submit_results (order_id, status, results, unhandled_error)
		VALUES ($1, $2, $3, $4)`

	listResultsSQL = `SELECT status, results, unhandled_error, created_at
		FROM submit_results
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

var _ submit.ResultLog = (*ResultLog)(nil)

// ResultLog implements submit.ResultLog backed by PostgreSQL. Each recorded
// run becomes one row; the stage results land in a JSONB column.
type ResultLog struct {
	pool *pgxpool.Pool
}

// NewResultLog returns a ResultLog that uses the given pool.
func NewResultLog(pool *pgxpool.Pool) *ResultLog {
	return &ResultLog{pool: pool}
}

// Record persists one orchestration outcome.
func (l *ResultLog) Record(ctx context.Context, orderID string, resp *submit.OrderSubmitResponse) error {
	resultsJSON, err := json.Marshal(resp.Results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	_, err = l.pool.Exec(ctx, insertResultSQL,
		orderID, resp.Status, resultsJSON, resp.UnhandledError,
	)
	if err != nil {
		return fmt.Errorf("recording result for order %q: %w", orderID, err)
	}

	return nil
}

// RecordedRun is one persisted orchestration outcome.
type RecordedRun struct {
	Status         int
	Results        []submit.ProcessResult
	UnhandledError string
	CreatedAt      time.Time
}

// ListByOrder returns the most recent runs for an order, newest first.
func (l *ResultLog) ListByOrder(ctx context.Context, orderID string, limit int) ([]RecordedRun, error) {
	rows, err := l.pool.Query(ctx, listResultsSQL, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing results for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var runs []RecordedRun
	for rows.Next() {
		var (
			run         RecordedRun
			resultsJSON []byte
		)
		if err := rows.Scan(&run.Status, &resultsJSON, &run.UnhandledError, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
			return nil, fmt.Errorf("unmarshaling results: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}

	return runs, nil
}
