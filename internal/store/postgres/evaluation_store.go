package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hayatoko/frarb/internal/domain"
)

// EvaluationStore implements domain.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *pgxpool.Pool
}

// NewEvaluationStore creates a new EvaluationStore backed by the given connection pool.
func NewEvaluationStore(pool *pgxpool.Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

const evaluationSelectCols = `id, symbol, short_exchange, long_exchange,
	short_mark, long_mark, interval_hours,
	diff_4h, diff_per_interval, break_even_4h, break_even_per_interval,
	apr_gross_pct, apr_net_pct, apr_gross_raw_pct, apr_net_raw_pct,
	margin_bps, min_intervals,
	notional_total_usd, fee_slip_cost_usd, basis_cost_usd,
	decision, evaluated_at`

func scanEvaluationRows(rows pgx.Rows) ([]domain.EvalResult, error) {
	var evals []domain.EvalResult
	for rows.Next() {
		var ev domain.EvalResult
		var decision string
		var minIntervals *int64

		if err := rows.Scan(
			&ev.ID, &ev.Symbol, &ev.ShortExchange, &ev.LongExchange,
			&ev.ShortMark, &ev.LongMark, &ev.IntervalHours,
			&ev.Diff4h, &ev.DiffPerInterval, &ev.BreakEven4h, &ev.BreakEvenPerInterval,
			&ev.AprGrossPct, &ev.AprNetPct, &ev.AprGrossRawPct, &ev.AprNetRawPct,
			&ev.MarginBps, &minIntervals,
			&ev.NotionalTotalUSD, &ev.FeeSlipCostUSD, &ev.BasisCostUSD,
			&decision, &ev.EvaluatedAt,
		); err != nil {
			return nil, err
		}
		ev.MinIntervals = intervalsFromDB(minIntervals)
		ev.Decision = domain.Decision(decision)
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

// Insert stores one screening result.
func (s *EvaluationStore) Insert(ctx context.Context, ev domain.EvalResult) error {
	const query = `
		INSERT INTO evaluations (
			id, symbol, short_exchange, long_exchange,
			short_mark, long_mark, interval_hours,
			diff_4h, diff_per_interval, break_even_4h, break_even_per_interval,
			apr_gross_pct, apr_net_pct, apr_gross_raw_pct, apr_net_raw_pct,
			margin_bps, min_intervals,
			notional_total_usd, fee_slip_cost_usd, basis_cost_usd,
			decision, evaluated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17,
			$18, $19, $20,
			$21, $22
		)`

	_, err := s.pool.Exec(ctx, query,
		ev.ID, ev.Symbol, ev.ShortExchange, ev.LongExchange,
		ev.ShortMark, ev.LongMark, ev.IntervalHours,
		ev.Diff4h, ev.DiffPerInterval, ev.BreakEven4h, ev.BreakEvenPerInterval,
		ev.AprGrossPct, ev.AprNetPct, ev.AprGrossRawPct, ev.AprNetRawPct,
		ev.MarginBps, intervalsToDB(ev.MinIntervals),
		ev.NotionalTotalUSD, ev.FeeSlipCostUSD, ev.BasisCostUSD,
		string(ev.Decision), ev.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert evaluation %s: %w", ev.ID, err)
	}
	return nil
}

func scanEvaluationRow(row pgx.Row) (domain.EvalResult, error) {
	var ev domain.EvalResult
	var decision string
	var minIntervals *int64

	if err := row.Scan(
		&ev.ID, &ev.Symbol, &ev.ShortExchange, &ev.LongExchange,
		&ev.ShortMark, &ev.LongMark, &ev.IntervalHours,
		&ev.Diff4h, &ev.DiffPerInterval, &ev.BreakEven4h, &ev.BreakEvenPerInterval,
		&ev.AprGrossPct, &ev.AprNetPct, &ev.AprGrossRawPct, &ev.AprNetRawPct,
		&ev.MarginBps, &minIntervals,
		&ev.NotionalTotalUSD, &ev.FeeSlipCostUSD, &ev.BasisCostUSD,
		&decision, &ev.EvaluatedAt,
	); err != nil {
		return domain.EvalResult{}, err
	}
	ev.MinIntervals = intervalsFromDB(minIntervals)
	ev.Decision = domain.Decision(decision)
	return ev, nil
}

// GetByID returns one evaluation by its identifier.
func (s *EvaluationStore) GetByID(ctx context.Context, id string) (domain.EvalResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+evaluationSelectCols+` FROM evaluations WHERE id = $1`, id)

	ev, err := scanEvaluationRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EvalResult{}, domain.ErrNotFound
		}
		return domain.EvalResult{}, fmt.Errorf("postgres: get evaluation %s: %w", id, err)
	}
	return ev, nil
}

// ListRecent returns the most recent evaluations, newest first.
func (s *EvaluationStore) ListRecent(ctx context.Context, limit int) ([]domain.EvalResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+evaluationSelectCols+` FROM evaluations
		 ORDER BY evaluated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent evaluations: %w", err)
	}
	defer rows.Close()

	evals, err := scanEvaluationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent evaluations: %w", err)
	}
	return evals, nil
}

// ListBefore returns all evaluations older than the given cutoff, oldest
// first, for archival.
func (s *EvaluationStore) ListBefore(ctx context.Context, before time.Time) ([]domain.EvalResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+evaluationSelectCols+` FROM evaluations
		 WHERE evaluated_at < $1
		 ORDER BY evaluated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list evaluations before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	evals, err := scanEvaluationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan evaluations before cutoff: %w", err)
	}
	return evals, nil
}

// DeleteBefore removes evaluations older than the given cutoff and returns
// the number of rows deleted.
func (s *EvaluationStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM evaluations WHERE evaluated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete evaluations before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
