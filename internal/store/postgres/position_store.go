package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hayatoko/frarb/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. The two
// legs are flattened into prefixed columns; an Intervals value maps to a
// nullable BIGINT where NULL means unreachable.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, symbol,
	short_exchange, short_notional_usd, short_base_qty, short_price, short_taker_fee, short_slippage_bps,
	long_exchange, long_notional_usd, long_base_qty, long_price, long_taker_fee, long_slippage_bps,
	leverage, interval_hours, entry_at, next_funding_at,
	entry_diff_4h, entry_diff_per_interval, entry_break_even_per_interval, entry_min_intervals,
	fee_slip_cost_usd, basis_cost_usd, notional_total_usd,
	state, closed_at`

func intervalsToDB(iv domain.Intervals) *int64 {
	if !iv.Finite() {
		return nil
	}
	n := iv.Count()
	return &n
}

func intervalsFromDB(n *int64) domain.Intervals {
	if n == nil {
		return domain.UnreachableIntervals()
	}
	return domain.FiniteIntervals(*n)
}

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var state string
	var minIntervals *int64
	var nextFunding *time.Time

	err := row.Scan(
		&p.ID, &p.Symbol,
		&p.ShortLeg.Exchange, &p.ShortLeg.NotionalUSD, &p.ShortLeg.BaseQty,
		&p.ShortLeg.Price, &p.ShortLeg.TakerFeeRate, &p.ShortLeg.SlippageBps,
		&p.LongLeg.Exchange, &p.LongLeg.NotionalUSD, &p.LongLeg.BaseQty,
		&p.LongLeg.Price, &p.LongLeg.TakerFeeRate, &p.LongLeg.SlippageBps,
		&p.Leverage, &p.IntervalHours, &p.EntryAt, &nextFunding,
		&p.EntryDiff4h, &p.EntryDiffPerInterval, &p.EntryBreakEvenPerInterval, &minIntervals,
		&p.FeeSlipCostUSD, &p.BasisCostUSD, &p.NotionalTotalUSD,
		&state, &p.ClosedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.ShortLeg.Symbol = p.Symbol
	p.ShortLeg.Side = domain.SideShort
	p.LongLeg.Symbol = p.Symbol
	p.LongLeg.Side = domain.SideLong
	p.EntryMinIntervals = intervalsFromDB(minIntervals)
	p.State = domain.PositionState(state)
	if nextFunding != nil {
		p.NextFundingAt = *nextFunding
	}
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, symbol,
			short_exchange, short_notional_usd, short_base_qty, short_price, short_taker_fee, short_slippage_bps,
			long_exchange, long_notional_usd, long_base_qty, long_price, long_taker_fee, long_slippage_bps,
			leverage, interval_hours, entry_at, next_funding_at,
			entry_diff_4h, entry_diff_per_interval, entry_break_even_per_interval, entry_min_intervals,
			fee_slip_cost_usd, basis_cost_usd, notional_total_usd,
			state, closed_at, updated_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25,
			$26, $27, NOW()
		)`

	var nextFunding *time.Time
	if !p.NextFundingAt.IsZero() {
		nextFunding = &p.NextFundingAt
	}

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Symbol,
		p.ShortLeg.Exchange, p.ShortLeg.NotionalUSD, p.ShortLeg.BaseQty,
		p.ShortLeg.Price, p.ShortLeg.TakerFeeRate, p.ShortLeg.SlippageBps,
		p.LongLeg.Exchange, p.LongLeg.NotionalUSD, p.LongLeg.BaseQty,
		p.LongLeg.Price, p.LongLeg.TakerFeeRate, p.LongLeg.SlippageBps,
		p.Leverage, p.IntervalHours, p.EntryAt, nextFunding,
		p.EntryDiff4h, p.EntryDiffPerInterval, p.EntryBreakEvenPerInterval, intervalsToDB(p.EntryMinIntervals),
		p.FeeSlipCostUSD, p.BasisCostUSD, p.NotionalTotalUSD,
		string(p.State), p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// Close marks an open position as closed at the given time.
func (s *PositionStore) Close(ctx context.Context, id string, closedAt time.Time) error {
	const query = `
		UPDATE positions SET
			state      = 'closed',
			closed_at  = $2,
			updated_at = NOW()
		WHERE id = $1 AND state = 'open'`

	tag, err := s.pool.Exec(ctx, query, id, closedAt)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListOpen returns all open positions, newest entry first.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE state = 'open'
		 ORDER BY entry_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListHistory returns positions with pagination and optional time filtering.
func (s *PositionStore) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND entry_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND entry_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY entry_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list position history: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan position history: %w", err)
	}
	return positions, nil
}
