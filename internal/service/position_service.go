package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
	"github.com/hayatoko/frarb/internal/notify"
)

// PositionConfig tunes the open-position monitoring path.
type PositionConfig struct {
	// DefaultLeverage is applied when an open request carries none.
	DefaultLeverage float64
	// FundingSoonWindow is how close the next settlement must be before a
	// reminder fires. Zero disables the reminder.
	FundingSoonWindow time.Duration
	// CloseAlertCooldown suppresses repeat close recommendations for the
	// same position.
	CloseAlertCooldown time.Duration
	// AprFloorPct fires an alert when an open position's gross APR drops
	// below it. Zero disables the alert.
	AprFloorPct float64
	// AprAlertCooldown suppresses repeat APR-floor alerts for the same
	// position.
	AprAlertCooldown time.Duration
}

// PositionService manages the position ledger: opening accepted candidates,
// re-marking open positions against live funding, and closing them. The
// ledger rows are immutable entry baselines; only the open/closed state ever
// transitions.
type PositionService struct {
	positions domain.PositionStore
	evals     domain.EvaluationStore
	eng       *engine.Engine
	cache     domain.FundingCache
	bus       domain.SignalBus
	audit     domain.AuditStore
	cooldown  domain.CooldownGuard
	notifier  *notify.Notifier
	cfg       PositionConfig
	logger    *slog.Logger
}

// NewPositionService creates a PositionService with all required dependencies.
func NewPositionService(
	positions domain.PositionStore,
	evals domain.EvaluationStore,
	eng *engine.Engine,
	cache domain.FundingCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cooldown domain.CooldownGuard,
	notifier *notify.Notifier,
	cfg PositionConfig,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		evals:     evals,
		eng:       eng,
		cache:     cache,
		bus:       bus,
		audit:     audit,
		cooldown:  cooldown,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "position_service")),
	}
}

// OpenFromEvaluation loads a recorded evaluation by ID and opens a position
// from it. This is the entry-registration path behind POST /api/positions.
func (s *PositionService) OpenFromEvaluation(ctx context.Context, evalID string, opts engine.OpenOptions) (domain.Position, error) {
	ev, err := s.evals.GetByID(ctx, evalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{}, fmt.Errorf("position_service: evaluation %q: %w", evalID, domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("position_service: load evaluation %q: %w", evalID, err)
	}
	return s.Open(ctx, ev, opts)
}

// Open freezes an accepted evaluation into a ledger position and persists it.
func (s *PositionService) Open(ctx context.Context, ev domain.EvalResult, opts engine.OpenOptions) (domain.Position, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if opts.EntryAt.IsZero() {
		opts.EntryAt = time.Now().UTC()
	}
	if opts.Leverage == 0 {
		opts.Leverage = s.cfg.DefaultLeverage
	}

	pos := s.eng.OpenPosition(ev, opts)

	if err := s.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create position: %w", err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":       "position_opened",
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"short":       pos.ShortLeg.Exchange,
		"long":        pos.LongLeg.Exchange,
		"notional":    pos.NotionalTotalUSD,
	})
	if pubErr := s.bus.Publish(ctx, "positions", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish open event failed",
			slog.String("position_id", pos.ID),
			slog.String("error", pubErr.Error()),
		)
	}

	if auditErr := s.audit.Log(ctx, "position_opened", map[string]any{
		"position_id":   pos.ID,
		"symbol":        pos.Symbol,
		"short":         pos.ShortLeg.Exchange,
		"long":          pos.LongLeg.Exchange,
		"entry_diff_4h": pos.EntryDiff4h,
		"notional_usd":  pos.NotionalTotalUSD,
		"entry_at":      pos.EntryAt.Format(time.RFC3339),
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("position_id", pos.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("symbol", pos.Symbol),
		slog.String("short", pos.ShortLeg.Exchange),
		slog.String("long", pos.LongLeg.Exchange),
		slog.Float64("notional_usd", pos.NotionalTotalUSD),
	)

	return pos, nil
}

// ReevaluateAll marks every open position against the latest cached funding
// rates. Positions whose legs have no fresh tick are skipped, not failed; one
// stale venue must not stall the whole sweep.
func (s *PositionService) ReevaluateAll(ctx context.Context, now time.Time) ([]domain.PositionSnapshot, error) {
	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list open: %w", err)
	}

	snaps := make([]domain.PositionSnapshot, 0, len(open))
	for _, pos := range open {
		shortTick, err := s.cache.GetTick(ctx, pos.ShortLeg.Exchange, pos.Symbol)
		if err != nil {
			s.logger.WarnContext(ctx, "no funding tick for short leg, skipping",
				slog.String("position_id", pos.ID),
				slog.String("exchange", pos.ShortLeg.Exchange),
				slog.String("error", err.Error()),
			)
			continue
		}
		longTick, err := s.cache.GetTick(ctx, pos.LongLeg.Exchange, pos.Symbol)
		if err != nil {
			s.logger.WarnContext(ctx, "no funding tick for long leg, skipping",
				slog.String("position_id", pos.ID),
				slog.String("exchange", pos.LongLeg.Exchange),
				slog.String("error", err.Error()),
			)
			continue
		}

		snap := s.eng.EvaluatePositionNow(pos, engine.LiveFunding{
			ShortLegRate4h: shortTick.Rate4h,
			LongLegRate4h:  longTick.Rate4h,
		}, now, 0)
		snaps = append(snaps, snap)

		s.publishSnapshot(ctx, snap)
		s.maybeCloseAlert(ctx, snap)
		s.maybeAprDropAlert(ctx, snap)
		s.maybeFundingSoon(ctx, pos, now)
	}

	return snaps, nil
}

func (s *PositionService) publishSnapshot(ctx context.Context, snap domain.PositionSnapshot) {
	evt, _ := json.Marshal(map[string]any{
		"event":       "position_snapshot",
		"position_id": snap.PositionID,
		"symbol":      snap.Symbol,
		"flipped":     snap.Flipped,
		"margin_bps":  snap.MarginBps,
		"est_pnl_usd": snap.EstimatedPnLUSD,
		"decision":    string(snap.Decision),
	})
	if pubErr := s.bus.Publish(ctx, "positions", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish snapshot event failed",
			slog.String("position_id", snap.PositionID),
			slog.String("error", pubErr.Error()),
		)
	}
}

// maybeCloseAlert raises a close recommendation at most once per position per
// cooldown window. The position itself stays open until an operator closes it.
func (s *PositionService) maybeCloseAlert(ctx context.Context, snap domain.PositionSnapshot) {
	if snap.Decision != domain.DecisionClose {
		return
	}

	key := "position_close:" + snap.PositionID
	ok, err := s.cooldown.Allow(ctx, key, s.cfg.CloseAlertCooldown)
	if err != nil {
		s.logger.WarnContext(ctx, "close alert cooldown check failed",
			slog.String("position_id", snap.PositionID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		return
	}

	title, msg := notify.FormatPositionSnapshot(snap)
	if err := s.notifier.Notify(ctx, notify.EventPositionClose, title, msg); err != nil {
		s.logger.WarnContext(ctx, "close alert notify failed",
			slog.String("position_id", snap.PositionID),
			slog.String("error", err.Error()),
		)
	}
}

// maybeAprDropAlert warns when an open position's gross APR has fallen below
// the configured floor, at most once per position per cooldown window.
func (s *PositionService) maybeAprDropAlert(ctx context.Context, snap domain.PositionSnapshot) {
	if s.cfg.AprFloorPct <= 0 || snap.AprGrossPct >= s.cfg.AprFloorPct {
		return
	}

	key := "apr_drop:" + snap.PositionID
	ok, err := s.cooldown.Allow(ctx, key, s.cfg.AprAlertCooldown)
	if err != nil {
		s.logger.WarnContext(ctx, "apr drop cooldown check failed",
			slog.String("position_id", snap.PositionID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		return
	}

	title, msg := notify.FormatAprDropAlert(snap, s.cfg.AprFloorPct)
	if err := s.notifier.Notify(ctx, notify.EventAprAlert, title, msg); err != nil {
		s.logger.WarnContext(ctx, "apr drop notify failed",
			slog.String("position_id", snap.PositionID),
			slog.String("error", err.Error()),
		)
	}
}

// maybeFundingSoon reminds the operator shortly before the next settlement.
// One reminder per position per settlement window.
func (s *PositionService) maybeFundingSoon(ctx context.Context, pos domain.Position, now time.Time) {
	if s.cfg.FundingSoonWindow <= 0 || pos.NextFundingAt.IsZero() {
		return
	}
	until := pos.NextFundingAt.Sub(now)
	if until <= 0 || until > s.cfg.FundingSoonWindow {
		return
	}

	key := fmt.Sprintf("funding_soon:%s:%d", pos.ID, pos.NextFundingAt.Unix())
	ok, err := s.cooldown.Allow(ctx, key, s.cfg.FundingSoonWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "funding soon cooldown check failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		return
	}

	title, msg := notify.FormatFundingSoon(pos, pos.NextFundingAt)
	if err := s.notifier.Notify(ctx, notify.EventFundingSoon, title, msg); err != nil {
		s.logger.WarnContext(ctx, "funding soon notify failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Close marks a position closed at the given time.
func (s *PositionService) Close(ctx context.Context, id string, closedAt time.Time) error {
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	if err := s.positions.Close(ctx, id, closedAt); err != nil {
		return fmt.Errorf("position_service: close position %q: %w", id, err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":       "position_closed",
		"position_id": id,
		"closed_at":   closedAt.Format(time.RFC3339),
	})
	if pubErr := s.bus.Publish(ctx, "positions", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish close event failed",
			slog.String("position_id", id),
			slog.String("error", pubErr.Error()),
		)
	}

	if auditErr := s.audit.Log(ctx, "position_closed", map[string]any{
		"position_id": id,
		"closed_at":   closedAt.Format(time.RFC3339),
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("position_id", id),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", id),
	)

	return nil
}

// ListOpen returns all open positions.
func (s *PositionService) ListOpen(ctx context.Context) ([]domain.Position, error) {
	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list open: %w", err)
	}
	return open, nil
}

// GetByID returns one position by its identifier.
func (s *PositionService) GetByID(ctx context.Context, id string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get position %q: %w", id, err)
	}
	return pos, nil
}

// History returns closed and open positions with pagination.
func (s *PositionService) History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListHistory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("position_service: list history: %w", err)
	}
	return positions, nil
}
