// Package service coordinates the valuation engine with the stores, caches,
// signal bus, and notification channels. Services own record identity and
// timestamps; the engine below them stays pure.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/notify"
)

// maxRecentRanks bounds the in-memory ring served by /api/ranks/recent.
const maxRecentRanks = 100

// ScreenerService records screening outcomes: it stamps identity onto engine
// results, persists them, fans them out on the signal bus, and raises
// notifications for keep verdicts.
type ScreenerService struct {
	evals    domain.EvaluationStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	ranks []domain.RankResult
}

// NewScreenerService creates a ScreenerService with all required dependencies.
func NewScreenerService(
	evals domain.EvaluationStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ScreenerService {
	return &ScreenerService{
		evals:    evals,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "screener_service")),
	}
}

// Record stamps an ID and timestamp onto a freshly computed evaluation,
// persists it, publishes it on the "evaluations" channel, and notifies on
// keep verdicts. The stamped result is returned.
func (s *ScreenerService) Record(ctx context.Context, ev domain.EvalResult) (domain.EvalResult, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.EvaluatedAt.IsZero() {
		ev.EvaluatedAt = time.Now().UTC()
	}

	if err := s.evals.Insert(ctx, ev); err != nil {
		return domain.EvalResult{}, fmt.Errorf("screener_service: insert evaluation: %w", err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":      "evaluation",
		"id":         ev.ID,
		"symbol":     ev.Symbol,
		"short":      ev.ShortExchange,
		"long":       ev.LongExchange,
		"diff_4h":    ev.Diff4h,
		"margin_bps": ev.MarginBps,
		"decision":   string(ev.Decision),
	})
	if pubErr := s.bus.Publish(ctx, "evaluations", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish evaluation event failed",
			slog.String("id", ev.ID),
			slog.String("error", pubErr.Error()),
		)
	}

	if ev.Decision == domain.DecisionKeep {
		title, msg := notify.FormatEvalResult(ev)
		if err := s.notifier.Notify(ctx, notify.EventKeepCandidate, title, msg); err != nil {
			s.logger.WarnContext(ctx, "keep candidate notify failed",
				slog.String("id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return ev, nil
}

// RecordRank stamps identity onto a liquidity rank, keeps it in the recent
// ring, and publishes it on the "ranks" channel. Ranks are display data and
// are not persisted.
func (s *ScreenerService) RecordRank(ctx context.Context, r domain.RankResult) (domain.RankResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ScoredAt.IsZero() {
		r.ScoredAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.ranks = append(s.ranks, r)
	if len(s.ranks) > maxRecentRanks {
		s.ranks = s.ranks[len(s.ranks)-maxRecentRanks:]
	}
	s.mu.Unlock()

	evt, _ := json.Marshal(map[string]any{
		"event":  "rank",
		"id":     r.ID,
		"symbol": r.Symbol,
		"rank":   string(r.Rank),
		"score":  r.Score,
	})
	if pubErr := s.bus.Publish(ctx, "ranks", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish rank event failed",
			slog.String("id", r.ID),
			slog.String("error", pubErr.Error()),
		)
	}

	return r, nil
}

// RecentRanks returns up to limit of the most recently recorded ranks,
// newest first.
func (s *ScreenerService) RecentRanks(limit int) []domain.RankResult {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.ranks)
	if limit > n {
		limit = n
	}
	out := make([]domain.RankResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.ranks[i])
	}
	return out
}

// RecentEvaluations returns up to limit of the most recent screening records.
func (s *ScreenerService) RecentEvaluations(ctx context.Context, limit int) ([]domain.EvalResult, error) {
	evals, err := s.evals.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("screener_service: list recent evaluations: %w", err)
	}
	return evals, nil
}
