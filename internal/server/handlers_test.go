package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
)

type fakePositions struct {
	open    []domain.Position
	history []domain.Position
	byID    map[string]domain.Position
	evals   map[string]domain.EvalResult
	opened  []domain.Position
	closed  []string
}

func (f *fakePositions) OpenFromEvaluation(ctx context.Context, evalID string, opts engine.OpenOptions) (domain.Position, error) {
	ev, ok := f.evals[evalID]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	pos := domain.Position{
		ID:       ev.ID,
		Symbol:   ev.Symbol,
		Leverage: opts.Leverage,
		State:    domain.PositionStateOpen,
	}
	f.opened = append(f.opened, pos)
	return pos, nil
}

func (f *fakePositions) ListOpen(ctx context.Context) ([]domain.Position, error) {
	return f.open, nil
}

func (f *fakePositions) GetByID(ctx context.Context, id string) (domain.Position, error) {
	pos, ok := f.byID[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakePositions) History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return f.history, nil
}

func (f *fakePositions) Close(ctx context.Context, id string, closedAt time.Time) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	f.closed = append(f.closed, id)
	return nil
}

type fakeScreener struct {
	evals []domain.EvalResult
	ranks []domain.RankResult
}

func (f *fakeScreener) RecentEvaluations(ctx context.Context, limit int) ([]domain.EvalResult, error) {
	if limit < len(f.evals) {
		return f.evals[:limit], nil
	}
	return f.evals, nil
}

func (f *fakeScreener) RecentRanks(limit int) []domain.RankResult {
	if limit < len(f.ranks) {
		return f.ranks[:limit]
	}
	return f.ranks
}

func testServer(t *testing.T, positions *fakePositions, screener *fakeScreener) *httptest.Server {
	t.Helper()
	srv := New(Config{Port: 0}, positions, positions, positions, screener, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, target any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := testServer(t, &fakePositions{}, &fakeScreener{})

	var body map[string]any
	status := getJSON(t, ts.URL+"/api/health", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestListOpenPositions(t *testing.T) {
	positions := &fakePositions{
		open: []domain.Position{
			{ID: "pos-1", Symbol: "BTCUSDT", State: domain.PositionStateOpen},
		},
	}
	ts := testServer(t, positions, &fakeScreener{})

	var body listPositionsResponse
	status := getJSON(t, ts.URL+"/api/positions", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Positions, 1)
	require.Equal(t, "pos-1", body.Positions[0].ID)
}

func TestListOpenPositionsEmpty(t *testing.T) {
	ts := testServer(t, &fakePositions{}, &fakeScreener{})

	resp, err := http.Get(ts.URL + "/api/positions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.JSONEq(t, "[]", string(raw["positions"]))
}

func TestGetPosition(t *testing.T) {
	positions := &fakePositions{
		byID: map[string]domain.Position{
			"pos-1": {ID: "pos-1", Symbol: "ETHUSDT"},
		},
	}
	ts := testServer(t, positions, &fakeScreener{})

	var pos domain.Position
	status := getJSON(t, ts.URL+"/api/positions/pos-1", &pos)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ETHUSDT", pos.Symbol)

	var errBody map[string]string
	status = getJSON(t, ts.URL+"/api/positions/missing", &errBody)
	require.Equal(t, http.StatusNotFound, status)
}

func TestOpenPosition(t *testing.T) {
	positions := &fakePositions{
		evals: map[string]domain.EvalResult{
			"eval-1": {ID: "eval-1", Symbol: "BTCUSDT", Decision: domain.DecisionKeep},
		},
	}
	ts := testServer(t, positions, &fakeScreener{})

	body := strings.NewReader(`{"evaluation_id":"eval-1","leverage":2}`)
	resp, err := http.Post(ts.URL+"/api/positions", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var pos domain.Position
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pos))
	require.Equal(t, "eval-1", pos.ID)
	require.Equal(t, 2.0, pos.Leverage)
	require.Len(t, positions.opened, 1)
}

func TestOpenPositionErrors(t *testing.T) {
	ts := testServer(t, &fakePositions{}, &fakeScreener{})

	resp, err := http.Post(ts.URL+"/api/positions", "application/json",
		strings.NewReader(`{"evaluation_id":"missing"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/positions", "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClosePosition(t *testing.T) {
	positions := &fakePositions{
		byID: map[string]domain.Position{
			"pos-1": {ID: "pos-1"},
		},
	}
	ts := testServer(t, positions, &fakeScreener{})

	resp, err := http.Post(ts.URL+"/api/positions/pos-1/close", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"pos-1"}, positions.closed)

	resp, err = http.Post(ts.URL+"/api/positions/missing/close", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecentEvaluations(t *testing.T) {
	screener := &fakeScreener{
		evals: []domain.EvalResult{
			{ID: "e1", Symbol: "BTCUSDT", Decision: domain.DecisionKeep},
			{ID: "e2", Symbol: "ETHUSDT", Decision: domain.DecisionClose},
		},
	}
	ts := testServer(t, &fakePositions{}, screener)

	var body listEvaluationsResponse
	status := getJSON(t, ts.URL+"/api/evaluations/recent?limit=1", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Evaluations, 1)
	require.Equal(t, "e1", body.Evaluations[0].ID)
}

func TestRecentRanks(t *testing.T) {
	screener := &fakeScreener{
		ranks: []domain.RankResult{
			{ID: "r1", Symbol: "BTCUSDT", Rank: domain.RankS, Score: 9},
		},
	}
	ts := testServer(t, &fakePositions{}, screener)

	var body listRanksResponse
	status := getJSON(t, ts.URL+"/api/ranks/recent", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Ranks, 1)
	require.Equal(t, domain.RankS, body.Ranks[0].Rank)
}
