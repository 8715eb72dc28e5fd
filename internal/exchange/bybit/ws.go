package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/exchange"
)

const (
	defaultWSURL = "wss://stream.bybit.com/v5/public/linear"
	pingInterval = 20 * time.Second
	readDeadline = 60 * time.Second
)

// TickHandler receives live funding ticks from the stream.
type TickHandler func(ctx context.Context, tick domain.FundingTick)

// WSFeed streams the public tickers channel for a set of symbols and emits a
// FundingTick whenever the funding rate or mark price moves. It reconnects
// with a fixed backoff on disconnect.
type WSFeed struct {
	url       string
	symbols   []string
	onTick    TickHandler
	client    *Client
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSFeed creates a feed for the given symbols. The REST client supplies
// the funding interval used for 4h normalization. An empty url selects the
// production stream.
func NewWSFeed(url string, symbols []string, client *Client, onTick TickHandler, logger *slog.Logger) *WSFeed {
	if url == "" {
		url = defaultWSURL
	}
	return &WSFeed{
		url:     url,
		symbols: symbols,
		onTick:  onTick,
		client:  client,
		logger:  logger.With(slog.String("component", "bybit_ws_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and streams until ctx is cancelled or Close is called.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}
		f.logger.Warn("bybit ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// Close stops the feed.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

type wsRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type wsPush struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  struct {
		Symbol      string `json:"symbol"`
		FundingRate string `json:"fundingRate"`
		MarkPrice   string `json:"markPrice"`
	} `json:"data"`
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("bybit: ws dial: %w", err)
	}
	defer conn.Close()

	args := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		args = append(args, "tickers."+s)
	}
	if err := conn.WriteJSON(wsRequest{Op: "subscribe", Args: args}); err != nil {
		return fmt.Errorf("bybit: ws subscribe: %w", err)
	}
	f.logger.Info("bybit ws subscribed", slog.Int("symbols", len(f.symbols)))

	connDone := make(chan struct{})
	defer close(connDone)
	go f.pingLoop(ctx, conn, connDone)

	// Ticker pushes are deltas after the first snapshot; carry the last
	// known values forward per symbol.
	last := make(map[string]domain.FundingTick)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("bybit: ws read: %w", domain.ErrWSDisconnect)
		}

		var push wsPush
		if err := json.Unmarshal(msg, &push); err != nil || push.Topic == "" {
			continue
		}

		tick := last[push.Data.Symbol]
		tick.Exchange = f.client.Name()
		tick.Symbol = push.Data.Symbol
		tick.At = time.Now().UTC()

		if push.Data.FundingRate != "" {
			rate, err := exchange.ParseDecimal(push.Data.FundingRate)
			if err == nil {
				hours := f.client.fundingIntervalHours(ctx, push.Data.Symbol)
				tick.Rate4h = exchange.Normalize4h(rate, hours)
			}
		}
		if push.Data.MarkPrice != "" {
			if px, err := exchange.ParseDecimal(push.Data.MarkPrice); err == nil {
				tick.MarkPrice = px
			}
		}
		last[push.Data.Symbol] = tick

		if f.onTick != nil && tick.MarkPrice > 0 {
			f.onTick(ctx, tick)
		}
	}
}

func (f *WSFeed) pingLoop(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-connDone:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(wsRequest{Op: "ping"}); err != nil {
				return
			}
		}
	}
}
