package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"go.uber.org/zap"
)

// PriceFeeder streams live trades over websocket and writes them into the
// shared price cache: the last traded price on every tick, plus a rolling
// high/low that resets on each candle boundary. It reconnects with a fixed
// backoff until ctx is cancelled.
type PriceFeeder struct {
	wsURL    string
	symbols  []string
	interval time.Duration
	sink     domain.PriceSink
	logger   *zap.Logger

	candles map[string]*candle
}

type candle struct {
	openedAt time.Time
	high     float64
	low      float64
}

func NewPriceFeeder(wsURL string, symbols []string, candleInterval time.Duration, sink domain.PriceSink, logger *zap.Logger) *PriceFeeder {
	if wsURL == "" {
		wsURL = BinanceWSURL
	}
	if candleInterval == 0 {
		candleInterval = time.Minute
	}
	return &PriceFeeder{
		wsURL:    wsURL,
		symbols:  symbols,
		interval: candleInterval,
		sink:     sink,
		logger:   logger,
		candles:  make(map[string]*candle),
	}
}

// Run connects, subscribes and pumps trades until ctx is cancelled.
func (f *PriceFeeder) Run(ctx context.Context) error {
	for {
		if err := f.connectAndPump(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("Price stream disconnected, reconnecting", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func (f *PriceFeeder) connectAndPump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("Price stream connected", zap.Strings("symbols", f.symbols))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(ctx, message)
	}
}

func (f *PriceFeeder) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		params = append(params, strings.ToLower(s)+"@trade")
	}
	return conn.WriteJSON(map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	})
}

type tradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

func (f *PriceFeeder) handleMessage(ctx context.Context, message []byte) {
	var ev tradeEvent
	if err := json.Unmarshal(message, &ev); err != nil || ev.EventType != "trade" {
		// Subscription acks and other control frames land here.
		return
	}
	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil || price <= 0 {
		return
	}

	ts := time.UnixMilli(ev.TradeTime)
	if err := f.sink.SetLastPrice(ctx, ev.Symbol, price, ts); err != nil {
		f.logger.Warn("Price write failed", zap.String("symbol", ev.Symbol), zap.Error(err))
		return
	}

	rng := f.roll(ev.Symbol, price, ts)
	if err := f.sink.SetRecentRange(ctx, ev.Symbol, rng); err != nil {
		f.logger.Warn("Range write failed", zap.String("symbol", ev.Symbol), zap.Error(err))
	}
}

// roll folds a trade into the symbol's current candle, starting a fresh one
// when the interval has elapsed.
func (f *PriceFeeder) roll(symbol string, price float64, ts time.Time) domain.PriceRange {
	c := f.candles[symbol]
	if c == nil || ts.Sub(c.openedAt) >= f.interval {
		c = &candle{openedAt: ts.Truncate(f.interval), high: price, low: price}
		f.candles[symbol] = c
		return domain.PriceRange{High: price, Low: price}
	}
	if price > c.high {
		c.high = price
	}
	if price < c.low {
		c.low = price
	}
	return domain.PriceRange{High: c.high, Low: c.low}
}
