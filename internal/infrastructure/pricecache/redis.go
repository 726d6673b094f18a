// Package pricecache implements the price and signal interfaces over Redis.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// Cache stores the last traded price as a hash at "LTP:{symbol}" with fields
// "price" and "ts", and the rolling high/low at "OHLC:{symbol}" with fields
// "high" and "low". Strategy signals live as plain strings at
// "SIGNAL:{symbol}:{strategy}". The feeder writes, the monitors read; both
// sides share nothing but Redis.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func ltpKey(symbol string) string {
	return "LTP:" + symbol
}

func ohlcKey(symbol string) string {
	return "OHLC:" + symbol
}

func signalKey(symbol, strategy string) string {
	return "SIGNAL:" + symbol + ":" + strategy
}

// SetLastPrice stores the latest trade for a symbol.
func (c *Cache) SetLastPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := c.rdb.HSet(ctx, ltpKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set last price %s: %w", symbol, err)
	}
	return nil
}

// LastPrice returns the latest trade price for a symbol, or
// ErrPriceUnavailable when no feed has written it yet.
func (c *Cache) LastPrice(ctx context.Context, symbol string) (float64, error) {
	val, err := c.rdb.HGet(ctx, ltpKey(symbol), "price").Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get last price %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse last price %s: %w", symbol, err)
	}
	return price, nil
}

// SetRecentRange stores the rolling high/low for a symbol.
func (c *Cache) SetRecentRange(ctx context.Context, symbol string, rng domain.PriceRange) error {
	fields := map[string]interface{}{
		"high": strconv.FormatFloat(rng.High, 'f', -1, 64),
		"low":  strconv.FormatFloat(rng.Low, 'f', -1, 64),
	}
	if err := c.rdb.HSet(ctx, ohlcKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set range %s: %w", symbol, err)
	}
	return nil
}

// RecentRange returns the rolling high/low for a symbol, or
// ErrPriceUnavailable when absent.
func (c *Cache) RecentRange(ctx context.Context, symbol string) (domain.PriceRange, error) {
	vals, err := c.rdb.HGetAll(ctx, ohlcKey(symbol)).Result()
	if err != nil {
		return domain.PriceRange{}, fmt.Errorf("redis: get range %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.PriceRange{}, fmt.Errorf("%w: %s range", domain.ErrPriceUnavailable, symbol)
	}

	high, err := strconv.ParseFloat(vals["high"], 64)
	if err != nil {
		return domain.PriceRange{}, fmt.Errorf("redis: parse high %s: %w", symbol, err)
	}
	low, err := strconv.ParseFloat(vals["low"], 64)
	if err != nil {
		return domain.PriceRange{}, fmt.Errorf("redis: parse low %s: %w", symbol, err)
	}
	return domain.PriceRange{High: high, Low: low}, nil
}

// LatestSignal returns the most recent strategy advice for a symbol.
// SignalNone is returned when no strategy has published yet.
func (c *Cache) LatestSignal(ctx context.Context, symbol, strategy string) (domain.Signal, error) {
	val, err := c.rdb.Get(ctx, signalKey(symbol, strategy)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.SignalNone, nil
	}
	if err != nil {
		return domain.SignalNone, fmt.Errorf("redis: get signal %s/%s: %w", symbol, strategy, err)
	}
	switch sig := domain.Signal(val); sig {
	case domain.SignalBuy, domain.SignalSell, domain.SignalNone:
		return sig, nil
	default:
		return domain.SignalNone, fmt.Errorf("redis: unknown signal %q for %s/%s", val, symbol, strategy)
	}
}

// PublishSignal writes a strategy signal. Used by tooling and tests; the
// production writer is the external strategy process.
func (c *Cache) PublishSignal(ctx context.Context, symbol, strategy string, sig domain.Signal) error {
	if err := c.rdb.Set(ctx, signalKey(symbol, strategy), string(sig), 0).Err(); err != nil {
		return fmt.Errorf("redis: publish signal %s/%s: %w", symbol, strategy, err)
	}
	return nil
}
