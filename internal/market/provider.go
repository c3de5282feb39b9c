// Package market provides cached access to exchange market data. Candles are
// cached per (symbol, timeframe) with refresh intervals scaled to the
// timeframe, so the trading loop can poll freely without hammering the
// exchange.
package market

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"broski-bot/internal/exchange"
)

// refreshThresholds is the maximum cache age per timeframe before the next
// read triggers a REST refresh.
var refreshThresholds = map[string]time.Duration{
	"1m":  30 * time.Second,
	"5m":  120 * time.Second,
	"15m": 300 * time.Second,
	"30m": 600 * time.Second,
	"1h":  1800 * time.Second,
	"4h":  7200 * time.Second,
	"1d":  28800 * time.Second,
}

const defaultRefreshThreshold = 60 * time.Second

type cacheEntry struct {
	candles   []exchange.Candle
	fetchedAt time.Time
}

// Provider serves candles, prices and balances from the exchange with a
// read-through candle cache. Data errors are logged and degrade to empty
// results; they never stop the pipeline.
type Provider struct {
	client exchange.ExchangeClient
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry

	now func() time.Time // injectable for tests
}

func NewProvider(client exchange.ExchangeClient, logger zerolog.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// GetCandles returns up to limit candles for the symbol/timeframe, serving
// from cache while it is fresh. On fetch failure it returns the empty slice;
// stale cached data is not served past its threshold.
func (p *Provider) GetCandles(symbol, timeframe string, limit int) []exchange.Candle {
	key := symbol + ":" + timeframe

	p.mu.RLock()
	entry, ok := p.cache[key]
	p.mu.RUnlock()

	if ok && p.now().Sub(entry.fetchedAt) < thresholdFor(timeframe) && len(entry.candles) >= limit {
		return entry.candles[len(entry.candles)-limit:]
	}

	candles, err := p.client.GetCandles(symbol, timeframe, limit)
	if err != nil {
		p.logger.Error().Err(err).
			Str("symbol", symbol).
			Str("timeframe", timeframe).
			Msg("candle fetch failed")
		return []exchange.Candle{}
	}

	p.mu.Lock()
	p.cache[key] = cacheEntry{candles: candles, fetchedAt: p.now()}
	p.mu.Unlock()

	return candles
}

// ApplyCandle merges a streamed candle into the cache: it replaces the last
// cached bar when open times match, otherwise appends. It implements
// exchange.CandleSink.
func (p *Provider) ApplyCandle(symbol, timeframe string, candle exchange.Candle) {
	key := symbol + ":" + timeframe

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[key]
	if !ok || len(entry.candles) == 0 {
		return
	}

	last := len(entry.candles) - 1
	switch {
	case entry.candles[last].OpenTime == candle.OpenTime:
		entry.candles[last] = candle
	case candle.OpenTime > entry.candles[last].OpenTime:
		entry.candles = append(entry.candles[1:], candle)
	default:
		return
	}
	entry.fetchedAt = p.now()
	p.cache[key] = entry
}

// GetPrice returns the current price, or 0 when the exchange call fails.
func (p *Provider) GetPrice(symbol string) float64 {
	price, err := p.client.GetPrice(symbol)
	if err != nil {
		p.logger.Error().Err(err).Str("symbol", symbol).Msg("price fetch failed")
		return 0
	}
	return price
}

// GetBalance returns the pair balances, or nil when the exchange call fails.
func (p *Provider) GetBalance(baseAsset, quoteAsset string) *exchange.Balance {
	bal, err := p.client.GetBalance(baseAsset, quoteAsset)
	if err != nil {
		p.logger.Error().Err(err).Msg("balance fetch failed")
		return nil
	}
	return bal
}

// Invalidate drops the cached candles for a symbol/timeframe.
func (p *Provider) Invalidate(symbol, timeframe string) {
	p.mu.Lock()
	delete(p.cache, symbol+":"+timeframe)
	p.mu.Unlock()
}

func thresholdFor(timeframe string) time.Duration {
	if d, ok := refreshThresholds[timeframe]; ok {
		return d
	}
	return defaultRefreshThreshold
}
