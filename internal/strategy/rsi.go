package strategy

import (
	"fmt"
	"math"

	"broski-bot/config"
	"broski-bot/internal/exchange"
	"broski-bot/internal/indicator"
)

// RSIStrategy signals when the RSI crosses back into the neutral band:
// a buy when it rises out of oversold territory, a sell when it falls out of
// overbought territory. Staying inside either band never signals.
type RSIStrategy struct {
	cfg config.RSIConfig
}

func NewRSIStrategy(cfg config.RSIConfig) *RSIStrategy {
	return &RSIStrategy{cfg: cfg}
}

func (s *RSIStrategy) Name() string      { return "rsi_strategy" }
func (s *RSIStrategy) Timeframe() string { return s.cfg.Timeframe }

func (s *RSIStrategy) Evaluate(candles []exchange.Candle) (*Signal, error) {
	if len(candles) < s.cfg.RSIPeriod+2 {
		return nil, fmt.Errorf("%w: rsi needs %d candles, have %d",
			indicator.ErrInsufficientData, s.cfg.RSIPeriod+2, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	rsi := indicator.RSISeries(closes, s.cfg.RSIPeriod)

	last := len(rsi) - 1
	cur, prev := rsi[last], rsi[last-1]
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return nil, nil
	}

	bar := candles[last]
	switch {
	case prev < s.cfg.RSIOversold && cur >= s.cfg.RSIOversold:
		return &Signal{
			Type:      SignalBuy,
			Price:     bar.Close,
			Timestamp: bar.CloseTime,
			Strategy:  s.Name(),
			Reason:    fmt.Sprintf("RSI recovered from oversold (%.1f -> %.1f)", prev, cur),
		}, nil
	case prev > s.cfg.RSIOverbought && cur <= s.cfg.RSIOverbought:
		return &Signal{
			Type:      SignalSell,
			Price:     bar.Close,
			Timestamp: bar.CloseTime,
			Strategy:  s.Name(),
			Reason:    fmt.Sprintf("RSI dropped from overbought (%.1f -> %.1f)", prev, cur),
		}, nil
	}
	return nil, nil
}
