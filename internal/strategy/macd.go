package strategy

import (
	"fmt"
	"math"

	"broski-bot/config"
	"broski-bot/internal/exchange"
	"broski-bot/internal/indicator"
)

// MACDStrategy signals on MACD line / signal line crossovers: buy when the
// MACD line crosses above the signal line, sell when it crosses below.
type MACDStrategy struct {
	cfg config.MACDConfig
}

func NewMACDStrategy(cfg config.MACDConfig) *MACDStrategy {
	return &MACDStrategy{cfg: cfg}
}

func (s *MACDStrategy) Name() string      { return "macd_strategy" }
func (s *MACDStrategy) Timeframe() string { return s.cfg.Timeframe }

func (s *MACDStrategy) Evaluate(candles []exchange.Candle) (*Signal, error) {
	required := s.cfg.SlowPeriod + s.cfg.SignalPeriod + 1
	if len(candles) < required {
		return nil, fmt.Errorf("%w: macd needs %d candles, have %d",
			indicator.ErrInsufficientData, required, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	macd, signalLine, _ := indicator.MACDSeries(closes, s.cfg.FastPeriod, s.cfg.SlowPeriod, s.cfg.SignalPeriod)

	last := len(macd) - 1
	curDiff := macd[last] - signalLine[last]
	prevDiff := macd[last-1] - signalLine[last-1]
	if math.IsNaN(curDiff) || math.IsNaN(prevDiff) {
		return nil, nil
	}

	bar := candles[last]
	switch {
	case prevDiff < 0 && curDiff > 0:
		return &Signal{
			Type:      SignalBuy,
			Price:     bar.Close,
			Timestamp: bar.CloseTime,
			Strategy:  s.Name(),
			Reason:    fmt.Sprintf("MACD crossed above signal (%.4f -> %.4f)", prevDiff, curDiff),
		}, nil
	case prevDiff > 0 && curDiff < 0:
		return &Signal{
			Type:      SignalSell,
			Price:     bar.Close,
			Timestamp: bar.CloseTime,
			Strategy:  s.Name(),
			Reason:    fmt.Sprintf("MACD crossed below signal (%.4f -> %.4f)", prevDiff, curDiff),
		}, nil
	}
	return nil, nil
}
