package strategy

import (
	"fmt"
	"math"

	"broski-bot/config"
	"broski-bot/internal/exchange"
	"broski-bot/internal/indicator"
)

// HyperFocusStrategy uses an RSI band crossing as the primary trigger and
// grades it with up to three confirmations: a MACD cross, a moving-average
// cross in the same direction, and a volume spike. Strength is
// confirmations/3. With require_confirmation set, an unconfirmed trigger is
// discarded.
type HyperFocusStrategy struct {
	cfg config.HyperFocusConfig
}

func NewHyperFocusStrategy(cfg config.HyperFocusConfig) *HyperFocusStrategy {
	return &HyperFocusStrategy{cfg: cfg}
}

func (s *HyperFocusStrategy) Name() string      { return "hyperfocus_strategy" }
func (s *HyperFocusStrategy) Timeframe() string { return s.cfg.Timeframe }

func (s *HyperFocusStrategy) Evaluate(candles []exchange.Candle) (*Signal, error) {
	snap, err := indicator.Compute(candles, indicator.Params{
		RSIPeriod:      s.cfg.RSIPeriod,
		FastPeriod:     s.cfg.FastPeriod,
		SlowPeriod:     s.cfg.SlowPeriod,
		SignalPeriod:   s.cfg.SignalPeriod,
		MAFast:         s.cfg.MAFast,
		MASlow:         s.cfg.MASlow,
		VolumeLookback: s.cfg.VolumeLookback,
	})
	if err != nil {
		return nil, err
	}

	last := len(candles) - 1
	cur, prev := snap.RSI[last], snap.RSI[last-1]
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return nil, nil
	}

	var sigType SignalType
	var reason string
	switch {
	case prev < s.cfg.RSIOversold && cur >= s.cfg.RSIOversold:
		sigType = SignalBuy
		reason = fmt.Sprintf("RSI recovered from oversold (%.1f -> %.1f)", prev, cur)
	case prev > s.cfg.RSIOverbought && cur <= s.cfg.RSIOverbought:
		sigType = SignalSell
		reason = fmt.Sprintf("RSI dropped from overbought (%.1f -> %.1f)", prev, cur)
	default:
		return nil, nil
	}

	confirmations, details := s.confirm(sigType, snap, last)
	if s.cfg.RequireConfirmation && confirmations == 0 {
		return nil, nil
	}

	strength := math.Min(float64(confirmations)/3.0, 1.0)
	bar := candles[last]
	return &Signal{
		Type:                sigType,
		Price:               bar.Close,
		Timestamp:           bar.CloseTime,
		Strategy:            s.Name(),
		Reason:              reason,
		Strength:            floatPtr(strength),
		Confirmations:       confirmations,
		ConfirmationDetails: details,
	}, nil
}

// confirm counts same-bar crossings agreeing with the trigger direction. An
// indicator that crossed earlier and merely stays aligned does not count.
func (s *HyperFocusStrategy) confirm(sigType SignalType, snap *indicator.Snapshot, last int) (int, []string) {
	var count int
	var details []string
	prev := last - 1

	curDiff := snap.MACDLine[last] - snap.SignalLine[last]
	prevDiff := snap.MACDLine[prev] - snap.SignalLine[prev]
	if !math.IsNaN(curDiff) && !math.IsNaN(prevDiff) {
		switch {
		case sigType == SignalBuy && prevDiff < 0 && curDiff > 0:
			count++
			details = append(details, fmt.Sprintf("MACD crossed above signal (%.4f -> %.4f)", prevDiff, curDiff))
		case sigType == SignalSell && prevDiff > 0 && curDiff < 0:
			count++
			details = append(details, fmt.Sprintf("MACD crossed below signal (%.4f -> %.4f)", prevDiff, curDiff))
		}
	}

	curMA := snap.MAFast[last] - snap.MASlow[last]
	prevMA := snap.MAFast[prev] - snap.MASlow[prev]
	if !math.IsNaN(curMA) && !math.IsNaN(prevMA) {
		switch {
		case sigType == SignalBuy && prevMA < 0 && curMA > 0:
			count++
			details = append(details, fmt.Sprintf("fast MA crossed above slow (%.2f -> %.2f)", prevMA, curMA))
		case sigType == SignalSell && prevMA > 0 && curMA < 0:
			count++
			details = append(details, fmt.Sprintf("fast MA crossed below slow (%.2f -> %.2f)", prevMA, curMA))
		}
	}

	if ratio := snap.VolumeRatio[last]; !math.IsNaN(ratio) && ratio >= s.cfg.VolumeFactor {
		count++
		details = append(details, fmt.Sprintf("volume spike (%.2fx average)", ratio))
	}

	return count, details
}
