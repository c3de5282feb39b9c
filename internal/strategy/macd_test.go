package strategy

import (
	"testing"

	"broski-bot/config"
)

func macdConfig() config.MACDConfig {
	return config.MACDConfig{
		Timeframe:    "15m",
		FastPeriod:   12,
		SlowPeriod:   26,
		SignalPeriod: 9,
	}
}

// TestMACDCrossingFiresOnce verifies a V-shaped series produces exactly one
// buy across sliding evaluations and nothing re-fires afterwards
func TestMACDCrossingFiresOnce(t *testing.T) {
	s := NewMACDStrategy(macdConfig())

	closes := make([]float64, 0, 120)
	price := 200.0
	for i := 0; i < 60; i++ {
		closes = append(closes, price)
		price -= 1
	}
	for i := 0; i < 60; i++ {
		closes = append(closes, price)
		price += 1.5
	}
	candles := candlesFromCloses(closes)

	var buys, sells int
	for end := 40; end <= len(candles); end++ {
		sig, err := s.Evaluate(candles[:end])
		if err != nil {
			t.Fatalf("window %d: unexpected error: %v", end, err)
		}
		if sig == nil {
			continue
		}
		switch sig.Type {
		case SignalBuy:
			buys++
		case SignalSell:
			sells++
		}
	}

	if buys != 1 {
		t.Errorf("expected exactly one buy across the recovery, got %d", buys)
	}
	if sells != 0 {
		t.Errorf("expected no sells on a V-shaped series, got %d", sells)
	}
}

// TestMACDDowntrendNeverBuys verifies a steady decline produces no buy
func TestMACDDowntrendNeverBuys(t *testing.T) {
	s := NewMACDStrategy(macdConfig())

	closes := make([]float64, 120)
	price := 300.0
	for i := range closes {
		closes[i] = price
		price *= 0.995
	}
	candles := candlesFromCloses(closes)

	for end := 40; end <= len(candles); end++ {
		sig, err := s.Evaluate(candles[:end])
		if err != nil {
			t.Fatalf("window %d: unexpected error: %v", end, err)
		}
		if sig != nil && sig.Type == SignalBuy {
			t.Fatalf("window %d: buy signal in a steady downtrend", end)
		}
	}
}

// TestMACDEqualityIsNotACrossing verifies a flat stretch followed by a rise
// never buys: the lines must strictly cross, not depart from equality
func TestMACDEqualityIsNotACrossing(t *testing.T) {
	s := NewMACDStrategy(macdConfig())

	closes := make([]float64, 0, 120)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	price := 100.0
	for i := 0; i < 60; i++ {
		price += 1
		closes = append(closes, price)
	}
	candles := candlesFromCloses(closes)

	for end := 40; end <= len(candles); end++ {
		sig, err := s.Evaluate(candles[:end])
		if err != nil {
			t.Fatalf("window %d: unexpected error: %v", end, err)
		}
		if sig != nil && sig.Type == SignalBuy {
			t.Fatalf("window %d: buy fired without a strict down-to-up cross", end)
		}
	}
}

// TestMACDInsufficientData verifies short history errors out
func TestMACDInsufficientData(t *testing.T) {
	s := NewMACDStrategy(macdConfig())

	sig, err := s.Evaluate(candlesFromCloses(make([]float64, 20)))
	if err == nil {
		t.Fatal("expected error on insufficient data")
	}
	if sig != nil {
		t.Error("expected nil signal with error")
	}
}
