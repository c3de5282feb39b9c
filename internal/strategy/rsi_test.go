package strategy

import (
	"testing"

	"broski-bot/config"
	"broski-bot/internal/exchange"
)

func candlesFromCloses(closes []float64) []exchange.Candle {
	candles := make([]exchange.Candle, len(closes))
	for i, c := range closes {
		candles[i] = exchange.Candle{
			OpenTime:  int64(i) * 60000,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
			CloseTime: int64(i+1)*60000 - 1,
		}
	}
	return candles
}

func rsiConfig() config.RSIConfig {
	return config.RSIConfig{
		Timeframe:     "5m",
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// declineThenRecover builds a steady decline (RSI pinned at 0) followed by
// one strong up bar that lifts the RSI back above the oversold line.
func declineThenRecover() []float64 {
	closes := make([]float64, 20)
	price := 100.0
	for i := 0; i < 19; i++ {
		closes[i] = price
		price -= 1
	}
	closes[19] = closes[18] + 10
	return closes
}

// TestRSIBuyOnRecovery verifies a buy fires exactly when the RSI crosses up
// through the oversold line
func TestRSIBuyOnRecovery(t *testing.T) {
	s := NewRSIStrategy(rsiConfig())
	candles := candlesFromCloses(declineThenRecover())

	// One bar before the recovery: still oversold, no signal.
	sig, err := s.Evaluate(candles[:19])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected no signal while oversold, got %+v", sig)
	}

	sig, err = s.Evaluate(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatal("expected buy signal at the recovery bar")
	}
	if sig.Type != SignalBuy {
		t.Errorf("expected buy, got %s", sig.Type)
	}
	if sig.Price != candles[19].Close {
		t.Errorf("signal price %f, want last close %f", sig.Price, candles[19].Close)
	}
	if sig.Strategy != "rsi_strategy" {
		t.Errorf("unexpected strategy name %q", sig.Strategy)
	}
}

// TestRSINoRepeatSignal verifies a persisting condition does not re-trigger
func TestRSINoRepeatSignal(t *testing.T) {
	s := NewRSIStrategy(rsiConfig())

	closes := declineThenRecover()
	closes = append(closes, closes[len(closes)-1]+0.5) // RSI stays above 30

	sig, err := s.Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal after the crossing bar passed, got %+v", sig)
	}
}

// TestRSISellOnDropFromOverbought verifies the sell side of the band logic
func TestRSISellOnDropFromOverbought(t *testing.T) {
	s := NewRSIStrategy(rsiConfig())

	closes := make([]float64, 20)
	price := 100.0
	for i := 0; i < 19; i++ {
		closes[i] = price
		price += 1 // RSI pinned at 100
	}
	closes[19] = closes[18] - 10

	sig, err := s.Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatal("expected sell signal when RSI drops out of overbought")
	}
	if sig.Type != SignalSell {
		t.Errorf("expected sell, got %s", sig.Type)
	}
}

// TestRSIInsufficientData verifies short history errors instead of guessing
func TestRSIInsufficientData(t *testing.T) {
	s := NewRSIStrategy(rsiConfig())

	sig, err := s.Evaluate(candlesFromCloses([]float64{100, 101, 102}))
	if err == nil {
		t.Fatal("expected error on insufficient data")
	}
	if sig != nil {
		t.Error("expected nil signal with error")
	}
}

// TestRSIFlatMarket verifies no signal on flat prices
func TestRSIFlatMarket(t *testing.T) {
	s := NewRSIStrategy(rsiConfig())

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	sig, err := s.Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal on flat market, got %+v", sig)
	}
}
