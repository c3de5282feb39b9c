// Package indicator computes full technical indicator series over candle
// history. Series align index-for-index with the input candles; positions
// before an indicator's lookback window is satisfied hold NaN.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"broski-bot/internal/exchange"
)

// ErrInsufficientData is returned when the candle history is shorter than an
// indicator's lookback window. No partial series are produced.
var ErrInsufficientData = errors.New("insufficient candle data")

// Params selects the lookback windows for Compute.
type Params struct {
	RSIPeriod      int
	FastPeriod     int
	SlowPeriod     int
	SignalPeriod   int
	MAFast         int
	MASlow         int
	VolumeLookback int
}

// Snapshot holds every indicator series computed for one candle window.
type Snapshot struct {
	Closes      []float64
	RSI         []float64
	MACDLine    []float64
	SignalLine  []float64
	Histogram   []float64
	MAFast      []float64
	MASlow      []float64
	VolumeRatio []float64
}

// Compute evaluates all configured indicators over the candles. It fails with
// ErrInsufficientData when the history cannot satisfy the largest window.
func Compute(candles []exchange.Candle, p Params) (*Snapshot, error) {
	required := p.RSIPeriod + 1
	if n := p.SlowPeriod + p.SignalPeriod + 1; n > required {
		required = n
	}
	if n := p.MASlow + 1; n > required {
		required = n
	}
	if n := p.VolumeLookback + 1; n > required {
		required = n
	}
	if len(candles) < required {
		return nil, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), required)
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	snap := &Snapshot{
		Closes: closes,
		RSI:    RSISeries(closes, p.RSIPeriod),
		MAFast: SMASeries(closes, p.MAFast),
		MASlow: SMASeries(closes, p.MASlow),
	}
	snap.MACDLine, snap.SignalLine, snap.Histogram = MACDSeries(closes, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
	snap.VolumeRatio = VolumeRatioSeries(volumes, p.VolumeLookback)
	return snap, nil
}

// RSISeries computes the relative strength index using rolling-mean averages
// of gains and losses over the last period deltas. When the average loss is
// zero the RSI is pinned at 100. The first period entries are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) < period+1 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(closes); i++ {
		var avgGain, avgLoss float64
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// EMASeries computes an exponential moving average with alpha = 2/(period+1).
// The first period entries are seeded with the simple mean of the first
// period values, then the recursion takes over.
func EMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// MACDSeries returns the MACD line (fast EMA − slow EMA), its signal line and
// the histogram.
func MACDSeries(closes []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine = EMASeries(macd, signal)

	histogram = make([]float64, len(closes))
	for i := range closes {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram
}

// SMASeries computes a simple moving average. The first period−1 entries are
// NaN.
func SMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// VolumeRatioSeries divides each volume by the rolling mean of the last
// lookback volumes (inclusive). Entries before the window is full are NaN.
func VolumeRatioSeries(volumes []float64, lookback int) []float64 {
	out := nanSlice(len(volumes))
	mean := SMASeries(volumes, lookback)
	for i := range volumes {
		if !math.IsNaN(mean[i]) && mean[i] != 0 {
			out[i] = volumes[i] / mean[i]
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
