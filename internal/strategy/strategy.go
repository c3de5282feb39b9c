// Package strategy turns indicator series into trade signals. Strategies are
// edge-triggered: they only signal on a crossing at the most recent bar, so a
// condition that merely persists produces nothing.
package strategy

import "broski-bot/internal/exchange"

// SignalType is the direction of a signal.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Signal is an actionable trade recommendation produced by a strategy.
type Signal struct {
	Type      SignalType `json:"type"`
	Price     float64    `json:"price"`
	Timestamp int64      `json:"timestamp"`
	Strategy  string     `json:"strategy"`
	Reason    string     `json:"reason"`

	// Strength in [0,1] scales position sizing. Nil means the strategy does
	// not grade its signals and sizing uses full strength.
	Strength *float64 `json:"strength,omitempty"`

	// Confirmation bookkeeping, populated by graded strategies.
	Confirmations       int      `json:"confirmations,omitempty"`
	ConfirmationDetails []string `json:"confirmation_details,omitempty"`
}

// Strategy evaluates a candle window and returns at most one signal. A nil
// signal with nil error means no crossing occurred this cycle.
type Strategy interface {
	Name() string
	Timeframe() string
	Evaluate(candles []exchange.Candle) (*Signal, error)
}

func floatPtr(v float64) *float64 { return &v }
