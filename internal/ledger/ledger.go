// Package ledger records executed trades, persists them, and keeps
// performance metrics current. Closes are matched to opens by explicit trade
// ID; attribute matching is deliberately not supported because duplicate-sized
// positions make it ambiguous.
package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Trade statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Trade is one executed (or attempted) trade.
type Trade struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id,omitempty"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // buy or sell
	Amount        float64 `json:"amount"`
	Price         float64 `json:"price"`
	Value         float64 `json:"value"` // amount × price in quote currency
	Timestamp     int64   `json:"timestamp"`
	Status        string  `json:"status"` // open or closed
	Strategy      string  `json:"strategy"`
	Simulated     bool    `json:"simulated"`
	Success       bool    `json:"success"`
	ErrorType     string  `json:"error_type,omitempty"`
	Error         string  `json:"error,omitempty"`

	ClosePrice *float64 `json:"close_price,omitempty"`
	CloseTime  *int64   `json:"close_time,omitempty"`
	PnL        *float64 `json:"pnl,omitempty"`
	PnLPct     *float64 `json:"pnl_pct,omitempty"`

	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// StrategyMetrics is the per-strategy performance breakdown.
type StrategyMetrics struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// EquityPoint is one step of the cumulative P&L curve.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// Metrics summarizes ledger performance. All P&L figures cover closed,
// successful trades only.
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	OpenTrades    int     `json:"open_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	FailedTrades  int     `json:"failed_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	TotalPnL      float64 `json:"total_pnl"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`

	ByStrategy map[string]StrategyMetrics `json:"by_strategy"`
}

// Ledger is the in-memory trade book backed by a Store.
type Ledger struct {
	mu      sync.RWMutex
	trades  []*Trade
	byID    map[string]*Trade
	store   Store
	metrics Metrics
	logger  zerolog.Logger
}

// New loads existing history from the store and computes initial metrics.
func New(store Store, logger zerolog.Logger) (*Ledger, error) {
	trades, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading trade history: %w", err)
	}

	l := &Ledger{
		trades: trades,
		byID:   make(map[string]*Trade, len(trades)),
		store:  store,
		logger: logger,
	}
	for _, t := range trades {
		l.byID[t.ID] = t
	}
	l.recompute()
	return l, nil
}

// RecordTrade appends a trade to the book and persists it. Trades without an
// ID get one assigned.
func (l *Ledger) RecordTrade(t *Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := l.byID[t.ID]; exists {
		return fmt.Errorf("trade %s already recorded", t.ID)
	}

	l.trades = append(l.trades, t)
	l.byID[t.ID] = t
	l.recompute()

	if err := l.store.Append(t); err != nil {
		return fmt.Errorf("persisting trade %s: %w", t.ID, err)
	}

	l.logger.Info().
		Str("trade_id", t.ID).
		Str("side", t.Side).
		Str("strategy", t.Strategy).
		Float64("value", t.Value).
		Bool("simulated", t.Simulated).
		Msg("trade recorded")
	return nil
}

// CloseTrade marks the identified open trade closed at closePrice, computes
// its P&L, and persists the update.
func (l *Ledger) CloseTrade(id string, closePrice float64, closeTime int64) (*Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("trade %s not found", id)
	}
	if t.Status != StatusOpen {
		return nil, fmt.Errorf("trade %s is not open (status %s)", id, t.Status)
	}

	var pnl, pnlPct float64
	if t.Side == "buy" {
		pnl = (closePrice - t.Price) * t.Amount
		pnlPct = (closePrice - t.Price) / t.Price * 100
	} else {
		pnl = (t.Price - closePrice) * t.Amount
		pnlPct = (t.Price - closePrice) / t.Price * 100
	}

	t.Status = StatusClosed
	t.ClosePrice = &closePrice
	t.CloseTime = &closeTime
	t.PnL = &pnl
	t.PnLPct = &pnlPct
	l.recompute()

	if err := l.store.Update(t); err != nil {
		return nil, fmt.Errorf("persisting close of trade %s: %w", id, err)
	}

	l.logger.Info().
		Str("trade_id", id).
		Float64("close_price", closePrice).
		Float64("pnl", pnl).
		Float64("pnl_pct", pnlPct).
		Msg("trade closed")
	return t, nil
}

// OpenTrades returns the currently open, successful trades.
func (l *Ledger) OpenTrades() []*Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var open []*Trade
	for _, t := range l.trades {
		if t.Success && t.Status == StatusOpen {
			open = append(open, t)
		}
	}
	return open
}

// Trade returns the trade with the given ID, or nil.
func (l *Ledger) Trade(id string) *Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byID[id]
}

// RecentTrades returns up to n most recent trades, newest last.
func (l *Ledger) RecentTrades(n int) []*Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.trades) {
		n = len(l.trades)
	}
	out := make([]*Trade, n)
	copy(out, l.trades[len(l.trades)-n:])
	return out
}

// Metrics returns the current performance snapshot.
func (l *Ledger) Metrics() Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.metrics
}

// EquityCurve returns the cumulative P&L over closed trades in close order.
func (l *Ledger) EquityCurve() []EquityPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var curve []EquityPoint
	var equity float64
	for _, t := range l.closedInOrder() {
		equity += *t.PnL
		ts := t.Timestamp
		if t.CloseTime != nil {
			ts = *t.CloseTime
		}
		curve = append(curve, EquityPoint{Timestamp: ts, Equity: equity})
	}
	return curve
}

// closedInOrder returns closed successful trades in recording order. Callers
// must hold the lock.
func (l *Ledger) closedInOrder() []*Trade {
	var closed []*Trade
	for _, t := range l.trades {
		if t.Success && t.Status == StatusClosed && t.PnL != nil {
			closed = append(closed, t)
		}
	}
	return closed
}

// recompute rebuilds the metrics snapshot. Callers must hold the lock.
func (l *Ledger) recompute() {
	m := Metrics{ByStrategy: make(map[string]StrategyMetrics)}

	for _, t := range l.trades {
		if !t.Success {
			m.FailedTrades++
			continue
		}
		m.TotalTrades++
		if t.Status == StatusOpen {
			m.OpenTrades++
		}
	}

	closed := l.closedInOrder()
	m.ClosedTrades = len(closed)

	var peak, equity float64
	for _, t := range closed {
		pnl := *t.PnL
		m.TotalPnL += pnl

		sm := m.ByStrategy[t.Strategy]
		sm.Trades++
		sm.PnL += pnl

		if pnl > 0 {
			m.WinningTrades++
			m.GrossProfit += pnl
			sm.Wins++
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		} else {
			m.LosingTrades++
			m.GrossLoss += pnl
			sm.Losses++
			if pnl < m.LargestLoss {
				m.LargestLoss = pnl
			}
		}
		if sm.Trades > 0 {
			sm.WinRate = float64(sm.Wins) / float64(sm.Trades) * 100
		}
		m.ByStrategy[t.Strategy] = sm

		// Peak-to-trough drawdown on the cumulative P&L curve.
		equity += pnl
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades) * 100
	}
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss != 0 {
		m.ProfitFactor = m.GrossProfit / math.Abs(m.GrossLoss)
	} else if m.GrossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	l.metrics = m
}
