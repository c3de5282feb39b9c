// Package risk gates signals against position, frequency and exposure limits,
// sizes approved positions, and decides when open positions should close.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"broski-bot/config"
	"broski-bot/internal/strategy"
)

// AdjustedSignal is a strategy signal that passed risk checks, annotated with
// sizing and exit levels.
type AdjustedSignal struct {
	strategy.Signal
	PositionSize float64 `json:"position_size"` // quote currency
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
}

// Position is an open position the manager tracks for exposure and exit
// decisions.
type Position struct {
	TradeID    string
	Symbol     string
	Side       string
	EntryPrice float64
	Amount     float64
	Value      float64
	Strategy   string
	OpenedAt   time.Time
}

// Metrics is a point-in-time view of the manager's risk state.
type Metrics struct {
	OpenPositions      int     `json:"open_positions"`
	MaxOpenPositions   int     `json:"max_open_positions"`
	DailyTrades        int     `json:"daily_trades"`
	MaxDailyTrades     int     `json:"max_daily_trades"`
	AccountBalance     float64 `json:"account_balance"`
	CurrentExposure    float64 `json:"current_exposure"`
	ExposurePercentage float64 `json:"exposure_percentage"`
	MaxExposure        float64 `json:"max_exposure_percentage"`
}

// StateStore persists the sliding daily-trade window across restarts. The
// Redis implementation is optional; a nil store disables persistence.
type StateStore interface {
	LoadDailyTrades() ([]time.Time, error)
	SaveDailyTrades(times []time.Time) error
}

// Manager applies the configured risk limits. Safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	cfg        config.RiskConfig
	trading    config.TradingConfig
	logger     zerolog.Logger
	stateStore StateStore

	dailyTrades    []time.Time // sliding 24h window
	openPositions  map[string]Position
	accountBalance float64
	exposure       float64

	now func() time.Time
}

func NewManager(cfg config.RiskConfig, trading config.TradingConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		trading:       trading,
		logger:        logger,
		openPositions: make(map[string]Position),
		now:           time.Now,
	}
}

// SetStateStore attaches a persistence backend and restores the daily-trade
// window from it.
func (m *Manager) SetStateStore(store StateStore) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateStore = store
	if store == nil {
		return
	}
	times, err := store.LoadDailyTrades()
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not restore daily trade window")
		return
	}
	m.dailyTrades = times
	m.pruneDailyTrades()
}

// CanOpenNewPosition reports whether a new position is allowed right now, and
// why not when it isn't.
func (m *Manager) CanOpenNewPosition() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canOpenLocked()
}

func (m *Manager) canOpenLocked() (bool, string) {
	if len(m.openPositions) >= m.cfg.MaxOpenPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", m.cfg.MaxOpenPositions)
	}

	m.pruneDailyTrades()
	if len(m.dailyTrades) >= m.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached (%d in 24h)", m.cfg.MaxDailyTrades)
	}

	if m.accountBalance > 0 {
		pct := m.exposure / m.accountBalance * 100
		if pct >= m.cfg.MaxExposurePercentage {
			return false, fmt.Sprintf("exposure limit reached (%.1f%% of balance)", pct)
		}
	}
	return true, ""
}

// CalculatePositionSize returns the position size in quote currency for a
// signal of the given strength. Nil strength means full size. The result is
// base × (0.5 + 0.5×strength), capped at max_position_size.
func (m *Manager) CalculatePositionSize(strength *float64) float64 {
	s := 1.0
	if strength != nil {
		s = *strength
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
	}

	size := m.trading.TradeAmount * (0.5 + 0.5*s)
	if size > m.trading.MaxPositionSize {
		size = m.trading.MaxPositionSize
	}
	return size
}

// FilterSignals returns the signals allowed to execute, sized and annotated
// with stop-loss and take-profit levels. Only buys are gated by the limits,
// but every approved signal consumes a slot in the daily window; malformed
// signals are dropped.
func (m *Manager) FilterSignals(signals []*strategy.Signal) []*AdjustedSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var approved []*AdjustedSignal
	for _, sig := range signals {
		if sig == nil || sig.Price <= 0 {
			m.logger.Warn().Msg("dropping malformed signal")
			continue
		}

		if sig.Type == strategy.SignalBuy {
			if ok, reason := m.canOpenLocked(); !ok {
				m.logger.Info().Str("reason", reason).Msg("buy signal blocked")
				continue
			}
		}

		adjusted := &AdjustedSignal{
			Signal:       *sig,
			PositionSize: m.CalculatePositionSize(sig.Strength),
		}
		adjusted.StopLoss, adjusted.TakeProfit = m.exitLevels(sig.Type, sig.Price)

		m.dailyTrades = append(m.dailyTrades, m.now())
		m.persistDailyTrades()
		approved = append(approved, adjusted)
	}
	return approved
}

// exitLevels computes SL/TP prices on the correct side of entry for the
// direction.
func (m *Manager) exitLevels(t strategy.SignalType, price float64) (stopLoss, takeProfit float64) {
	sl := m.cfg.StopLossPercentage / 100
	tp := m.cfg.TakeProfitPercentage / 100
	if t == strategy.SignalBuy {
		return price * (1 - sl), price * (1 + tp)
	}
	return price * (1 + sl), price * (1 - tp)
}

// ShouldClosePosition reports whether the position's unrealized P&L breached
// its stop-loss or take-profit threshold at the current price.
func (m *Manager) ShouldClosePosition(pos Position, currentPrice float64) (bool, string) {
	if currentPrice <= 0 || pos.EntryPrice <= 0 {
		return false, ""
	}

	var pnlPct float64
	if pos.Side == "buy" {
		pnlPct = (currentPrice - pos.EntryPrice) / pos.EntryPrice * 100
	} else {
		pnlPct = (pos.EntryPrice - currentPrice) / pos.EntryPrice * 100
	}

	switch {
	case pnlPct <= -m.cfg.StopLossPercentage:
		return true, fmt.Sprintf("stop loss hit (%.2f%%)", pnlPct)
	case pnlPct >= m.cfg.TakeProfitPercentage:
		return true, fmt.Sprintf("take profit hit (%.2f%%)", pnlPct)
	}
	return false, ""
}

// AddPosition registers an opened position.
func (m *Manager) AddPosition(pos Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions[pos.TradeID] = pos
	m.recalcExposure()
}

// RemovePosition drops a closed position.
func (m *Manager) RemovePosition(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.openPositions, tradeID)
	m.recalcExposure()
}

// OpenPositions returns a snapshot of the tracked positions.
func (m *Manager) OpenPositions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Position, 0, len(m.openPositions))
	for _, pos := range m.openPositions {
		out = append(out, pos)
	}
	return out
}

// HasPositionFor reports whether a position opened by the strategy for the
// symbol is already being tracked.
func (m *Manager) HasPositionFor(strategyName, symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range m.openPositions {
		if pos.Strategy == strategyName && pos.Symbol == symbol {
			return true
		}
	}
	return false
}

// UpdatePortfolio refreshes the account balance used for exposure checks.
func (m *Manager) UpdatePortfolio(accountBalance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountBalance = accountBalance
	m.recalcExposure()
}

// Metrics returns the current risk state.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneDailyTrades()
	metrics := Metrics{
		OpenPositions:    len(m.openPositions),
		MaxOpenPositions: m.cfg.MaxOpenPositions,
		DailyTrades:      len(m.dailyTrades),
		MaxDailyTrades:   m.cfg.MaxDailyTrades,
		AccountBalance:   m.accountBalance,
		CurrentExposure:  m.exposure,
		MaxExposure:      m.cfg.MaxExposurePercentage,
	}
	if m.accountBalance > 0 {
		metrics.ExposurePercentage = m.exposure / m.accountBalance * 100
	}
	return metrics
}

// recalcExposure sums open position values. Callers must hold the lock.
func (m *Manager) recalcExposure() {
	var total float64
	for _, pos := range m.openPositions {
		total += pos.Value
	}
	m.exposure = total
}

// pruneDailyTrades drops entries older than 24 hours. Callers must hold the
// lock.
func (m *Manager) pruneDailyTrades() {
	cutoff := m.now().Add(-24 * time.Hour)
	kept := m.dailyTrades[:0]
	for _, t := range m.dailyTrades {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.dailyTrades = kept
}

func (m *Manager) persistDailyTrades() {
	if m.stateStore == nil {
		return
	}
	if err := m.stateStore.SaveDailyTrades(m.dailyTrades); err != nil {
		m.logger.Warn().Err(err).Msg("could not persist daily trade window")
	}
}
