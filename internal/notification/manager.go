// Package notification fans trading events out to the configured messaging
// providers. Delivery failures are logged and never propagate into the
// trading loop.
package notification

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"broski-bot/config"
	"broski-bot/internal/ledger"
	"broski-bot/internal/risk"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal     NotificationType = "signal"
	NotifyTradeOpen  NotificationType = "trade_open"
	NotifyTradeClose NotificationType = "trade_close"
	NotifyError      NotificationType = "error"
	NotifyInfo       NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Price      float64
	PnL        float64
	PnLPercent float64
	Timestamp  time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
	logger    zerolog.Logger
}

// NewManager builds a manager with the providers enabled in config.
func NewManager(cfg config.NotificationConfig, logger zerolog.Logger) *Manager {
	m := &Manager{enabled: cfg.Enabled, logger: logger}
	m.AddNotifier(NewTelegramNotifier(cfg.Telegram))
	m.AddNotifier(NewDiscordNotifier(cfg.Discord))
	return m
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers the notification to every enabled provider. Failures are
// logged per provider; the call itself never fails.
func (m *Manager) Send(n *Notification) {
	if !m.enabled {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	for _, notifier := range m.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(n); err != nil {
			m.logger.Warn().Err(err).Str("provider", notifier.Name()).Msg("notification failed")
		}
	}
}

// SendSignal announces an approved trading signal.
func (m *Manager) SendSignal(sig *risk.AdjustedSignal, pair string) {
	emoji := "🟢"
	if sig.Type == "sell" {
		emoji = "🔴"
	}
	m.Send(&Notification{
		Type:   NotifySignal,
		Title:  fmt.Sprintf("%s Signal: %s", emoji, pair),
		Symbol: pair,
		Price:  sig.Price,
		Message: fmt.Sprintf("%s %s @ %.4f\nSize: %.2f | SL: %.4f | TP: %.4f\n%s",
			sig.Type, pair, sig.Price, sig.PositionSize, sig.StopLoss, sig.TakeProfit, sig.Reason),
	})
}

// SendTradeOpen announces an executed trade.
func (m *Manager) SendTradeOpen(t *ledger.Trade, pair string) {
	title := fmt.Sprintf("📈 Trade Opened: %s", pair)
	if t.Simulated {
		title = fmt.Sprintf("📋 Simulated Trade: %s", pair)
	}
	m.Send(&Notification{
		Type:   NotifyTradeOpen,
		Title:  title,
		Symbol: pair,
		Price:  t.Price,
		Message: fmt.Sprintf("%s %s\nPrice: %.4f\nAmount: %.8f\nStrategy: %s",
			t.Side, pair, t.Price, t.Amount, t.Strategy),
	})
}

// SendTradeClose announces a closed trade with its P&L.
func (m *Manager) SendTradeClose(t *ledger.Trade, pair, reason string) {
	if t.PnL == nil || t.ClosePrice == nil {
		return
	}
	emoji := "✅"
	if *t.PnL < 0 {
		emoji = "❌"
	}
	m.Send(&Notification{
		Type:       NotifyTradeClose,
		Title:      fmt.Sprintf("%s Trade Closed: %s", emoji, pair),
		Symbol:     pair,
		Price:      *t.ClosePrice,
		PnL:        *t.PnL,
		PnLPercent: *t.PnLPct,
		Message: fmt.Sprintf("Entry: %.4f -> Exit: %.4f\nP&L: %.4f (%.2f%%)\nReason: %s",
			t.Price, *t.ClosePrice, *t.PnL, *t.PnLPct, reason),
	})
}

// SendError announces a pipeline error.
func (m *Manager) SendError(title, message string) {
	m.Send(&Notification{
		Type:    NotifyError,
		Title:   fmt.Sprintf("⚠️ %s", title),
		Message: message,
	})
}

// SendStatus announces lifecycle changes (started, stopped, emergency kill).
func (m *Manager) SendStatus(title, message string) {
	m.Send(&Notification{
		Type:    NotifyInfo,
		Title:   title,
		Message: message,
	})
}
