// Package bot runs the trading loop: fetch market data, evaluate the active
// strategy, gate signals through risk, execute, record, and watch open
// positions for exits. The loop is single-threaded; one cycle finishes before
// the next starts.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"broski-bot/config"
	"broski-bot/internal/events"
	"broski-bot/internal/exchange"
	"broski-bot/internal/execution"
	"broski-bot/internal/ledger"
	"broski-bot/internal/market"
	"broski-bot/internal/notification"
	"broski-bot/internal/risk"
	"broski-bot/internal/strategy"
)

const errorBackoff = 60 * time.Second

// candleWindow is how much history each evaluation sees. Enough for the
// slowest indicator (50-bar MA) plus warmup.
const candleWindow = 100

// Bot wires the pipeline together and owns the trading loop.
type Bot struct {
	cfg        *config.Config
	configPath string

	client   exchange.ExchangeClient
	provider *market.Provider
	strat    strategy.Strategy
	riskMgr  *risk.Manager
	gateway  *execution.Gateway
	book     *ledger.Ledger
	notifier *notification.Manager
	bus      *events.EventBus
	logger   zerolog.Logger

	cancel context.CancelFunc
}

// Deps are the constructed pipeline components the bot runs.
type Deps struct {
	Client   exchange.ExchangeClient
	Provider *market.Provider
	Strategy strategy.Strategy
	Risk     *risk.Manager
	Gateway  *execution.Gateway
	Ledger   *ledger.Ledger
	Notifier *notification.Manager
	Bus      *events.EventBus
}

func New(cfg *config.Config, configPath string, deps Deps, logger zerolog.Logger) *Bot {
	return &Bot{
		cfg:        cfg,
		configPath: configPath,
		client:     deps.Client,
		provider:   deps.Provider,
		strat:      deps.Strategy,
		riskMgr:    deps.Risk,
		gateway:    deps.Gateway,
		book:       deps.Ledger,
		notifier:   deps.Notifier,
		bus:        deps.Bus,
		logger:     logger,
	}
}

// Run executes the trading loop until ctx is canceled. Cycle failures back
// off for a minute and the loop continues; it never dies on an error.
func (b *Bot) Run(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	b.recoverState()

	b.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"strategy": b.strat.Name(),
		"pair":     b.cfg.Trading.Pair(),
	}})
	b.notifier.SendStatus("🤖 Bot started",
		fmt.Sprintf("Trading %s with %s", b.cfg.Trading.Pair(), b.strat.Name()))
	b.logger.Info().
		Str("pair", b.cfg.Trading.Pair()).
		Str("strategy", b.strat.Name()).
		Bool("auto_trade", b.cfg.Trading.AutoTrade).
		Msg("trading loop starting")

	interval := time.Duration(b.cfg.Trading.TradeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	for {
		wait := interval
		if err := b.safeCycle(); err != nil {
			b.logger.Error().Err(err).Msg("trading cycle failed")
			b.notifier.SendError("Trading cycle failed", err.Error())
			b.bus.Publish(events.Event{Type: events.EventError, Data: map[string]interface{}{
				"error": err.Error(),
			}})
			wait = errorBackoff
		}

		select {
		case <-ctx.Done():
			b.bus.Publish(events.Event{Type: events.EventBotStopped})
			b.notifier.SendStatus("🛑 Bot stopped", "Trading loop shut down")
			b.logger.Info().Msg("trading loop stopped")
			return
		case <-time.After(wait):
		}
	}
}

// Stop cancels the trading loop.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// safeCycle runs one cycle with panic recovery, converting panics to errors
// so the loop survives them.
func (b *Bot) safeCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return b.runCycle()
}

// runCycle is one pass of the pipeline.
func (b *Bot) runCycle() error {
	symbol := b.cfg.Trading.Symbol()

	b.updatePortfolio(symbol)
	b.monitorPositions(symbol)

	candles := b.provider.GetCandles(symbol, b.strat.Timeframe(), candleWindow)
	if len(candles) == 0 {
		return fmt.Errorf("no candle data for %s %s", symbol, b.strat.Timeframe())
	}

	sig, err := b.strat.Evaluate(candles)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", b.strat.Name(), err)
	}
	if sig == nil {
		b.logger.Debug().Msg("no signal this cycle")
		return nil
	}

	b.bus.Publish(events.Event{Type: events.EventSignalGenerated, Data: map[string]interface{}{
		"type":     string(sig.Type),
		"price":    sig.Price,
		"strategy": sig.Strategy,
		"reason":   sig.Reason,
	}})
	b.logger.Info().
		Str("type", string(sig.Type)).
		Float64("price", sig.Price).
		Str("reason", sig.Reason).
		Msg("signal generated")

	if sig.Type == strategy.SignalSell {
		return b.handleSellSignal(sig, symbol)
	}

	// One position per strategy and symbol; a second buy waits for the
	// first to close.
	if b.riskMgr.HasPositionFor(sig.Strategy, symbol) {
		b.logger.Info().Msg("buy signal skipped, position already open")
		return nil
	}

	approved := b.riskMgr.FilterSignals([]*strategy.Signal{sig})
	if len(approved) == 0 {
		return nil
	}

	for _, adj := range approved {
		b.notifier.SendSignal(adj, b.cfg.Trading.Pair())
		if err := b.executeAndRecord(adj, symbol); err != nil {
			return err
		}
	}
	return nil
}

// executeAndRecord runs one approved signal through the gateway and books
// the outcome.
func (b *Bot) executeAndRecord(adj *risk.AdjustedSignal, symbol string) error {
	trade := b.gateway.ExecuteTrade(adj)
	if err := b.book.RecordTrade(trade); err != nil {
		return fmt.Errorf("recording trade: %w", err)
	}

	if !trade.Success {
		b.notifier.SendError("Trade rejected",
			fmt.Sprintf("%s: %s", trade.ErrorType, trade.Error))
		return nil
	}

	b.bus.Publish(events.Event{Type: events.EventOrderPlaced, Data: map[string]interface{}{
		"trade_id": trade.ID,
		"order_id": trade.OrderID,
		"side":     trade.Side,
	}})
	b.notifier.SendTradeOpen(trade, b.cfg.Trading.Pair())

	if trade.Status == ledger.StatusOpen {
		b.riskMgr.AddPosition(risk.Position{
			TradeID:    trade.ID,
			Symbol:     symbol,
			Side:       trade.Side,
			EntryPrice: trade.Price,
			Amount:     trade.Amount,
			Value:      trade.Value,
			Strategy:   trade.Strategy,
			OpenedAt:   time.UnixMilli(trade.Timestamp),
		})
		b.bus.Publish(events.Event{Type: events.EventTradeOpened, Data: map[string]interface{}{
			"trade_id": trade.ID,
		}})
	}
	return nil
}

// handleSellSignal closes the strategy's open position, if any. With no
// position there is nothing to sell on a spot pair. The sell still runs
// through the risk manager so it consumes a daily-trade slot.
func (b *Bot) handleSellSignal(sig *strategy.Signal, symbol string) error {
	for _, pos := range b.riskMgr.OpenPositions() {
		if pos.Strategy != sig.Strategy || pos.Symbol != symbol {
			continue
		}
		if approved := b.riskMgr.FilterSignals([]*strategy.Signal{sig}); len(approved) == 0 {
			return nil
		}
		return b.closePosition(pos, sig.Price, sig.Reason)
	}
	b.logger.Info().Msg("sell signal with no open position, skipping")
	return nil
}

// monitorPositions checks open positions against their exit thresholds.
func (b *Bot) monitorPositions(symbol string) {
	positions := b.riskMgr.OpenPositions()
	if len(positions) == 0 {
		return
	}

	price := b.provider.GetPrice(symbol)
	if price <= 0 {
		return
	}

	for _, pos := range positions {
		if pos.Symbol != symbol {
			continue
		}
		if shouldClose, reason := b.riskMgr.ShouldClosePosition(pos, price); shouldClose {
			if err := b.closePosition(pos, price, reason); err != nil {
				b.logger.Error().Err(err).Str("trade_id", pos.TradeID).Msg("position close failed")
			}
		}
	}
}

// closePosition submits the opposing order and closes the ledger trade by its
// ID.
func (b *Bot) closePosition(pos risk.Position, price float64, reason string) error {
	if b.cfg.Trading.AutoTrade {
		side := "SELL"
		if pos.Side == "sell" {
			side = "BUY"
		}
		if _, err := b.client.PlaceMarketOrder(pos.Symbol, side, pos.Amount, uuid.NewString()); err != nil {
			return fmt.Errorf("closing position %s: %w", pos.TradeID, err)
		}
	}

	trade, err := b.book.CloseTrade(pos.TradeID, price, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("booking close of %s: %w", pos.TradeID, err)
	}
	b.riskMgr.RemovePosition(pos.TradeID)

	b.bus.Publish(events.Event{Type: events.EventTradeClosed, Data: map[string]interface{}{
		"trade_id": trade.ID,
		"pnl":      *trade.PnL,
		"reason":   reason,
	}})
	b.notifier.SendTradeClose(trade, b.cfg.Trading.Pair(), reason)
	return nil
}

// updatePortfolio refreshes the balance the risk manager uses for exposure
// checks. Valued in quote currency at the current price.
func (b *Bot) updatePortfolio(symbol string) {
	bal := b.provider.GetBalance(b.cfg.Trading.BaseSymbol, b.cfg.Trading.QuoteSymbol)
	if bal == nil {
		return
	}

	total := bal.Quote.Total()
	if base := bal.Base.Total(); base > 0 {
		if price := b.provider.GetPrice(symbol); price > 0 {
			total += base * price
		}
	}
	b.riskMgr.UpdatePortfolio(total)
}

// recoverState rebuilds the risk manager's position view from the ledger's
// open trades after a restart.
func (b *Bot) recoverState() {
	for _, t := range b.book.OpenTrades() {
		b.riskMgr.AddPosition(risk.Position{
			TradeID:    t.ID,
			Symbol:     t.Symbol,
			Side:       t.Side,
			EntryPrice: t.Price,
			Amount:     t.Amount,
			Value:      t.Value,
			Strategy:   t.Strategy,
			OpenedAt:   time.UnixMilli(t.Timestamp),
		})
	}
	if n := len(b.book.OpenTrades()); n > 0 {
		b.logger.Info().Int("positions", n).Msg("recovered open positions from ledger")
	}
}

// EmergencyKill cancels every open order, persists auto_trade=false so a
// restart stays safe, and stops the loop.
func (b *Bot) EmergencyKill(reason string) error {
	symbol := b.cfg.Trading.Symbol()
	b.logger.Warn().Str("reason", reason).Msg("emergency kill triggered")

	var problems []string
	if err := b.client.CancelAllOrders(symbol); err != nil {
		problems = append(problems, fmt.Sprintf("cancel orders: %v", err))
	}

	b.cfg.Trading.AutoTrade = false
	b.gateway.SetAutoTrade(false)
	if err := b.cfg.Save(b.configPath); err != nil {
		problems = append(problems, fmt.Sprintf("persist config: %v", err))
	}

	b.bus.Publish(events.Event{Type: events.EventEmergencyKill, Data: map[string]interface{}{
		"reason": reason,
	}})
	b.notifier.SendStatus("🚨 EMERGENCY KILL", reason)
	b.Stop()

	if len(problems) > 0 {
		return fmt.Errorf("emergency kill incomplete: %s", strings.Join(problems, "; "))
	}
	return nil
}
