// Package execution turns approved signals into orders. Every attempt yields
// a trade record: failures come back as error-tagged records rather than
// bare errors, so the ledger keeps a complete account of what was tried.
package execution

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"broski-bot/internal/exchange"
	"broski-bot/internal/ledger"
	"broski-bot/internal/risk"
)

// Error types stamped onto failed trade records.
const (
	ErrorInsufficientFunds = "Insufficient funds"
	ErrorInvalidOrder      = "Invalid order"
	ErrorExecutionFailed   = "Execution failed"
)

// Gateway executes approved signals against the exchange, or simulates them
// when auto-trading is off.
type Gateway struct {
	client     exchange.ExchangeClient
	symbol     string
	autoTrade  bool
	marketInfo *exchange.MarketInfo
	logger     zerolog.Logger

	now func() time.Time
}

func NewGateway(client exchange.ExchangeClient, symbol string, autoTrade bool, logger zerolog.Logger) (*Gateway, error) {
	info, err := client.GetMarketInfo(symbol)
	if err != nil {
		return nil, fmt.Errorf("loading market info for %s: %w", symbol, err)
	}
	return &Gateway{
		client:     client,
		symbol:     symbol,
		autoTrade:  autoTrade,
		marketInfo: info,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetAutoTrade toggles live execution.
func (g *Gateway) SetAutoTrade(enabled bool) {
	g.autoTrade = enabled
}

// ExecuteTrade executes one approved signal and returns its trade record.
// Buys convert the quote-denominated position size into a base amount at the
// signal price; sells pass the base amount through. The record's Success
// field says whether the order went through.
func (g *Gateway) ExecuteTrade(sig *risk.AdjustedSignal) *ledger.Trade {
	side := string(sig.Type)

	var amount float64
	if sig.Type == "buy" {
		amount = sig.PositionSize / sig.Price
	} else {
		amount = sig.PositionSize
	}
	amount = g.roundAmount(amount)

	now := g.now()
	trade := &ledger.Trade{
		ID:            uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Symbol:        g.symbol,
		Side:          side,
		Amount:        amount,
		Price:         sig.Price,
		Value:         amount * sig.Price,
		Timestamp:     now.UnixMilli(),
		Strategy:      sig.Strategy,
		StopLoss:      sig.StopLoss,
		TakeProfit:    sig.TakeProfit,
	}

	if amount <= 0 || amount < g.marketInfo.MinAmount {
		trade.Status = ledger.StatusClosed
		trade.ErrorType = ErrorInvalidOrder
		trade.Error = fmt.Sprintf("amount %.8f below minimum %.8f", amount, g.marketInfo.MinAmount)
		return trade
	}

	if !g.autoTrade {
		trade.OrderID = fmt.Sprintf("simulated_%d", now.Unix())
		trade.Status = ledger.StatusClosed
		trade.Simulated = true
		trade.Success = true
		g.logger.Info().
			Str("side", side).
			Float64("amount", amount).
			Float64("price", sig.Price).
			Msg("simulated trade")
		return trade
	}

	resp, err := g.client.PlaceMarketOrder(g.symbol, strings.ToUpper(side), amount, trade.ClientOrderID)
	if err != nil {
		trade.Status = ledger.StatusClosed
		trade.Error = err.Error()
		switch {
		case errors.Is(err, exchange.ErrInsufficientFunds):
			trade.ErrorType = ErrorInsufficientFunds
		case errors.Is(err, exchange.ErrInvalidOrder):
			trade.ErrorType = ErrorInvalidOrder
		default:
			trade.ErrorType = ErrorExecutionFailed
		}
		g.logger.Error().Err(err).
			Str("side", side).
			Str("error_type", trade.ErrorType).
			Msg("order rejected")
		return trade
	}

	trade.OrderID = resp.OrderID
	trade.Status = ledger.StatusOpen
	trade.Success = true
	if resp.ExecutedQty > 0 {
		trade.Amount = resp.ExecutedQty
	}
	if resp.Price > 0 {
		trade.Price = resp.Price
	}
	trade.Value = trade.Amount * trade.Price
	return trade
}

// roundAmount truncates the amount to the exchange's base precision.
func (g *Gateway) roundAmount(amount float64) float64 {
	factor := math.Pow(10, float64(g.marketInfo.AmountPrecision))
	return math.Floor(amount*factor) / factor
}
