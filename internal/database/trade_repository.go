package database

import (
	"context"
	"fmt"
	"time"

	"broski-bot/internal/ledger"
)

// TradeRepository persists trades in PostgreSQL. It implements ledger.Store.
type TradeRepository struct {
	db *DB
}

func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

var _ ledger.Store = (*TradeRepository)(nil)

func (r *TradeRepository) Load() ([]*ledger.Trade, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, order_id, client_order_id, symbol, side, amount, price, value,
		       timestamp, status, strategy, simulated, success, error_type, error,
		       close_price, close_time, pnl, pnl_pct, stop_loss, take_profit
		FROM trades
		ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []*ledger.Trade
	for rows.Next() {
		var t ledger.Trade
		var orderID, clientOrderID, errorType, errMsg *string
		err := rows.Scan(
			&t.ID, &orderID, &clientOrderID, &t.Symbol, &t.Side, &t.Amount,
			&t.Price, &t.Value, &t.Timestamp, &t.Status, &t.Strategy,
			&t.Simulated, &t.Success, &errorType, &errMsg,
			&t.ClosePrice, &t.CloseTime, &t.PnL, &t.PnLPct,
			&t.StopLoss, &t.TakeProfit,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		if orderID != nil {
			t.OrderID = *orderID
		}
		if clientOrderID != nil {
			t.ClientOrderID = *clientOrderID
		}
		if errorType != nil {
			t.ErrorType = *errorType
		}
		if errMsg != nil {
			t.Error = *errMsg
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (r *TradeRepository) Append(t *ledger.Trade) error {
	ctx, cancel := r.ctx()
	defer cancel()

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trades (
			id, order_id, client_order_id, symbol, side, amount, price, value,
			timestamp, status, strategy, simulated, success, error_type, error,
			close_price, close_time, pnl, pnl_pct, stop_loss, take_profit
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		t.ID, nullable(t.OrderID), nullable(t.ClientOrderID), t.Symbol, t.Side,
		t.Amount, t.Price, t.Value, t.Timestamp, t.Status, t.Strategy,
		t.Simulated, t.Success, nullable(t.ErrorType), nullable(t.Error),
		t.ClosePrice, t.CloseTime, t.PnL, t.PnLPct, t.StopLoss, t.TakeProfit,
	)
	if err != nil {
		return fmt.Errorf("inserting trade %s: %w", t.ID, err)
	}
	return nil
}

func (r *TradeRepository) Update(t *ledger.Trade) error {
	ctx, cancel := r.ctx()
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE trades SET
			status = $2, close_price = $3, close_time = $4, pnl = $5, pnl_pct = $6
		WHERE id = $1`,
		t.ID, t.Status, t.ClosePrice, t.CloseTime, t.PnL, t.PnLPct,
	)
	if err != nil {
		return fmt.Errorf("updating trade %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not in store", t.ID)
	}
	return nil
}

func (r *TradeRepository) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
