package exchange

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// MockClient is an in-process ExchangeClient used for tests and dry runs.
// Prices follow a seeded random walk so repeated calls are consistent within
// a run; balances are adjusted on simulated fills.
type MockClient struct {
	mu         sync.Mutex
	rng        *rand.Rand
	price      float64
	baseFree   float64
	quoteFree  float64
	openOrders []OrderResponse
	orderSeq   int64

	// FailNextOrder forces the next PlaceMarketOrder call to return err.
	FailNextOrder error
}

func NewMockClient(startPrice, quoteBalance float64) *MockClient {
	return &MockClient{
		rng:       rand.New(rand.NewSource(42)),
		price:     startPrice,
		quoteFree: quoteBalance,
	}
}

func (m *MockClient) TestConnection() error { return nil }

// GetCandles synthesizes a random-walk series ending at the current price.
func (m *MockClient) GetCandles(symbol, timeframe string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	step := timeframeDuration(timeframe)
	now := time.Now().Truncate(step)

	candles := make([]Candle, limit)
	price := m.price
	for i := limit - 1; i >= 0; i-- {
		open := price * (1 + (m.rng.Float64()-0.5)*0.01)
		high := math.Max(open, price) * (1 + m.rng.Float64()*0.003)
		low := math.Min(open, price) * (1 - m.rng.Float64()*0.003)
		openTime := now.Add(-time.Duration(limit-i) * step)
		candles[i] = Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    100 + m.rng.Float64()*50,
			CloseTime: openTime.Add(step).UnixMilli() - 1,
		}
		price = open
	}
	return candles, nil
}

func (m *MockClient) GetPrice(symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price *= 1 + (m.rng.Float64()-0.5)*0.002
	return m.price, nil
}

func (m *MockClient) GetBalance(baseAsset, quoteAsset string) (*Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Balance{
		Base:  AssetBalance{Asset: baseAsset, Free: m.baseFree},
		Quote: AssetBalance{Asset: quoteAsset, Free: m.quoteFree},
	}, nil
}

func (m *MockClient) GetMarketInfo(symbol string) (*MarketInfo, error) {
	return &MarketInfo{
		Symbol:          symbol,
		AmountPrecision: 6,
		MinAmount:       0.000001,
		MinNotional:     1,
	}, nil
}

func (m *MockClient) PlaceMarketOrder(symbol, side string, amount float64, clientOrderID string) (*OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextOrder != nil {
		err := m.FailNextOrder
		m.FailNextOrder = nil
		return nil, err
	}

	side = strings.ToUpper(side)
	cost := amount * m.price
	switch side {
	case "BUY":
		if cost > m.quoteFree {
			return nil, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, cost, m.quoteFree)
		}
		m.quoteFree -= cost
		m.baseFree += amount
	case "SELL":
		if amount > m.baseFree {
			return nil, fmt.Errorf("%w: need %.6f, have %.6f", ErrInsufficientFunds, amount, m.baseFree)
		}
		m.baseFree -= amount
		m.quoteFree += cost
	default:
		return nil, fmt.Errorf("%w: side %q", ErrInvalidOrder, side)
	}

	m.orderSeq++
	return &OrderResponse{
		OrderID:       fmt.Sprintf("mock-%d", m.orderSeq),
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		Type:          "MARKET",
		Price:         m.price,
		OrigQty:       amount,
		ExecutedQty:   amount,
		Status:        "FILLED",
		TransactTime:  time.Now().UnixMilli(),
	}, nil
}

func (m *MockClient) GetOpenOrders(symbol string) ([]OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderResponse, len(m.openOrders))
	copy(out, m.openOrders)
	return out, nil
}

func (m *MockClient) CancelOrder(symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.openOrders {
		if o.OrderID == orderID {
			m.openOrders = append(m.openOrders[:i], m.openOrders[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: order %s not found", ErrInvalidOrder, orderID)
}

func (m *MockClient) CancelAllOrders(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openOrders = m.openOrders[:0]
	return nil
}

// SetPrice pins the mock price, for tests.
func (m *MockClient) SetPrice(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = p
}

func timeframeDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	return time.Minute
}
