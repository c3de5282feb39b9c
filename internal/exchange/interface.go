package exchange

// ExchangeClient is the surface the rest of the bot uses to talk to the
// exchange. Client implements it against the MEXC spot REST API; MockClient
// implements it in-process for tests and dry runs.
type ExchangeClient interface {
	// TestConnection verifies reachability and, when credentials are set,
	// that they are accepted.
	TestConnection() error

	// GetCandles returns up to limit OHLCV bars for the symbol/timeframe,
	// oldest first.
	GetCandles(symbol, timeframe string, limit int) ([]Candle, error)

	// GetPrice returns the last traded price for the symbol.
	GetPrice(symbol string) (float64, error)

	// GetBalance returns the free/locked balances of the base and quote assets.
	GetBalance(baseAsset, quoteAsset string) (*Balance, error)

	// GetMarketInfo returns precision and minimum-size constraints for the
	// symbol. Returns ErrUnknownSymbol for pairs the exchange does not list.
	GetMarketInfo(symbol string) (*MarketInfo, error)

	// PlaceMarketOrder submits a market order. Side is "BUY" or "SELL",
	// amount is in the base asset.
	PlaceMarketOrder(symbol, side string, amount float64, clientOrderID string) (*OrderResponse, error)

	// GetOpenOrders lists the currently open orders for the symbol.
	GetOpenOrders(symbol string) ([]OrderResponse, error)

	// CancelOrder cancels a single open order.
	CancelOrder(symbol, orderID string) error

	// CancelAllOrders cancels every open order for the symbol.
	CancelAllOrders(symbol string) error
}

var (
	_ ExchangeClient = (*Client)(nil)
	_ ExchangeClient = (*MockClient)(nil)
)
