package exchange

// Candle represents a single OHLCV bar.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// AssetBalance is the balance of a single asset.
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// Total returns free plus locked.
func (b AssetBalance) Total() float64 {
	return b.Free + b.Locked
}

// Balance holds the base and quote balances for the trading pair.
type Balance struct {
	Base  AssetBalance `json:"base"`
	Quote AssetBalance `json:"quote"`
}

// OrderResponse is the normalized response from placing or listing an order.
type OrderResponse struct {
	OrderID       string  `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Price         float64 `json:"price,string"`
	OrigQty       float64 `json:"origQty,string"`
	ExecutedQty   float64 `json:"executedQty,string"`
	Status        string  `json:"status"`
	TransactTime  int64   `json:"transactTime"`
}

// MarketInfo describes trading constraints for a symbol.
type MarketInfo struct {
	Symbol          string
	BaseAsset       string
	QuoteAsset      string
	AmountPrecision int
	MinAmount       float64
	MinNotional     float64
}
