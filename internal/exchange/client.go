package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client talks to the MEXC spot REST API (binance-compatible v3 endpoints).
// All outbound calls go through a shared rate gate so bursts of pipeline
// activity never exceed one request per 100ms.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

func NewClient(apiKey, secretKey, baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:     logger,
	}
}

// ==================== PUBLIC ENDPOINTS ====================

// TestConnection pings the server and, when credentials are configured,
// probes a signed endpoint to verify them.
func (c *Client) TestConnection() error {
	if _, err := c.get("/api/v3/time", nil, false); err != nil {
		return fmt.Errorf("connectivity check: %w", err)
	}
	if c.apiKey != "" {
		if _, err := c.get("/api/v3/account", url.Values{}, true); err != nil {
			return fmt.Errorf("credential check: %w", err)
		}
	}
	return nil
}

// GetCandles fetches OHLCV bars, oldest first.
func (c *Client) GetCandles(symbol, timeframe string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get("/api/v3/klines", params, false)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing klines: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		candles = append(candles, Candle{
			OpenTime:  asInt64(row[0]),
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
			CloseTime: asInt64(row[6]),
		})
	}
	return candles, nil
}

// GetPrice returns the last traded price for the symbol.
func (c *Client) GetPrice(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get("/api/v3/ticker/price", params, false)
	if err != nil {
		return 0, fmt.Errorf("fetching ticker: %w", err)
	}

	var ticker struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("parsing ticker: %w", err)
	}
	return ticker.Price, nil
}

// GetMarketInfo loads precision and size constraints for the symbol.
func (c *Client) GetMarketInfo(symbol string) (*MarketInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get("/api/v3/exchangeInfo", params, false)
	if err != nil {
		return nil, fmt.Errorf("fetching exchange info: %w", err)
	}

	var info struct {
		Symbols []struct {
			Symbol             string `json:"symbol"`
			BaseAsset          string `json:"baseAsset"`
			QuoteAsset         string `json:"quoteAsset"`
			BaseAssetPrecision int    `json:"baseAssetPrecision"`
			Filters            []struct {
				FilterType  string  `json:"filterType"`
				MinQty      float64 `json:"minQty,string"`
				MinNotional float64 `json:"minNotional,string"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		mi := &MarketInfo{
			Symbol:          s.Symbol,
			BaseAsset:       s.BaseAsset,
			QuoteAsset:      s.QuoteAsset,
			AmountPrecision: s.BaseAssetPrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				mi.MinAmount = f.MinQty
			case "MIN_NOTIONAL", "NOTIONAL":
				mi.MinNotional = f.MinNotional
			}
		}
		return mi, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
}

// ==================== SIGNED ENDPOINTS ====================

// GetBalance returns the free/locked balances of the two assets of the pair.
func (c *Client) GetBalance(baseAsset, quoteAsset string) (*Balance, error) {
	body, err := c.get("/api/v3/account", url.Values{}, true)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	var account struct {
		Balances []struct {
			Asset  string  `json:"asset"`
			Free   float64 `json:"free,string"`
			Locked float64 `json:"locked,string"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("parsing account: %w", err)
	}

	bal := &Balance{
		Base:  AssetBalance{Asset: baseAsset},
		Quote: AssetBalance{Asset: quoteAsset},
	}
	for _, b := range account.Balances {
		switch b.Asset {
		case baseAsset:
			bal.Base.Free = b.Free
			bal.Base.Locked = b.Locked
		case quoteAsset:
			bal.Quote.Free = b.Free
			bal.Quote.Locked = b.Locked
		}
	}
	return bal, nil
}

// PlaceMarketOrder submits a market order with the given client order ID.
func (c *Client) PlaceMarketOrder(symbol, side string, amount float64, clientOrderID string) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", strings.ToUpper(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))
	if clientOrderID != "" {
		params.Set("newClientOrderId", clientOrderID)
	}

	body, err := c.request(http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, fmt.Errorf("placing %s order: %w", strings.ToLower(side), err)
	}

	var order OrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("parsing order response: %w", err)
	}
	c.logger.Info().
		Str("symbol", symbol).
		Str("side", side).
		Float64("amount", amount).
		Str("order_id", order.OrderID).
		Msg("market order placed")
	return &order, nil
}

// GetOpenOrders lists the currently open orders for the symbol.
func (c *Client) GetOpenOrders(symbol string) ([]OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get("/api/v3/openOrders", params, true)
	if err != nil {
		return nil, fmt.Errorf("fetching open orders: %w", err)
	}

	var orders []OrderResponse
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("parsing open orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels a single open order.
func (c *Client) CancelOrder(symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	if _, err := c.request(http.MethodDelete, "/api/v3/order", params, true); err != nil {
		return fmt.Errorf("canceling order %s: %w", orderID, err)
	}
	return nil
}

// CancelAllOrders cancels every open order for the symbol.
func (c *Client) CancelAllOrders(symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	if _, err := c.request(http.MethodDelete, "/api/v3/openOrders", params, true); err != nil {
		return fmt.Errorf("canceling open orders: %w", err)
	}
	return nil
}

// ==================== TRANSPORT ====================

func (c *Client) get(path string, params url.Values, signed bool) ([]byte, error) {
	return c.request(http.MethodGet, path, params, signed)
}

func (c *Client) request(method, path string, params url.Values, signed bool) ([]byte, error) {
	// Hard floor of one call per 100ms toward the exchange.
	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", "5000")
		query := params.Encode()
		params.Set("signature", c.sign(query))
	}

	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequest(method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if signed || c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil {
			apiErr.Message = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
