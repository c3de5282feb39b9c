package exchange

import (
	"errors"
	"testing"
)

// TestAPIErrorClassification verifies API codes map onto the sentinels
func TestAPIErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  *APIError
		want error
	}{
		{"oversold funds", &APIError{StatusCode: 400, Code: -2010, Message: "Account has insufficient balance"}, ErrInsufficientFunds},
		{"mexc oversold", &APIError{StatusCode: 400, Code: 30004, Message: "Insufficient balance"}, ErrInsufficientFunds},
		{"lot size", &APIError{StatusCode: 400, Code: -1013, Message: "Filter failure: LOT_SIZE"}, ErrInvalidOrder},
		{"bad symbol", &APIError{StatusCode: 400, Code: -1121, Message: "Invalid symbol"}, ErrInvalidOrder},
		{"bad key", &APIError{StatusCode: 401, Code: -2015, Message: "Invalid API-key"}, ErrAuthentication},
		{"forbidden", &APIError{StatusCode: 403, Code: 0, Message: "Forbidden"}, ErrAuthentication},
	}

	for _, tc := range cases {
		if !errors.Is(tc.err, tc.want) {
			t.Errorf("%s: %v not classified as %v", tc.name, tc.err, tc.want)
		}
	}
}

// TestAPIErrorUnknownCode verifies unmapped codes stay unclassified
func TestAPIErrorUnknownCode(t *testing.T) {
	err := &APIError{StatusCode: 500, Code: -1000, Message: "Unknown error"}
	for _, sentinel := range []error{ErrInsufficientFunds, ErrInvalidOrder, ErrAuthentication} {
		if errors.Is(err, sentinel) {
			t.Errorf("unknown code classified as %v", sentinel)
		}
	}
}

// TestMockClientBalanceFlow verifies simulated fills adjust balances
func TestMockClientBalanceFlow(t *testing.T) {
	m := NewMockClient(100, 1000)
	m.SetPrice(100)

	if _, err := m.PlaceMarketOrder("BTCUSDT", "BUY", 2, "c1"); err != nil {
		t.Fatalf("buy: %v", err)
	}

	bal, err := m.GetBalance("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}
	if bal.Base.Free != 2 {
		t.Errorf("base %f, want 2", bal.Base.Free)
	}
	if bal.Quote.Free != 800 {
		t.Errorf("quote %f, want 800", bal.Quote.Free)
	}

	// Selling more than held is rejected with the funds sentinel.
	_, err = m.PlaceMarketOrder("BTCUSDT", "SELL", 5, "c2")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("oversell error %v, want ErrInsufficientFunds", err)
	}
}
