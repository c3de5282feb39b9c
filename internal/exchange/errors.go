package exchange

import (
	"errors"
	"fmt"
)

// Sentinel errors for exchange rejections the pipeline has to classify.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrAuthentication    = errors.New("authentication failed")
	ErrUnknownSymbol     = errors.New("unknown symbol")
)

// APIError is an error response from the exchange REST API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange API error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps known API error codes onto the package sentinels so callers
// can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case -2010, 30004, 30005:
		return ErrInsufficientFunds
	case -1013, -1111, -1121, -2011, 30002, 30003:
		return ErrInvalidOrder
	case -2014, -2015, -1022, 700002:
		return ErrAuthentication
	}
	switch e.StatusCode {
	case 401, 403:
		return ErrAuthentication
	}
	return nil
}
