package bybit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/tidwall/gjson"
)

// BybitError represents a Bybit API error with additional context
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *BybitError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Bybit API error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeReduceOnlyRejected  = 110017
	ErrCodeMarketClosed        = 110043
)

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	var bybitErr *BybitError
	if !errors.As(err, &bybitErr) {
		return false
	}
	switch bybitErr.Code {
	case ErrCodeRateLimitExceeded,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsAuthenticationError checks if the error is related to authentication
func IsAuthenticationError(err error) bool {
	var bybitErr *BybitError
	if !errors.As(err, &bybitErr) {
		return false
	}
	switch bybitErr.Code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
		return true
	}
	return false
}

// IsInsufficientBalanceError checks if the error is due to insufficient balance
func IsInsufficientBalanceError(err error) bool {
	var bybitErr *BybitError
	return errors.As(err, &bybitErr) && bybitErr.Code == ErrCodeInsufficientBalance
}

// IsRateLimitError checks if the error is due to rate limiting
func IsRateLimitError(err error) bool {
	var bybitErr *BybitError
	return errors.As(err, &bybitErr) && bybitErr.Code == ErrCodeRateLimitExceeded
}

// NewBybitError creates a new BybitError
func NewBybitError(code int, message string, details ...string) *BybitError {
	err := &BybitError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// resultOf checks the response envelope and returns its result payload
func resultOf(resp *bybit_api.ServerResponse) (gjson.Result, error) {
	if resp == nil {
		return gjson.Result{}, fmt.Errorf("empty response")
	}
	if resp.RetCode != 0 {
		return gjson.Result{}, NewBybitError(resp.RetCode, resp.RetMsg)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return gjson.ParseBytes(raw), nil
}
