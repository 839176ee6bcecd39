package safety

import (
	"fmt"
	"math"
	"strings"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Validator checks order parameters before they reach an exchange
type Validator struct {
	// MaxQuantity rejects larger orders, zero disables the check
	MaxQuantity float64
}

// NewValidator creates a new validator instance
func NewValidator(maxQuantity float64) *Validator {
	return &Validator{MaxQuantity: maxQuantity}
}

// ValidatePrice validates a price value for trading
func (v *Validator) ValidatePrice(price float64, field, asset string) ValidationResult {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return ValidationResult{
			Message: fmt.Sprintf("invalid %s for %s: not a finite number", field, asset),
			Code:    "INVALID_PRICE_NAN",
		}
	}
	if price <= 0 {
		return ValidationResult{
			Message: fmt.Sprintf("invalid %s %.8f for %s: must be positive", field, price, asset),
			Code:    "INVALID_PRICE_NEGATIVE",
		}
	}
	if price > 1e10 {
		return ValidationResult{
			Message: fmt.Sprintf("suspicious %s %.8f for %s: exceeds reasonable bounds", field, price, asset),
			Code:    "PRICE_OUT_OF_BOUNDS",
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a quantity value for trading
func (v *Validator) ValidateQuantity(quantity float64, asset string) ValidationResult {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return ValidationResult{
			Message: fmt.Sprintf("invalid quantity %.8f for %s: must be a positive number", quantity, asset),
			Code:    "INVALID_QUANTITY",
		}
	}
	if v.MaxQuantity > 0 && quantity > v.MaxQuantity {
		return ValidationResult{
			Message: fmt.Sprintf("quantity %.8f for %s exceeds maximum %.8f", quantity, asset, v.MaxQuantity),
			Code:    "QUANTITY_TOO_LARGE",
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateAsset checks that an asset ticker looks like one
func (v *Validator) ValidateAsset(asset string) ValidationResult {
	if strings.TrimSpace(asset) == "" {
		return ValidationResult{Message: "asset is required", Code: "MISSING_ASSET"}
	}
	for _, r := range asset {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return ValidationResult{
				Message: fmt.Sprintf("invalid asset %q: only uppercase letters and digits allowed", asset),
				Code:    "INVALID_ASSET",
			}
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateStops checks that the stop-loss sits on the correct side of the
// entry for a long (buy) or short position. The take-profit is left to the
// exchange.
func (v *Validator) ValidateStops(long bool, entry, stopLoss float64) ValidationResult {
	if long && stopLoss >= entry || !long && stopLoss <= entry {
		return ValidationResult{
			Message: fmt.Sprintf("stop-loss %.8f is on the wrong side of entry %.8f", stopLoss, entry),
			Code:    "INVALID_STOP_LOSS",
		}
	}
	return ValidationResult{Valid: true}
}

// Err converts a failed result into an error
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Code, r.Message)
}
