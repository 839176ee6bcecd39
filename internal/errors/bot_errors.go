package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Errors that should stop the bot
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Per-cycle errors, the next cycle is an independent attempt
	ErrorCategoryFeed      ErrorCategory = "FEED"
	ErrorCategoryParse     ErrorCategory = "PARSE"
	ErrorCategorySizing    ErrorCategory = "SIZING"
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
	ErrorCategoryReconcile ErrorCategory = "RECONCILE"
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"

	// Temporary errors
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
	ErrorCategoryPanic     ErrorCategory = "PANIC"
)

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
	Timestamp  time.Time
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsFatal returns whether this error should stop the bot
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfiguration
}

// NewBotError creates a new categorized bot error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with bot error context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
		Timestamp:  time.Now(),
	}
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration, ErrorCategorySizing:
		return false
	default:
		return true
	}
}

// CategorizeError attempts to categorize a generic error. fallback is used
// when nothing in the message points to a more specific category.
func CategorizeError(err error, fallback ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	}

	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api secret") ||
		strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return WrapError(err, ErrorCategoryCredentials, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	}

	return WrapError(err, fallback, component, operation)
}

func NewFeedError(operation string, err error) *BotError {
	return CategorizeError(err, ErrorCategoryFeed, "feed", operation)
}

func NewExecutionError(operation string, err error) *BotError {
	return CategorizeError(err, ErrorCategoryExecution, "executor", operation)
}

func NewReconcileError(err error) *BotError {
	return CategorizeError(err, ErrorCategoryReconcile, "position", "reconcile")
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewPanicError(component string, recovered interface{}) *BotError {
	return NewBotError(ErrorCategoryPanic, component, "cycle", fmt.Sprintf("recovered panic: %v", recovered))
}

// ErrorStats tracks error statistics. Safe for concurrent use since the
// health endpoint reads it while the trading loop records into it.
type ErrorStats struct {
	mu               sync.RWMutex
	totalErrors      int
	errorsByCategory map[ErrorCategory]int
	recentErrors     []*BotError
	maxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	if maxRecentErrors <= 0 {
		maxRecentErrors = 1
	}
	return &ErrorStats{
		errorsByCategory: make(map[ErrorCategory]int),
		recentErrors:     make([]*BotError, 0, maxRecentErrors),
		maxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *BotError) {
	if err == nil {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	es.totalErrors++
	es.errorsByCategory[err.Category]++

	es.recentErrors = append(es.recentErrors, err)
	if len(es.recentErrors) > es.maxRecentErrors {
		es.recentErrors = es.recentErrors[1:]
	}
}

// Total returns the number of recorded errors
func (es *ErrorStats) Total() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.totalErrors
}

// ByCategory returns the number of recorded errors per category
func (es *ErrorStats) ByCategory() map[ErrorCategory]int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	out := make(map[ErrorCategory]int, len(es.errorsByCategory))
	for category, n := range es.errorsByCategory {
		out[category] = n
	}
	return out
}

// RecentSince counts recent errors newer than the cutoff
func (es *ErrorStats) RecentSince(cutoff time.Time) int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	n := 0
	for _, err := range es.recentErrors {
		if err.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}
