// Package errors provides structured errors carrying a numeric code.
//
// Codes are grouped by range:
//   - General errors (1-99)
//   - Validation and configuration errors (100-199)
//   - Data errors (200-299): bar series, data sources, queries
//   - Indicator errors (300-399)
//   - Strategy errors (400-499): lookup, parameters, runtime failures
//   - Trade rejection reasons (500-599)
//   - Backtest errors (600-699): engine state, results, exports
//
// Usage:
//
//	err := errors.New(errors.ErrCodeEmptyBarSeries, "bar series is empty")
//	err := errors.Newf(errors.ErrCodeStrategyNotFound, "unknown strategy type %q", key)
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to read bars", cause)
//
//	if errors.IsPrecondition(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is an error with a code, a message and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps cause with a code and a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the first *Error in err's chain,
// or ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsPrecondition reports whether err is a run precondition failure.
// A precondition failure aborts a backtest before any strategy stage runs.
func IsPrecondition(err error) bool {
	switch GetCode(err) {
	case ErrCodeEmptyBarSeries, ErrCodeStrategyNotFound, ErrCodeStrategyNotRegistered:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err means a looked-up resource does not exist.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case ErrCodeDataNotFound, ErrCodeStrategyNotFound, ErrCodeBacktestNotFound, ErrCodeRecordNotFound:
		return true
	default:
		return false
	}
}

// Category returns the range name of code.
func (c ErrorCode) Category() string {
	switch {
	case c < 100:
		return "general"
	case c < 200:
		return "validation"
	case c < 300:
		return "data"
	case c < 400:
		return "indicator"
	case c < 500:
		return "strategy"
	case c < 600:
		return "trade"
	case c < 700:
		return "backtest"
	default:
		return "unknown"
	}
}
