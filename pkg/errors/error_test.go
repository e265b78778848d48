package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestConstructors() {
	cause := errors.New("disk full")

	tests := []struct {
		name    string
		err     *Error
		code    ErrorCode
		message string
		cause   error
	}{
		{"new", New(ErrCodeEmptyBarSeries, "bar series is empty"), ErrCodeEmptyBarSeries, "bar series is empty", nil},
		{"newf", Newf(ErrCodeStrategyNotFound, "unknown strategy type %q", "turtle"), ErrCodeStrategyNotFound, `unknown strategy type "turtle"`, nil},
		{"wrap", Wrap(ErrCodeWriteFailed, "failed to write result", cause), ErrCodeWriteFailed, "failed to write result", cause},
		{"wrapf", Wrapf(ErrCodeWriteFailed, cause, "failed to write %s", "trades.parquet"), ErrCodeWriteFailed, "failed to write trades.parquet", cause},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.code, tc.err.Code)
			suite.Equal(tc.message, tc.err.Message)
			suite.Equal(tc.cause, tc.err.Cause)
		})
	}
}

func (suite *ErrorTestSuite) TestErrorString() {
	suite.Equal("[203] bar series is empty", New(ErrCodeEmptyBarSeries, "bar series is empty").Error())

	err := Wrap(ErrCodeQueryFailed, "failed to read bars", errors.New("no such table"))
	suite.Equal("[202] failed to read bars: no such table", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrapAndIs() {
	cause := errors.New("underlying")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)

	suite.Equal(cause, err.Unwrap())
	suite.True(Is(err, cause))
	suite.Nil(New(ErrCodeInvalidParameter, "x").Unwrap())
}

func (suite *ErrorTestSuite) TestGetCodeThroughFmtWrap() {
	inner := New(ErrCodeStrategyRuntimeError, "preprocess failed")
	wrapped := fmt.Errorf("backtest aborted: %w", inner)

	suite.Equal(ErrCodeStrategyRuntimeError, GetCode(wrapped))
	suite.True(HasCode(wrapped, ErrCodeStrategyRuntimeError))
	suite.False(HasCode(wrapped, ErrCodeEmptyBarSeries))

	var target *Error
	suite.True(As(wrapped, &target))
	suite.Equal("preprocess failed", target.Message)
}

func (suite *ErrorTestSuite) TestGetCodeOutermostWins() {
	err := Wrap(ErrCodeBacktestInitFailed, "init", New(ErrCodeInvalidConfiguration, "bad yaml"))
	suite.Equal(ErrCodeBacktestInitFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrCodeUnknown, GetCode(nil))
}

func (suite *ErrorTestSuite) TestIsPrecondition() {
	suite.True(IsPrecondition(New(ErrCodeEmptyBarSeries, "empty")))
	suite.True(IsPrecondition(New(ErrCodeStrategyNotFound, "missing")))
	suite.True(IsPrecondition(fmt.Errorf("wrapped: %w", New(ErrCodeStrategyNotRegistered, "declared only"))))
	suite.False(IsPrecondition(New(ErrCodeStrategyRuntimeError, "boom")))
	suite.False(IsPrecondition(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestIsNotFound() {
	suite.True(IsNotFound(New(ErrCodeBacktestNotFound, "no run")))
	suite.True(IsNotFound(New(ErrCodeRecordNotFound, "no record")))
	suite.False(IsNotFound(New(ErrCodeInvalidParameter, "bad")))
}

func (suite *ErrorTestSuite) TestCategory() {
	tests := []struct {
		code     ErrorCode
		category string
	}{
		{ErrCodeUnknown, "general"},
		{ErrCodeInvalidConfiguration, "validation"},
		{ErrCodeEmptyBarSeries, "data"},
		{ErrCodeIndicatorNotFound, "indicator"},
		{ErrCodeStrategyNotFound, "strategy"},
		{ErrCodeSameDayRestriction, "trade"},
		{ErrCodeLedgerMismatch, "trade"},
		{ErrCodeWriteFailed, "backtest"},
		{ErrorCode(999), "unknown"},
	}

	for _, tc := range tests {
		suite.Run(tc.category, func() {
			suite.Equal(tc.category, tc.code.Category())
		})
	}
}
