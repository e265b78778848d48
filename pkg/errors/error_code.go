package errors

// ErrorCode identifies an error type.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeInternal ErrorCode = 2

	// Validation and configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidVersion       ErrorCode = 103
	ErrCodeInvalidBar           ErrorCode = 104
	ErrCodeUnsupportedCostModel ErrorCode = 105
	ErrCodeInvalidPeriod        ErrorCode = 106
	ErrCodeVersionMismatch      ErrorCode = 107

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeEmptyBarSeries        ErrorCode = 203
	ErrCodeUnsupportedDataFormat ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound          ErrorCode = 400
	ErrCodeStrategyNotRegistered     ErrorCode = 401
	ErrCodeStrategyAlreadyRegistered ErrorCode = 402
	ErrCodeStrategyConfigError       ErrorCode = 403
	ErrCodeStrategyRuntimeError      ErrorCode = 404

	// Trade rejection reasons (500-599)
	ErrCodeInvalidPrice       ErrorCode = 500
	ErrCodeInvalidQuantity    ErrorCode = 501
	ErrCodeInsufficientFunds  ErrorCode = 502
	ErrCodeNoPosition         ErrorCode = 503
	ErrCodeSameDayRestriction ErrorCode = 504
	ErrCodeLedgerMismatch     ErrorCode = 505

	// Backtest errors (600-699)
	ErrCodeBacktestStateNil   ErrorCode = 600
	ErrCodeBacktestInitFailed ErrorCode = 601
	ErrCodeBacktestNotFound   ErrorCode = 602
	ErrCodeRecordNotFound     ErrorCode = 603
	ErrCodeWriteFailed        ErrorCode = 604
	ErrCodeReadFailed         ErrorCode = 605
)
