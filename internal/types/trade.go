package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// Trade is an executed fill. Trades are appended to the history and never changed.
type Trade struct {
	ID        string      `yaml:"id" json:"id" csv:"id"`
	Timestamp time.Time   `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Symbol    string      `yaml:"symbol" json:"symbol" csv:"symbol"`
	Action    TradeAction `yaml:"action" json:"action" csv:"action"`
	Price     float64     `yaml:"price" json:"price" csv:"price"`
	Shares    int64       `yaml:"shares" json:"shares" csv:"shares"`
	// Amount is always Price x Shares
	Amount float64 `yaml:"amount" json:"amount" csv:"amount"`
	// Fee is zero unless commission is applied
	Fee float64 `yaml:"fee" json:"fee" csv:"fee"`
}

func NewTrade(timestamp time.Time, symbol string, action TradeAction, price float64, shares int64, fee float64) Trade {
	return Trade{
		ID:        uuid.New().String(),
		Timestamp: timestamp,
		Symbol:    symbol,
		Action:    action,
		Price:     price,
		Shares:    shares,
		Amount:    price * float64(shares),
		Fee:       fee,
	}
}

// CashDelta returns the signed effect of the trade on cash.
func (t Trade) CashDelta() float64 {
	if t.Action == TradeActionBuy {
		return -(t.Amount + t.Fee)
	}

	return t.Amount - t.Fee
}

type RejectReason string

const (
	RejectReasonInvalidPrice       RejectReason = "invalid_price"
	RejectReasonInvalidQuantity    RejectReason = "invalid_quantity"
	RejectReasonInsufficientFunds  RejectReason = "insufficient_funds"
	RejectReasonNoPosition         RejectReason = "no_position"
	RejectReasonSameDayRestriction RejectReason = "same_day_restriction"

	// lots and position disagree; the account refuses to trade the symbol
	RejectReasonLedgerMismatch RejectReason = "ledger_mismatch"
)

// Code maps the reason onto the trade rejection error range.
func (r RejectReason) Code() errors.ErrorCode {
	switch r {
	case RejectReasonInvalidPrice:
		return errors.ErrCodeInvalidPrice
	case RejectReasonInvalidQuantity:
		return errors.ErrCodeInvalidQuantity
	case RejectReasonInsufficientFunds:
		return errors.ErrCodeInsufficientFunds
	case RejectReasonNoPosition:
		return errors.ErrCodeNoPosition
	case RejectReasonSameDayRestriction:
		return errors.ErrCodeSameDayRestriction
	case RejectReasonLedgerMismatch:
		return errors.ErrCodeLedgerMismatch
	default:
		return errors.ErrCodeUnknown
	}
}

// Rejection describes a buy or sell that was skipped without touching state.
type Rejection struct {
	// Date is the signal date, zero when the caller supplied none
	Date    time.Time    `yaml:"date" json:"date" csv:"date"`
	Symbol  string       `yaml:"symbol" json:"symbol" csv:"symbol"`
	Action  TradeAction  `yaml:"action" json:"action" csv:"action"`
	Reason  RejectReason `yaml:"reason" json:"reason" csv:"reason"`
	Message string       `yaml:"message" json:"message" csv:"message"`
}

// ExecutionResult is either Executed(Trade) or Rejected(Rejection).
type ExecutionResult struct {
	Trade     optional.Option[Trade]
	Rejection optional.Option[Rejection]
}

func Executed(trade Trade) ExecutionResult {
	return ExecutionResult{
		Trade:     optional.Some(trade),
		Rejection: optional.None[Rejection](),
	}
}

func Rejected(rejection Rejection) ExecutionResult {
	return ExecutionResult{
		Trade:     optional.None[Trade](),
		Rejection: optional.Some(rejection),
	}
}

func (r ExecutionResult) IsExecuted() bool {
	return r.Trade.IsSome()
}

// Reason returns the rejection reason, or the empty string for an executed trade.
func (r ExecutionResult) Reason() RejectReason {
	if r.Rejection.IsNone() {
		return ""
	}

	return r.Rejection.Unwrap().Reason
}

// Err converts a rejection into an error carrying the reason's code.
// It returns nil for an executed trade.
func (r ExecutionResult) Err() error {
	if r.Rejection.IsNone() {
		return nil
	}

	rejection := r.Rejection.Unwrap()

	return errors.Newf(rejection.Reason.Code(), "%s %s rejected: %s", rejection.Action, rejection.Symbol, rejection.Message)
}
