package strategy

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/ledger"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/utils"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

type AccountConfig struct {
	// Commission prices each trade. Nil means commission free.
	Commission commission_fee.CommissionFee
	// MaxPosition is the advisory cap on one position as a fraction of equity.
	MaxPosition float64
	// Journal receives run log entries. Optional.
	Journal log.Log
	// Clock stamps trades that carry no date. Defaults to time.Now.
	Clock func() time.Time
}

// Account is the mutable simulation state of one run: cash, share
// positions, the lot ledger and the trade history. It is not safe for
// concurrent use; every run gets its own Account.
type Account struct {
	cash        float64
	positions   map[string]int64
	lots        *ledger.Ledger
	trades      []types.Trade
	executions  []types.ExecutionResult
	lastPrices  map[string]float64
	commission  commission_fee.CommissionFee
	maxPosition float64
	journal     log.Log
	clock       func() time.Time
	logger      *logger.Logger
}

// NewAccount creates an account with zero cash and no positions.
func NewAccount(config AccountConfig, logger *logger.Logger) *Account {
	commission := config.Commission
	if commission == nil {
		commission = commission_fee.NewZeroCommissionFee()
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Account{
		positions:   make(map[string]int64),
		lots:        ledger.New(),
		lastPrices:  make(map[string]float64),
		commission:  commission,
		maxPosition: config.MaxPosition,
		journal:     config.Journal,
		clock:       clock,
		logger:      logger,
	}
}

// SetCash seeds the cash balance.
func (a *Account) SetCash(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "cash must be a non-negative number, got %v", amount)
	}

	a.cash = amount

	return nil
}

func (a *Account) Cash() float64 {
	return a.cash
}

func (a *Account) Position(symbol string) int64 {
	return a.positions[symbol]
}

func (a *Account) Positions() map[string]int64 {
	return maps.Clone(a.positions)
}

func (a *Account) Trades() []types.Trade {
	return slices.Clone(a.trades)
}

func (a *Account) Executions() []types.ExecutionResult {
	return slices.Clone(a.executions)
}

// Lots returns the lots held for symbol, oldest first.
func (a *Account) Lots(symbol string) []ledger.Lot {
	return a.lots.Lots(symbol)
}

// Buy purchases shares of symbol at price. Zero shares buys as many whole
// lots as cash allows. Explicit quantities must be whole lots.
func (a *Account) Buy(symbol string, price float64, shares int64, date optional.Option[time.Time]) types.ExecutionResult {
	reject := func(reason types.RejectReason, format string, args ...any) types.ExecutionResult {
		return a.reject(date, symbol, types.TradeActionBuy, reason, fmt.Sprintf(format, args...))
	}

	if !validPrice(price) {
		return reject(types.RejectReasonInvalidPrice, "price must be positive, got %v", price)
	}

	if !utils.IsWholeLots(shares, ledger.LotSize) {
		return reject(types.RejectReasonInvalidQuantity, "shares must be a positive multiple of %d, got %d", ledger.LotSize, shares)
	}

	var fee float64

	if shares == 0 {
		var lotCount int64

		lotCount, fee = utils.CalculateMaxLots(a.cash, price, ledger.LotSize, a.commission)
		if lotCount < 1 {
			return reject(types.RejectReasonInsufficientFunds, "cash %.2f cannot buy one lot at %.2f", a.cash, price)
		}

		shares = lotCount * ledger.LotSize
	} else {
		amount := price * float64(shares)
		fee = a.commission.Calculate(amount)

		if amount+fee > a.cash {
			return reject(types.RejectReasonInsufficientFunds, "cost %.2f exceeds cash %.2f", amount+fee, a.cash)
		}
	}

	if date.IsNone() {
		a.warn(date, symbol, "buy without a date, lots are stamped as undated")
	}

	trade := types.NewTrade(a.timestamp(date), symbol, types.TradeActionBuy, price, shares, fee)

	a.cash += trade.CashDelta()
	a.positions[symbol] += shares
	a.lots.Add(symbol, date, int(shares/ledger.LotSize))

	return a.execute(trade)
}

// Sell sells shares of symbol at price. Only lots acquired before the
// calendar day of date are sellable. Zero shares sells everything
// sellable. Without a date the same-day check is skipped and the oldest
// lots are sold.
func (a *Account) Sell(symbol string, price float64, shares int64, date optional.Option[time.Time]) types.ExecutionResult {
	reject := func(reason types.RejectReason, format string, args ...any) types.ExecutionResult {
		return a.reject(date, symbol, types.TradeActionSell, reason, fmt.Sprintf(format, args...))
	}

	position := a.positions[symbol]
	if position <= 0 {
		return reject(types.RejectReasonNoPosition, "no position in %s", symbol)
	}

	if !validPrice(price) {
		return reject(types.RejectReasonInvalidPrice, "price must be positive, got %v", price)
	}

	if shares < 0 {
		return reject(types.RejectReasonInvalidQuantity, "shares must not be negative, got %d", shares)
	}

	if held := a.lots.Shares(symbol); held != position {
		a.logger.Error("Lots and position disagree",
			zap.String("symbol", symbol),
			zap.Int64("lot_shares", held),
			zap.Int64("position", position),
		)

		return reject(types.RejectReasonLedgerMismatch, "lots hold %d shares of %s, position is %d", held, symbol, position)
	}

	var sellable int64

	if day, err := date.Take(); err == nil {
		sellable = int64(a.lots.SellableCount(symbol, day)) * ledger.LotSize
		if sellable == 0 {
			return reject(types.RejectReasonSameDayRestriction, "no lot of %s was bought before %s", symbol, day.Format(time.DateOnly))
		}
	} else {
		a.warn(date, symbol, "sell without a date, same-day check skipped")

		sellable = a.lots.Shares(symbol)
	}

	quantity := min(sellable, position)
	if shares > 0 {
		quantity = min(shares, quantity)
	}

	quantity = utils.RoundDownToLots(quantity, ledger.LotSize)
	if quantity == 0 {
		return reject(types.RejectReasonInvalidQuantity, "%d shares is less than one lot", shares)
	}

	amount := price * float64(quantity)
	fee := a.commission.Calculate(amount)

	if a.cash+amount-fee < 0 {
		return reject(types.RejectReasonInsufficientFunds, "commission %.2f exceeds proceeds and cash", fee)
	}

	if _, err := a.lots.PopOldest(symbol, int(quantity/ledger.LotSize)); err != nil {
		a.logger.Error("Failed to release lots", zap.String("symbol", symbol), zap.Error(err))

		return reject(types.RejectReasonLedgerMismatch, "cannot release %d shares of %s: %v", quantity, symbol, err)
	}

	trade := types.NewTrade(a.timestamp(date), symbol, types.TradeActionSell, price, quantity, fee)

	a.cash += trade.CashDelta()
	a.positions[symbol] -= quantity

	if a.positions[symbol] == 0 {
		delete(a.positions, symbol)
		a.lots.Remove(symbol)
	}

	return a.execute(trade)
}

// ExecuteTrades applies the signals in order and returns the trades that
// executed. Rejected signals are recorded in Executions and skipped.
func (a *Account) ExecuteTrades(signals []types.Signal) []types.Trade {
	var executed []types.Trade

	for _, signal := range signals {
		if validPrice(signal.Price) {
			a.lastPrices[signal.Symbol] = signal.Price
		}

		var result types.ExecutionResult

		switch signal.Type {
		case types.SignalTypeBuy:
			result = a.Buy(signal.Symbol, signal.Price, signal.Shares, signal.Date)
		case types.SignalTypeSell:
			result = a.Sell(signal.Symbol, signal.Price, signal.Shares, signal.Date)
		default:
			continue
		}

		if trade, err := result.Trade.Take(); err == nil {
			executed = append(executed, trade)
		}
	}

	return executed
}

// RiskControl reports positions above the configured fraction of equity.
// It never trades.
func (a *Account) RiskControl() []RiskNotice {
	if a.maxPosition <= 0 || len(a.positions) == 0 {
		return nil
	}

	values := make(map[string]float64, len(a.positions))
	equity := a.cash

	for symbol, shares := range a.positions {
		values[symbol] = float64(shares) * a.lastPrices[symbol]
		equity += values[symbol]
	}

	if equity <= 0 {
		return nil
	}

	symbols := slices.Collect(maps.Keys(values))
	sort.Strings(symbols)

	var notices []RiskNotice

	for _, symbol := range symbols {
		fraction := values[symbol] / equity
		if fraction <= a.maxPosition {
			continue
		}

		notices = append(notices, RiskNotice{Symbol: symbol, Fraction: fraction, Limit: a.maxPosition})

		a.logger.Warn("Position above max position fraction",
			zap.String("symbol", symbol),
			zap.Float64("fraction", fraction),
			zap.Float64("limit", a.maxPosition),
		)
		a.record(time.Time{}, symbol, types.LogLevelWarn, "position above max position fraction", map[string]string{
			"fraction": fmt.Sprintf("%.4f", fraction),
			"limit":    fmt.Sprintf("%.4f", a.maxPosition),
		})
	}

	return notices
}

// OnFinish returns a snapshot of the account. It does not change state.
func (a *Account) OnFinish() Summary {
	lots := make(map[string]int, len(a.positions))
	for _, symbol := range a.lots.Symbols() {
		lots[symbol] = a.lots.Count(symbol)
	}

	return Summary{
		Cash:       a.cash,
		Positions:  maps.Clone(a.positions),
		Lots:       lots,
		TradeCount: len(a.trades),
	}
}

func (a *Account) execute(trade types.Trade) types.ExecutionResult {
	a.trades = append(a.trades, trade)
	a.lastPrices[trade.Symbol] = trade.Price
	result := types.Executed(trade)
	a.executions = append(a.executions, result)

	a.logger.Debug("Trade executed",
		zap.String("symbol", trade.Symbol),
		zap.String("action", string(trade.Action)),
		zap.Float64("price", trade.Price),
		zap.Int64("shares", trade.Shares),
		zap.Float64("cash", a.cash),
	)
	a.record(trade.Timestamp, trade.Symbol, types.LogLevelInfo, fmt.Sprintf("%s %d @ %.4f", trade.Action, trade.Shares, trade.Price), nil)

	return result
}

func (a *Account) reject(date optional.Option[time.Time], symbol string, action types.TradeAction, reason types.RejectReason, message string) types.ExecutionResult {
	rejection := types.Rejection{
		Date:    date.TakeOr(time.Time{}),
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Message: message,
	}
	result := types.Rejected(rejection)
	a.executions = append(a.executions, result)

	a.logger.Info("Trade rejected",
		zap.String("symbol", symbol),
		zap.String("action", string(action)),
		zap.String("reason", string(reason)),
		zap.String("message", message),
	)
	a.record(rejection.Date, symbol, types.LogLevelInfo, fmt.Sprintf("%s rejected: %s", action, message), map[string]string{"reason": string(reason)})

	return result
}

func (a *Account) warn(date optional.Option[time.Time], symbol string, message string) {
	a.logger.Warn(message, zap.String("symbol", symbol))
	a.record(date.TakeOr(time.Time{}), symbol, types.LogLevelWarn, message, nil)
}

func (a *Account) record(at time.Time, symbol string, level types.LogLevel, message string, fields map[string]string) {
	if a.journal == nil {
		return
	}

	if at.IsZero() {
		at = a.clock()
	}

	if err := a.journal.Log(log.LogEntry{Timestamp: at, Symbol: symbol, Level: level, Message: message, Fields: fields}); err != nil {
		a.logger.Error("Failed to record journal entry", zap.Error(err))
	}
}

func (a *Account) timestamp(date optional.Option[time.Time]) time.Time {
	return date.TakeOrElse(a.clock)
}

func validPrice(price float64) bool {
	return price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}
