package strategy

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memoryJournal struct {
	entries []log.LogEntry
}

func (j *memoryJournal) Log(entry log.LogEntry) error {
	j.entries = append(j.entries, entry)

	return nil
}

func (j *memoryJournal) GetLogs() ([]log.LogEntry, error) {
	return j.entries, nil
}

type AccountTestSuite struct {
	suite.Suite
	account *Account
	journal *memoryJournal
	logs    *observer.ObservedLogs
	now     time.Time
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func (suite *AccountTestSuite) SetupTest() {
	suite.now = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	suite.journal = &memoryJournal{}

	var l *logger.Logger
	l, suite.logs = logger.NewObservedLogger(zapcore.DebugLevel)

	suite.account = NewAccount(AccountConfig{
		MaxPosition: 0.3,
		Journal:     suite.journal,
		Clock:       func() time.Time { return suite.now },
	}, l)
	suite.Require().NoError(suite.account.SetCash(1_000_000))
}

func day(d int) optional.Option[time.Time] {
	return optional.Some(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC))
}

func undated() optional.Option[time.Time] {
	return optional.None[time.Time]()
}

func (suite *AccountTestSuite) requireExecuted(result types.ExecutionResult) types.Trade {
	suite.Require().True(result.IsExecuted(), "rejected: %v", result.Err())

	return result.Trade.Unwrap()
}

func (suite *AccountTestSuite) assertLotsMatchPositions() {
	for symbol, shares := range suite.account.Positions() {
		suite.Equal(shares, int64(len(suite.account.Lots(symbol)))*100, "lots of %s", symbol)
	}

	for _, symbol := range suite.account.lots.Symbols() {
		suite.Positive(suite.account.Position(symbol), "ledger entry without position for %s", symbol)
	}
}

func (suite *AccountTestSuite) TestSameDaySellIsRejected() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))

	result := suite.account.Sell("X", 10, 100, day(1))

	suite.False(result.IsExecuted())
	suite.Equal(types.RejectReasonSameDayRestriction, result.Reason())
	suite.Len(suite.account.Trades(), 1)
	suite.Equal(int64(100), suite.account.Position("X"))
	suite.assertLotsMatchPositions()
}

func (suite *AccountTestSuite) TestSameDaySellWithAnotherOffsetIsRejected() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(2)))

	newYork := time.FixedZone("EST", -5*60*60)
	result := suite.account.Sell("X", 10, 100, optional.Some(time.Date(2024, 1, 2, 0, 0, 0, 0, newYork)))

	suite.False(result.IsExecuted())
	suite.Equal(types.RejectReasonSameDayRestriction, result.Reason())
	suite.Equal(int64(100), suite.account.Position("X"))

	suite.requireExecuted(suite.account.Sell("X", 10, 100, optional.Some(time.Date(2024, 1, 3, 0, 0, 0, 0, newYork))))
}

func (suite *AccountTestSuite) TestNextDaySellLiquidates() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))
	before := suite.account.Cash()

	trade := suite.requireExecuted(suite.account.Sell("X", 12.5, 100, day(2)))

	suite.Equal(types.TradeActionSell, trade.Action)
	suite.Equal(int64(100), trade.Shares)
	suite.Equal(1250.0, trade.Amount)
	suite.Equal(before+1250, suite.account.Cash())
	suite.NotContains(suite.account.Positions(), "X")
	suite.Nil(suite.account.Lots("X"))
	suite.Empty(suite.account.lots.Symbols())
}

func (suite *AccountTestSuite) TestAutoSizedBuyUsesWholeLots() {
	trade := suite.requireExecuted(suite.account.Buy("X", 50, 0, day(20)))

	suite.Equal(int64(20_000), trade.Shares)
	suite.Equal(1_000_000.0, trade.Amount)
	suite.Equal(0.0, suite.account.Cash())
	suite.Equal(day(20).Unwrap(), trade.Timestamp)
	suite.Len(suite.account.Lots("X"), 200)
}

func (suite *AccountTestSuite) TestAutoSizedBuyRoundsDown() {
	suite.Require().NoError(suite.account.SetCash(12_345))

	trade := suite.requireExecuted(suite.account.Buy("X", 10, 0, day(1)))

	suite.Equal(int64(1200), trade.Shares)
	suite.Equal(345.0, suite.account.Cash())
}

func (suite *AccountTestSuite) TestBuyRejections() {
	tests := []struct {
		name   string
		cash   float64
		price  float64
		shares int64
		reason types.RejectReason
	}{
		{"zero price", 1_000_000, 0, 100, types.RejectReasonInvalidPrice},
		{"negative price", 1_000_000, -1, 100, types.RejectReasonInvalidPrice},
		{"odd lot", 1_000_000, 10, 150, types.RejectReasonInvalidQuantity},
		{"negative shares", 1_000_000, 10, -100, types.RejectReasonInvalidQuantity},
		{"auto size below one lot", 4_999, 50, 0, types.RejectReasonInsufficientFunds},
		{"explicit cost above cash", 999, 10, 100, types.RejectReasonInsufficientFunds},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.SetupTest()
			suite.Require().NoError(suite.account.SetCash(tc.cash))

			result := suite.account.Buy("X", tc.price, tc.shares, day(1))

			suite.Equal(tc.reason, result.Reason())
			suite.Equal(tc.cash, suite.account.Cash())
			suite.Empty(suite.account.Positions())
			suite.Empty(suite.account.Trades())
			suite.Len(suite.account.Executions(), 1)
		})
	}
}

func (suite *AccountTestSuite) TestExplicitBuyOfExactCash() {
	suite.Require().NoError(suite.account.SetCash(1000))

	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))
	suite.Equal(0.0, suite.account.Cash())
}

func (suite *AccountTestSuite) TestSellRejections() {
	suite.Equal(types.RejectReasonNoPosition, suite.account.Sell("X", 10, 0, day(2)).Reason())

	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))

	suite.Equal(types.RejectReasonInvalidPrice, suite.account.Sell("X", 0, 0, day(2)).Reason())
	suite.Equal(types.RejectReasonInvalidQuantity, suite.account.Sell("X", 10, -100, day(2)).Reason())
	suite.Equal(types.RejectReasonInvalidQuantity, suite.account.Sell("X", 10, 50, day(2)).Reason())
	suite.Equal(types.RejectReasonNoPosition, suite.account.Sell("Y", 10, 0, day(2)).Reason())
	suite.Equal(int64(100), suite.account.Position("X"))
	suite.Len(suite.account.Trades(), 1)
}

func (suite *AccountTestSuite) TestConservationAcrossTrades() {
	steps := []struct {
		buy    bool
		price  float64
		shares int64
		date   optional.Option[time.Time]
	}{
		{true, 10.37, 300, day(1)},
		{true, 11.05, 0, day(2)},
		{false, 11.2, 200, day(3)},
		{false, 9.99, 0, day(4)},
		{true, 9.5, 1000, day(4)},
		{false, 9.7, 0, day(4)},
	}

	for i, step := range steps {
		cashBefore := suite.account.Cash()
		positionBefore := suite.account.Position("X")

		var result types.ExecutionResult
		if step.buy {
			result = suite.account.Buy("X", step.price, step.shares, step.date)
		} else {
			result = suite.account.Sell("X", step.price, step.shares, step.date)
		}

		if trade, err := result.Trade.Take(); err == nil {
			if step.buy {
				suite.Equal(cashBefore-trade.Amount, suite.account.Cash(), "step %d", i)
				suite.Equal(positionBefore+trade.Shares, suite.account.Position("X"), "step %d", i)
			} else {
				suite.Equal(cashBefore+trade.Amount, suite.account.Cash(), "step %d", i)
				suite.Equal(positionBefore-trade.Shares, suite.account.Position("X"), "step %d", i)
			}

			suite.Zero(trade.Shares % 100)
		} else {
			suite.Equal(cashBefore, suite.account.Cash(), "step %d", i)
			suite.Equal(positionBefore, suite.account.Position("X"), "step %d", i)
		}

		suite.GreaterOrEqual(suite.account.Cash(), 0.0)
		suite.assertLotsMatchPositions()
	}

	// the last sell happens on the day of the only remaining buy
	suite.Equal(types.RejectReasonSameDayRestriction, suite.account.Executions()[len(steps)-1].Reason())
}

func (suite *AccountTestSuite) TestSellConsumesOldestLotsFirst() {
	suite.requireExecuted(suite.account.Buy("X", 10, 200, day(1)))
	suite.requireExecuted(suite.account.Buy("X", 11, 100, day(2)))

	suite.requireExecuted(suite.account.Sell("X", 12, 100, day(3)))

	lots := suite.account.Lots("X")
	suite.Require().Len(lots, 2)
	suite.Equal(day(1).Unwrap(), lots[0].AcquiredAt.Unwrap())
	suite.Equal(day(2).Unwrap(), lots[1].AcquiredAt.Unwrap())
}

func (suite *AccountTestSuite) TestSellOnlyTouchesLotsBoughtBeforeTheDay() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))
	suite.requireExecuted(suite.account.Buy("X", 10, 200, day(2)))

	trade := suite.requireExecuted(suite.account.Sell("X", 10, 0, day(2)))

	suite.Equal(int64(100), trade.Shares)
	suite.Equal(int64(200), suite.account.Position("X"))

	for _, lot := range suite.account.Lots("X") {
		suite.Equal(day(2).Unwrap(), lot.AcquiredAt.Unwrap())
	}
}

func (suite *AccountTestSuite) TestSellClampsToSellableAndRoundsToLots() {
	suite.requireExecuted(suite.account.Buy("X", 10, 300, day(1)))
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(5)))

	trade := suite.requireExecuted(suite.account.Sell("X", 10, 1000, day(5)))
	suite.Equal(int64(300), trade.Shares)

	suite.requireExecuted(suite.account.Buy("X", 10, 300, day(5)))

	trade = suite.requireExecuted(suite.account.Sell("X", 10, 250, day(6)))
	suite.Equal(int64(200), trade.Shares)
	suite.Equal(int64(200), suite.account.Position("X"))
	suite.assertLotsMatchPositions()
}

func (suite *AccountTestSuite) TestUndatedSellSkipsSameDayCheck() {
	suite.requireExecuted(suite.account.Buy("X", 10, 200, day(1)))

	trade := suite.requireExecuted(suite.account.Sell("X", 11, 100, undated()))

	suite.Equal(suite.now, trade.Timestamp)
	suite.Equal(int64(100), suite.account.Position("X"))

	warnings := suite.logs.FilterMessage("sell without a date, same-day check skipped")
	suite.Equal(1, warnings.Len())
	suite.Equal(zapcore.WarnLevel, warnings.All()[0].Level)

	var warned bool
	for _, entry := range suite.journal.entries {
		if entry.Level == types.LogLevelWarn && entry.Symbol == "X" {
			warned = true
		}
	}

	suite.True(warned)
}

func (suite *AccountTestSuite) TestUndatedBuyLotsAreSellableOnAnyDay() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, undated()))

	suite.requireExecuted(suite.account.Sell("X", 10, 0, day(1)))
	suite.Empty(suite.account.Positions())
}

func (suite *AccountTestSuite) TestAppliedCommission() {
	l := logger.NewNopLogger()
	account := NewAccount(AccountConfig{Commission: commission_fee.NewRateCommissionFee(0.0003, 5)}, l)
	suite.Require().NoError(account.SetCash(10_000))

	buy := suite.requireExecuted(account.Buy("X", 10, 0, day(1)))
	suite.Equal(int64(900), buy.Shares)
	suite.Equal(5.0, buy.Fee)
	suite.InDelta(995.0, account.Cash(), 1e-9)

	sell := suite.requireExecuted(account.Sell("X", 11, 0, day(2)))
	suite.Equal(5.0, sell.Fee)
	suite.InDelta(10_890.0, account.Cash(), 1e-9)

	suite.Require().NoError(account.SetCash(1_004))
	suite.Equal(types.RejectReasonInsufficientFunds, account.Buy("X", 10, 100, day(3)).Reason())
}

func (suite *AccountTestSuite) TestExecuteTrades() {
	signals := []types.Signal{
		{Symbol: "X", Type: types.SignalTypeBuy, Price: 10, Date: day(1), Shares: 100},
		{Symbol: "X", Type: types.SignalTypeHold, Price: 10, Date: day(1)},
		{Symbol: "X", Type: types.SignalTypeSell, Price: 11, Date: day(1)},
		{Symbol: "X", Type: types.SignalTypeSell, Price: 12, Date: day(2)},
		{Symbol: "X", Type: types.SignalTypeSell, Price: 12, Date: day(3)},
	}

	trades := suite.account.ExecuteTrades(signals)

	suite.Require().Len(trades, 2)
	suite.Equal(types.TradeActionBuy, trades[0].Action)
	suite.Equal(types.TradeActionSell, trades[1].Action)

	executions := suite.account.Executions()
	suite.Require().Len(executions, 4)
	suite.Equal(types.RejectReasonSameDayRestriction, executions[1].Reason())
	suite.Equal(types.RejectReasonNoPosition, executions[3].Reason())
	suite.Equal(1_000_000.0-1000+1200, suite.account.Cash())
}

func (suite *AccountTestSuite) TestRiskControlIsAdvisory() {
	suite.requireExecuted(suite.account.Buy("X", 50, 0, day(1)))
	cash := suite.account.Cash()
	positions := suite.account.Positions()

	notices := suite.account.RiskControl()

	suite.Require().Len(notices, 1)
	suite.Equal("X", notices[0].Symbol)
	suite.InDelta(1.0, notices[0].Fraction, 1e-9)
	suite.Equal(0.3, notices[0].Limit)
	suite.Equal(cash, suite.account.Cash())
	suite.Equal(positions, suite.account.Positions())
}

func (suite *AccountTestSuite) TestRiskControlWithinLimit() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))
	suite.Empty(suite.account.RiskControl())
}

func (suite *AccountTestSuite) TestOnFinishIsIdempotent() {
	suite.requireExecuted(suite.account.Buy("X", 10, 100, day(1)))

	first := suite.account.OnFinish()
	first.Positions["X"] = 0

	second := suite.account.OnFinish()
	third := suite.account.OnFinish()

	suite.Equal(second, third)
	suite.Equal(int64(100), second.Positions["X"])
	suite.Equal(1, second.TradeCount)
	suite.Equal(999_000.0, second.Cash)
	suite.Equal(map[string]int{"X": 1}, second.Lots)
}

func (suite *AccountTestSuite) TestLedgerMismatchRejectsSell() {
	suite.requireExecuted(suite.account.Buy("X", 10, 200, day(1)))

	_, err := suite.account.lots.PopOldest("X", 1)
	suite.Require().NoError(err)

	cash := suite.account.Cash()
	result := suite.account.Sell("X", 12, 0, day(2))

	suite.False(result.IsExecuted())
	suite.Equal(types.RejectReasonLedgerMismatch, result.Reason())
	suite.True(errors.HasCode(result.Err(), errors.ErrCodeLedgerMismatch))
	suite.Equal(int64(200), suite.account.Position("X"))
	suite.Equal(cash, suite.account.Cash())
	suite.Len(suite.account.Trades(), 1)
}

func (suite *AccountTestSuite) TestSetCashRejectsNegative() {
	suite.Error(suite.account.SetCash(-1))
	suite.Equal(1_000_000.0, suite.account.Cash())
}

func (suite *AccountTestSuite) TestRejectionIsJournaled() {
	suite.account.Sell("X", 10, 0, day(4))

	suite.Require().Len(suite.journal.entries, 1)
	entry := suite.journal.entries[0]
	suite.Equal("X", entry.Symbol)
	suite.Equal(day(4).Unwrap(), entry.Timestamp)
	suite.Equal(string(types.RejectReasonNoPosition), entry.Fields["reason"])
}
