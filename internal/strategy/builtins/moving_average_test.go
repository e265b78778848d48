package builtins

import (
	"slices"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MovingAverageTestSuite struct {
	suite.Suite
	strategy *MovingAverageStrategy
	start    time.Time
}

func TestMovingAverageSuite(t *testing.T) {
	suite.Run(t, new(MovingAverageTestSuite))
}

func (suite *MovingAverageTestSuite) SetupTest() {
	suite.strategy = NewMovingAverageStrategy(indicator.NewDefaultIndicatorRegistry(), logger.NewNopLogger())
	suite.Require().NoError(suite.strategy.Initialize(""))
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// crossCloses rises through the long average on the last bar, at 50.
func crossCloses() []float64 {
	closes := []float64{60}
	for range 19 {
		closes = append(closes, 48)
	}

	return append(closes, 50)
}

func (suite *MovingAverageTestSuite) signals(closes ...float64) []types.Signal {
	bars := mocks.BarsFromCloses("X", suite.start, closes...)

	enriched, err := suite.strategy.Preprocess(bars)
	suite.Require().NoError(err)

	signals, err := suite.strategy.GenerateSignals(enriched)
	suite.Require().NoError(err)

	return signals
}

func (suite *MovingAverageTestSuite) TestDefaults() {
	suite.Equal(DefaultMovingAverageConfig(), suite.strategy.Config())
	suite.Equal(MovingAverageType, suite.strategy.Name())
}

func (suite *MovingAverageTestSuite) TestInitializeParameters() {
	suite.Require().NoError(suite.strategy.Initialize("short_window: 3\nlong_window: 10"))
	suite.Equal(MovingAverageConfig{ShortWindow: 3, LongWindow: 10}, suite.strategy.Config())

	suite.Require().NoError(suite.strategy.Initialize(`{"long_window": 30}`))
	suite.Equal(MovingAverageConfig{ShortWindow: 5, LongWindow: 30}, suite.strategy.Config())
}

func (suite *MovingAverageTestSuite) TestInitializeRejectsBadParameters() {
	for _, config := range []string{"short_window: 0", "long_window: -2", "short_window: [1"} {
		err := suite.strategy.Initialize(config)
		suite.Require().Error(err, config)
		suite.Equal(errors.ErrCodeStrategyConfigError, errors.GetCode(err), config)
	}

	suite.Equal(DefaultMovingAverageConfig(), suite.strategy.Config())
}

func (suite *MovingAverageTestSuite) TestPreprocessAttachesAverages() {
	bars := mocks.BarsFromCloses("X", suite.start, crossCloses()...)

	enriched, err := suite.strategy.Preprocess(bars)
	suite.Require().NoError(err)
	suite.Require().Len(enriched, len(bars))

	suite.True(enriched[3].Value(ShortMAKey).IsNone())
	suite.InDelta(50.4, enriched[4].Value(ShortMAKey).Unwrap(), 1e-9)
	suite.InDelta(48.0, enriched[5].Value(ShortMAKey).Unwrap(), 1e-9)
	suite.True(enriched[18].Value(LongMAKey).IsNone())
	suite.InDelta(48.6, enriched[19].Value(LongMAKey).Unwrap(), 1e-9)
	suite.InDelta(48.1, enriched[20].Value(LongMAKey).Unwrap(), 1e-9)
	suite.Equal(bars[7], enriched[7].Bar)
}

func (suite *MovingAverageTestSuite) TestFlatSeriesHasNoSignals() {
	closes := slices.Repeat([]float64{100}, 25)

	suite.Empty(suite.signals(closes...))
}

func (suite *MovingAverageTestSuite) TestInsufficientHistory() {
	signals := suite.signals(slices.Repeat([]float64{10}, 19)...)

	suite.NotNil(signals)
	suite.Empty(signals)
}

func (suite *MovingAverageTestSuite) TestGoldenCross() {
	signals := suite.signals(crossCloses()...)

	suite.Require().Len(signals, 1)
	signal := signals[0]
	suite.Equal(types.SignalTypeBuy, signal.Type)
	suite.Equal(50.0, signal.Price)
	suite.Equal("X", signal.Symbol)
	suite.Equal(ReasonGoldenCross, signal.Reason)
	suite.Equal(suite.start.AddDate(0, 0, 20), signal.Date.Unwrap())
	suite.Zero(signal.Shares)
}

func (suite *MovingAverageTestSuite) TestDeathCross() {
	signals := suite.signals(append(crossCloses(), 40)...)

	suite.Require().Len(signals, 2)
	suite.Equal(types.SignalTypeSell, signals[1].Type)
	suite.Equal(40.0, signals[1].Price)
	suite.Equal(ReasonDeathCross, signals[1].Reason)
}

func (suite *MovingAverageTestSuite) TestCrossoverRunBuysWithAllCash() {
	account := strategy.NewAccount(strategy.AccountConfig{}, logger.NewNopLogger())
	suite.Require().NoError(account.SetCash(1_000_000))

	output, err := strategy.Run(suite.strategy, account, mocks.BarsFromCloses("X", suite.start, crossCloses()...))
	suite.Require().NoError(err)

	suite.Require().Len(output.Trades, 1)
	suite.Equal(int64(20_000), output.Trades[0].Shares)
	suite.Equal(0.0, output.Summary.Cash)
	suite.Equal(map[string]int64{"X": 20_000}, output.Summary.Positions)
}

func (suite *MovingAverageTestSuite) TestRegistry() {
	registry, err := NewRegistry(indicator.NewDefaultIndicatorRegistry(), logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.Equal([]string{MovingAverageType}, registry.Registered())
	suite.Len(registry.List(), 3)

	descriptor, err := registry.Get(MovingAverageType)
	suite.Require().NoError(err)
	suite.Contains(descriptor.Schema, "short_window")

	created, err := registry.Create(MovingAverageType, "short_window: 2\nlong_window: 4")
	suite.Require().NoError(err)
	suite.Equal(MovingAverageConfig{ShortWindow: 2, LongWindow: 4}, created.(*MovingAverageStrategy).Config())

	_, err = registry.Create(MomentumType, "")
	suite.Equal(errors.ErrCodeStrategyNotRegistered, errors.GetCode(err))
}
