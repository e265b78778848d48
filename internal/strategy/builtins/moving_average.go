package builtins

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	MovingAverageType = "moving_average"

	ShortMAKey = "ma_short"
	LongMAKey  = "ma_long"

	ReasonGoldenCross = "golden_cross"
	ReasonDeathCross  = "death_cross"
)

type MovingAverageConfig struct {
	ShortWindow int `yaml:"short_window" json:"short_window" jsonschema:"title=Short Window,description=Window of the fast moving average in bars,default=5,minimum=1" validate:"gt=0"`
	LongWindow  int `yaml:"long_window" json:"long_window" jsonschema:"title=Long Window,description=Window of the slow moving average in bars,default=20,minimum=1" validate:"gt=0"`
}

func DefaultMovingAverageConfig() MovingAverageConfig {
	return MovingAverageConfig{
		ShortWindow: 5,
		LongWindow:  20,
	}
}

// MovingAverageStrategy buys on a golden cross and sells on a death cross of
// two trailing simple moving averages of the close.
type MovingAverageStrategy struct {
	config     MovingAverageConfig
	indicators indicator.IndicatorRegistry
	short      indicator.Indicator
	long       indicator.Indicator
	logger     *logger.Logger
}

var _ strategy.Strategy = (*MovingAverageStrategy)(nil)

func NewMovingAverageStrategy(indicators indicator.IndicatorRegistry, logger *logger.Logger) *MovingAverageStrategy {
	return &MovingAverageStrategy{
		config:     DefaultMovingAverageConfig(),
		indicators: indicators,
		logger:     logger,
	}
}

func (s *MovingAverageStrategy) Name() string {
	return MovingAverageType
}

func (s *MovingAverageStrategy) Config() MovingAverageConfig {
	return s.config
}

// Initialize reads short_window and long_window. Missing keys keep their defaults.
func (s *MovingAverageStrategy) Initialize(config string) error {
	parsed := DefaultMovingAverageConfig()

	if strings.TrimSpace(config) != "" {
		if err := yaml.Unmarshal([]byte(config), &parsed); err != nil {
			return errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse moving average parameters", err)
		}
	}

	if err := validator.New().Struct(parsed); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid moving average parameters", err)
	}

	s.config = parsed
	s.short = nil
	s.long = nil

	return s.buildIndicators()
}

func (s *MovingAverageStrategy) buildIndicators() error {
	if s.short != nil && s.long != nil {
		return nil
	}

	short, err := s.newMA(s.config.ShortWindow)
	if err != nil {
		return err
	}

	long, err := s.newMA(s.config.LongWindow)
	if err != nil {
		return err
	}

	s.short, s.long = short, long

	return nil
}

func (s *MovingAverageStrategy) newMA(period int) (indicator.Indicator, error) {
	ma, err := s.indicators.GetIndicator(indicator.IndicatorTypeMA)
	if err != nil {
		return nil, err
	}

	if err := ma.Config(period); err != nil {
		return nil, err
	}

	return ma, nil
}

// Preprocess attaches the short and long averages to every bar.
func (s *MovingAverageStrategy) Preprocess(bars []types.Bar) ([]types.EnrichedBar, error) {
	if err := s.buildIndicators(); err != nil {
		return nil, err
	}

	shortValues, err := s.short.Compute(bars)
	if err != nil {
		return nil, err
	}

	longValues, err := s.long.Compute(bars)
	if err != nil {
		return nil, err
	}

	enriched := make([]types.EnrichedBar, len(bars))
	for i, bar := range bars {
		enriched[i] = types.EnrichedBar{
			Bar: bar,
			Values: map[string]optional.Option[float64]{
				ShortMAKey: shortValues[i],
				LongMAKey:  longValues[i],
			},
		}
	}

	return enriched, nil
}

// GenerateSignals emits nothing when there are fewer bars than the long window.
func (s *MovingAverageStrategy) GenerateSignals(bars []types.EnrichedBar) ([]types.Signal, error) {
	signals := []types.Signal{}

	if len(bars) < s.config.LongWindow {
		s.logger.Info("Not enough bars for moving average crossover",
			zap.Int("bars", len(bars)),
			zap.Int("long_window", s.config.LongWindow),
		)

		return signals, nil
	}

	for i := 1; i < len(bars); i++ {
		prevShort, prevLong, ok := pair(bars[i-1])
		if !ok {
			continue
		}

		curShort, curLong, ok := pair(bars[i])
		if !ok {
			continue
		}

		var signalType types.SignalType

		var reason string

		switch {
		case prevShort <= prevLong && curShort > curLong:
			signalType, reason = types.SignalTypeBuy, ReasonGoldenCross
		case prevShort >= prevLong && curShort < curLong:
			signalType, reason = types.SignalTypeSell, ReasonDeathCross
		default:
			continue
		}

		signals = append(signals, types.Signal{
			Symbol: bars[i].Symbol,
			Type:   signalType,
			Price:  bars[i].Close,
			Date:   optional.Some(bars[i].Date),
			Reason: reason,
		})
	}

	return signals, nil
}

func pair(bar types.EnrichedBar) (float64, float64, bool) {
	short, err := bar.Value(ShortMAKey).Take()
	if err != nil {
		return 0, 0, false
	}

	long, err := bar.Value(LongMAKey).Take()
	if err != nil {
		return 0, 0, false
	}

	return short, long, true
}
