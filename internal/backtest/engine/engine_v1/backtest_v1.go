package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	log           *logger.Logger
	state         *BacktestState
	journal       *BacktestLog
	commissionFee commission_fee.CommissionFee
	clock         func() time.Time
	initialized   bool
}

// NewBacktestEngineV1 returns an engine that logs to logger. A nil logger
// discards engine logs.
func NewBacktestEngineV1(l *logger.Logger) engine.Engine {
	if l == nil {
		l = logger.NewNopLogger()
	}

	return &BacktestEngineV1{
		config: EmptyConfig(),
		log:    l,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		b.log.Error("Invalid engine config", zap.Error(err))

		return err
	}

	commissionFee, err := commission_fee.GetCommissionFeeHandler(parsed.CostModel, parsed.CommissionRate, parsed.MinimumCommission)
	if err != nil {
		return err
	}

	if err := b.openJournals(); err != nil {
		return err
	}

	b.config = parsed
	b.commissionFee = commissionFee
	b.initialized = true

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_capital", parsed.InitialCapital),
		zap.String("cost_model", string(parsed.CostModel)),
	)

	return nil
}

// openJournals creates the state and log journals on first use. A
// re-initialized engine starts from empty journals.
func (b *BacktestEngineV1) openJournals() error {
	var err error

	if b.state == nil {
		if b.state, err = NewBacktestState(b.log); err != nil {
			return err
		}

		if err := b.state.Initialize(); err != nil {
			return err
		}
	} else if err := b.state.Cleanup(); err != nil {
		return err
	}

	if b.journal == nil {
		b.journal, err = NewBacktestLog(b.log)

		return err
	}

	return b.journal.Cleanup()
}

// Config returns the active configuration.
func (b *BacktestEngineV1) Config() BacktestEngineV1Config {
	return b.config
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, strat strategy.Strategy, bars []types.Bar, symbol string) (types.BacktestResult, error) {
	if err := b.preRunCheck(strat); err != nil {
		return types.BacktestResult{}, err
	}

	if len(bars) == 0 {
		b.log.Error("Backtest aborted, bar series is empty", zap.String("symbol", symbol))

		return types.BacktestResult{}, errors.New(errors.ErrCodeEmptyBarSeries, "bar series is empty")
	}

	if err := ctx.Err(); err != nil {
		return types.BacktestResult{}, err
	}

	bars, err := b.prepareBars(bars, symbol)
	if err != nil {
		b.log.Error("Backtest aborted", zap.String("symbol", symbol), zap.Error(err))

		return types.BacktestResult{}, err
	}

	symbol = bars[0].Symbol
	runID := uuid.New().String()
	b.journal.Begin(runID)

	b.record(bars[0].Date, symbol, types.LogLevelInfo, "backtest started", map[string]string{
		"strategy": strat.Name(),
		"bars":     itoa(len(bars)),
	})

	account := strategy.NewAccount(strategy.AccountConfig{
		Commission:  b.commissionFee,
		MaxPosition: b.config.MaxPosition,
		Journal:     b.journal,
		Clock:       b.clock,
	}, b.log)

	if err := account.SetCash(b.config.InitialCapital); err != nil {
		return types.BacktestResult{}, err
	}

	output, err := strategy.Run(strat, account, bars)
	if err != nil {
		b.log.Error("Strategy failed",
			zap.String("strategy", strat.Name()),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		b.record(bars[len(bars)-1].Date, symbol, types.LogLevelError, "backtest failed", map[string]string{"error": err.Error()})

		return types.BacktestResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return types.BacktestResult{}, err
	}

	if err := b.state.Record(runID, output.Executions); err != nil {
		return types.BacktestResult{}, err
	}

	trades, rejections, summary, err := b.readJournal(runID, output)
	if err != nil {
		b.log.Error("Backtest journal is inconsistent", zap.String("id", runID), zap.Error(err))

		return types.BacktestResult{}, err
	}

	metrics := CalculateMetrics(b.config.InitialCapital, bars, trades, output.Summary)

	b.record(bars[len(bars)-1].Date, symbol, types.LogLevelInfo, "backtest finished", map[string]string{
		"trades":          itoa(len(trades)),
		"rejections":      itoa(summary.Rejections),
		"turnover":        ftoa(summary.Turnover),
		"fees":            ftoa(summary.Fees),
		"strategy_return": ftoa(metrics.StrategyReturn),
	})

	lines, err := b.journal.Lines(runID)
	if err != nil {
		return types.BacktestResult{}, err
	}

	result := types.BacktestResult{
		ID:             runID,
		EngineVersion:  version.GetVersion(),
		StrategyName:   strat.Name(),
		Symbol:         symbol,
		CreatedAt:      b.clock(),
		InitialCapital: b.config.InitialCapital,
		FinalCash:      output.Summary.Cash,
		FinalPositions: output.Summary.Positions,
		Trades:         trades,
		Rejections:     rejections,
		SignalCount:    len(output.Signals),
		Metrics:        metrics,
		DataInfo: types.DataInfo{
			BarCount:   len(bars),
			StartDate:  bars[0].Date,
			EndDate:    bars[len(bars)-1].Date,
			FirstClose: bars[0].Close,
			LastClose:  bars[len(bars)-1].Close,
		},
		Settings: b.config.Settings(),
		Logs:     lines,
	}

	if result.FinalPositions == nil {
		result.FinalPositions = map[string]int64{}
	}

	b.log.Info("Backtest finished",
		zap.String("id", runID),
		zap.String("strategy", strat.Name()),
		zap.String("symbol", symbol),
		zap.Int("trades", metrics.TotalTrades),
		zap.Int("rejections", summary.Rejections),
		zap.Float64("turnover", summary.Turnover),
		zap.Float64("fees", summary.Fees),
		zap.Float64("strategy_return", metrics.StrategyReturn),
		zap.Float64("buy_hold_return", metrics.BuyHoldReturn),
	)

	return result.Clone(), nil
}

// readJournal reads the trades and rejections of runID back from the state
// journal and checks them against the executions of the run.
func (b *BacktestEngineV1) readJournal(runID string, output strategy.RunOutput) ([]types.Trade, []types.Rejection, TradeSummary, error) {
	trades, err := b.state.GetTrades(runID)
	if err != nil {
		return nil, nil, TradeSummary{}, err
	}

	rejections, err := b.state.GetRejections(runID)
	if err != nil {
		return nil, nil, TradeSummary{}, err
	}

	summary, err := b.state.Summary(runID)
	if err != nil {
		return nil, nil, TradeSummary{}, err
	}

	if summary.Buys+summary.Sells != len(output.Trades) || len(trades) != len(output.Trades) {
		return nil, nil, TradeSummary{}, errors.Newf(errors.ErrCodeInternal,
			"journal holds %d trades, run executed %d", len(trades), len(output.Trades))
	}

	if summary.Rejections != len(rejections) || len(rejections)+len(trades) != len(output.Executions) {
		return nil, nil, TradeSummary{}, errors.Newf(errors.ErrCodeInternal,
			"journal holds %d rejections for %d executions", len(rejections), len(output.Executions))
	}

	return trades, rejections, summary, nil
}

// prepareBars filters bars to the configured period, tags them with symbol
// and orders them by date. The input slice is not modified.
func (b *BacktestEngineV1) prepareBars(bars []types.Bar, symbol string) ([]types.Bar, error) {
	start, startErr := b.config.StartTime.Take()
	end, endErr := b.config.EndTime.Take()

	prepared := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		if startErr == nil && bar.Date.Before(start) {
			continue
		}

		if endErr == nil && bar.Date.After(end) {
			continue
		}

		if symbol != "" {
			bar.Symbol = symbol
		}

		if err := bar.Validate(); err != nil {
			return nil, err
		}

		prepared = append(prepared, bar)
	}

	if len(prepared) == 0 {
		return nil, errors.Newf(errors.ErrCodeEmptyBarSeries, "no bars between %s and %s",
			formatBound(b.config.StartTime.TakeOr(time.Time{})), formatBound(b.config.EndTime.TakeOr(time.Time{})))
	}

	sort.SliceStable(prepared, func(i, j int) bool { return prepared[i].Date.Before(prepared[j].Date) })

	if prepared[0].Symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "symbol is required when bars carry none")
	}

	// one run simulates one instrument
	for _, bar := range prepared[1:] {
		if bar.Symbol != prepared[0].Symbol {
			return nil, errors.Newf(errors.ErrCodeInvalidBar, "bar of %s on %s does not belong to %s",
				displaySymbol(bar.Symbol), bar.Date.Format(time.DateOnly), prepared[0].Symbol)
		}
	}

	return prepared, nil
}

// Write implements engine.Engine. Results produced by another engine are
// journaled first so their trades can be exported too.
func (b *BacktestEngineV1) Write(dir string, result types.BacktestResult) error {
	if b.state == nil || b.journal == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "engine is not initialized")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create result directory", err)
	}

	if err := types.WriteBacktestResult(filepath.Join(dir, engine.ResultFileName), result); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write result", err)
	}

	known, err := b.state.HasRun(result.ID)
	if err != nil {
		return err
	}

	if !known {
		if err := b.state.RecordResult(result); err != nil {
			return err
		}
	}

	if err := b.state.Write(dir, result.ID); err != nil {
		return err
	}

	return b.journal.Write(dir, result.ID)
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to generate schema", err)
	}

	return schema, nil
}

// Close implements engine.Engine.
func (b *BacktestEngineV1) Close() error {
	var firstErr error

	if err := b.state.Close(); err != nil {
		firstErr = err
	}

	if err := b.journal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	b.state, b.journal = nil, nil
	b.initialized = false

	return firstErr
}

func (b *BacktestEngineV1) preRunCheck(strat strategy.Strategy) error {
	if !b.initialized || b.state == nil || b.journal == nil {
		b.log.Error("Engine is not initialized")

		return errors.New(errors.ErrCodeBacktestStateNil, "engine is not initialized")
	}

	if strat == nil {
		b.log.Error("No strategy given")

		return errors.New(errors.ErrCodeStrategyNotFound, "no strategy given")
	}

	return nil
}

func (b *BacktestEngineV1) record(at time.Time, symbol string, level types.LogLevel, message string, fields map[string]string) {
	if err := b.journal.Log(log.LogEntry{Timestamp: at, Symbol: symbol, Level: level, Message: message, Fields: fields}); err != nil {
		b.log.Warn("Failed to record journal entry", zap.Error(err))
	}
}
