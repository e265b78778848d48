package strategy

import (
	"slices"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// RunOutput is everything one pass of Run produced.
type RunOutput struct {
	Signals     []types.Signal
	Trades      []types.Trade
	Executions  []types.ExecutionResult
	RiskNotices []RiskNotice
	Summary     Summary
}

// Run drives strategy over bars against account in the fixed stage order:
// init, preprocess, generate signals, execute trades, risk control, finish.
// A failing stage aborts the run. Rejected trades never do.
func Run(strategy Strategy, account *Account, bars []types.Bar) (RunOutput, error) {
	if len(bars) == 0 {
		return RunOutput{}, errors.New(errors.ErrCodeEmptyBarSeries, "bar series is empty")
	}

	if initializer, ok := strategy.(Initializer); ok {
		if err := initializer.OnInit(account); err != nil {
			return RunOutput{}, stageError(strategy, "on_init", err)
		}
	}

	enriched, err := strategy.Preprocess(bars)
	if err != nil {
		return RunOutput{}, stageError(strategy, "preprocess", err)
	}

	signals, err := strategy.GenerateSignals(enriched)
	if err != nil {
		return RunOutput{}, stageError(strategy, "generate_signals", err)
	}

	signals = slices.DeleteFunc(slices.Clone(signals), func(signal types.Signal) bool {
		return !signal.IsActionable()
	})

	executedBefore := len(account.executions)
	trades := account.ExecuteTrades(signals)
	executions := slices.Clone(account.executions[executedBefore:])

	var notices []RiskNotice
	if controller, ok := strategy.(RiskController); ok {
		notices, err = controller.RiskControl(account)
		if err != nil {
			return RunOutput{}, stageError(strategy, "risk_control", err)
		}
	} else {
		notices = account.RiskControl()
	}

	return RunOutput{
		Signals:     signals,
		Trades:      trades,
		Executions:  executions,
		RiskNotices: notices,
		Summary:     account.OnFinish(),
	}, nil
}

func stageError(strategy Strategy, stage string, err error) error {
	return errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "strategy %s failed in %s", strategy.Name(), stage)
}
