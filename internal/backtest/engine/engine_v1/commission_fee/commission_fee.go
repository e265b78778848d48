package commission_fee

import (
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type CommissionFee interface {
	// Calculate returns the commission charged on a trade of the given amount
	Calculate(amount float64) float64
}

// CostModel decides whether commission touches cash and metrics.
type CostModel string

const (
	// CostModelIgnored keeps every trade commission free.
	CostModelIgnored CostModel = "ignored"
	// CostModelApplied charges commission on every trade.
	CostModelApplied CostModel = "applied"
)

var AllCostModels = []any{
	CostModelIgnored,
	CostModelApplied,
}

func (m CostModel) Valid() bool {
	return m == CostModelIgnored || m == CostModelApplied
}

// GetCommissionFeeHandler returns the fee model for a cost model. The rate
// and minimum are only used when commission is applied.
func GetCommissionFeeHandler(model CostModel, rate float64, minimum float64) (CommissionFee, error) {
	switch model {
	case CostModelIgnored, "":
		return NewZeroCommissionFee(), nil
	case CostModelApplied:
		if rate < 0 || minimum < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "commission rate %v and minimum %v must not be negative", rate, minimum)
		}

		return NewRateCommissionFee(rate, minimum), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedCostModel, "unsupported cost model %q", model)
	}
}
