package utils

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
)

// CalculateMaxLots returns the largest number of whole lots of lotSize
// shares whose amount plus commission fits in balance, and the commission
// of that purchase. It starts from the fee-free estimate and steps down one
// lot at a time.
func CalculateMaxLots(balance float64, price float64, lotSize int64, commissionFee commission_fee.CommissionFee) (int64, float64) {
	if price <= 0 || balance <= 0 || lotSize <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, 0
	}

	lots := int64(math.Floor(balance / price / float64(lotSize)))

	for ; lots > 0; lots-- {
		amount := price * float64(lots*lotSize)
		fee := commissionFee.Calculate(amount)

		if amount+fee <= balance {
			return lots, fee
		}
	}

	return 0, 0
}

// RoundDownToLots drops the odd shares that do not fill a whole lot.
func RoundDownToLots(shares int64, lotSize int64) int64 {
	if shares <= 0 || lotSize <= 0 {
		return 0
	}

	return shares - shares%lotSize
}

// IsWholeLots reports whether shares is a non-negative multiple of lotSize.
func IsWholeLots(shares int64, lotSize int64) bool {
	return shares >= 0 && lotSize > 0 && shares%lotSize == 0
}
