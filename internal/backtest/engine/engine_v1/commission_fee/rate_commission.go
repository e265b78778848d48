package commission_fee

import "math"

// RateCommissionFee charges a fraction of the trade amount with a floor per trade.
type RateCommissionFee struct {
	rate    float64
	minimum float64
}

func NewRateCommissionFee(rate float64, minimum float64) CommissionFee {
	return &RateCommissionFee{
		rate:    rate,
		minimum: minimum,
	}
}

func (c *RateCommissionFee) Calculate(amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	return math.Max(amount*c.rate, c.minimum)
}
