package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
	// SignalTypeHold is never emitted downstream.
	SignalTypeHold SignalType = "hold"
)

type Signal struct {
	// Symbol is the instrument the signal applies to
	Symbol string
	// Type is the decision
	Type SignalType
	// Price is the reference price, the bar's close
	Price float64
	// Date is the bar date. None puts the sell side into the relaxed mode
	// that skips the same-day-sale check.
	Date optional.Option[time.Time]
	// Shares is the requested quantity. Zero auto-sizes a buy and sells
	// everything sellable.
	Shares int64
	// Reason is a short machine-readable cause such as golden_cross
	Reason string
}

func (s Signal) IsActionable() bool {
	return s.Type == SignalTypeBuy || s.Type == SignalTypeSell
}
