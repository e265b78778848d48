package engine

import (
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/shopspring/decimal"
)

// CalculateMetrics derives the run metrics from the bars, the executed
// trades and the final account snapshot. Open positions are marked at the
// last close.
func CalculateMetrics(initialCapital float64, bars []types.Bar, trades []types.Trade, summary strategy.Summary) types.Metrics {
	var metrics types.Metrics

	if len(bars) == 0 {
		return metrics
	}

	first := decimal.NewFromFloat(bars[0].Close)
	last := decimal.NewFromFloat(bars[len(bars)-1].Close)
	initial := decimal.NewFromFloat(initialCapital)

	buyHold := decimal.Zero
	if !first.IsZero() {
		buyHold = last.Sub(first).Div(first)
	}

	equity := decimal.NewFromFloat(summary.Cash)
	for _, shares := range summary.Positions {
		equity = equity.Add(last.Mul(decimal.NewFromInt(shares)))
	}

	strategyReturn := decimal.Zero
	if len(trades) > 0 && !initial.IsZero() {
		strategyReturn = equity.Sub(initial).Div(initial)
	}

	pairing := pairTrades(trades)

	fees := decimal.Zero
	for _, trade := range trades {
		fees = fees.Add(decimal.NewFromFloat(trade.Fee))
	}

	metrics.BuyHoldReturn = buyHold.InexactFloat64()
	metrics.StrategyReturn = strategyReturn.InexactFloat64()
	metrics.ExcessReturn = strategyReturn.Sub(buyHold).InexactFloat64()
	metrics.MaxDrawdown = maxDrawdown(initial, trades).InexactFloat64()
	metrics.TotalTrades = len(trades)
	metrics.ClosedTrades = pairing.closed
	metrics.WinningTrades = pairing.wins
	metrics.LosingTrades = pairing.losses
	metrics.RealizedPnL = pairing.realized.InexactFloat64()
	metrics.TotalFees = fees.InexactFloat64()
	metrics.FinalEquity = equity.InexactFloat64()

	if pairing.closed > 0 {
		metrics.WinRate = float64(pairing.wins) / float64(pairing.closed)
	}

	return metrics
}

// maxDrawdown replays the cash effect of every trade starting from the
// initial capital. Position value is not re-marked between trades.
func maxDrawdown(initial decimal.Decimal, trades []types.Trade) decimal.Decimal {
	if len(trades) == 0 {
		return decimal.Zero
	}

	equity := initial
	peak := initial
	worst := decimal.Zero

	for _, trade := range trades {
		equity = equity.Add(decimal.NewFromFloat(trade.CashDelta()))

		if equity.GreaterThan(peak) {
			peak = equity
		}

		if peak.IsPositive() {
			drawdown := peak.Sub(equity).Div(peak)
			if drawdown.GreaterThan(worst) {
				worst = drawdown
			}
		}
	}

	return worst
}

type openBuy struct {
	price     decimal.Decimal
	remaining int64
	shares    int64
	fee       decimal.Decimal
}

type pairingResult struct {
	closed   int
	wins     int
	losses   int
	realized decimal.Decimal
}

// pairTrades matches every sell with the oldest unmatched bought shares of
// the same symbol. A sell's PnL is the price difference on the matched
// shares minus its own fee and the pro-rated fees of the matched buys.
func pairTrades(trades []types.Trade) pairingResult {
	result := pairingResult{realized: decimal.Zero}
	open := make(map[string][]*openBuy)

	for _, trade := range trades {
		price := decimal.NewFromFloat(trade.Price)

		if trade.Action == types.TradeActionBuy {
			open[trade.Symbol] = append(open[trade.Symbol], &openBuy{
				price:     price,
				remaining: trade.Shares,
				shares:    trade.Shares,
				fee:       decimal.NewFromFloat(trade.Fee),
			})

			continue
		}

		pnl := decimal.NewFromFloat(trade.Fee).Neg()
		queue := open[trade.Symbol]
		left := trade.Shares

		for left > 0 && len(queue) > 0 {
			buy := queue[0]
			matched := min(left, buy.remaining)
			quantity := decimal.NewFromInt(matched)

			pnl = pnl.Add(price.Sub(buy.price).Mul(quantity))
			pnl = pnl.Sub(buy.fee.Mul(quantity).Div(decimal.NewFromInt(buy.shares)))

			buy.remaining -= matched
			left -= matched

			if buy.remaining == 0 {
				queue = queue[1:]
			}
		}

		open[trade.Symbol] = queue

		result.closed++
		result.realized = result.realized.Add(pnl)

		switch {
		case pnl.IsPositive():
			result.wins++
		case pnl.IsNegative():
			result.losses++
		}
	}

	return result
}
