package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// listItem implements list.Item for result files.
type listItem struct {
	path        string
	description string
}

func (i listItem) Title() string       { return i.path }
func (i listItem) Description() string { return i.description }
func (i listItem) FilterValue() string { return i.path }

// NewResultList creates the list of result files relative to root.
func NewResultList(root string, paths []string) list.Model {
	items := make([]list.Item, 0, len(paths))
	for _, path := range paths {
		items = append(items, listItem{path: path, description: describePath(root, path)})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select Result"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)

	return l
}

// describePath turns root/<strategy>/[period/]<data>/<symbol>/result.yaml
// into "strategy / period / data / symbol".
func describePath(root string, path string) string {
	rel := strings.TrimPrefix(path, root)
	rel = strings.Trim(rel, "/\\")

	parts := strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, " / ")
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// NewTradeTable creates the table of executed trades.
func NewTradeTable() table.Model {
	return newTable([]table.Column{
		{Title: "Date", Width: 12},
		{Title: "Symbol", Width: 10},
		{Title: "Action", Width: 6},
		{Title: "Price", Width: 10},
		{Title: "Shares", Width: 10},
		{Title: "Amount", Width: 14},
		{Title: "Fee", Width: 10},
	})
}

// NewRejectionTable creates the table of rejected signals.
func NewRejectionTable() table.Model {
	return newTable([]table.Column{
		{Title: "Date", Width: 12},
		{Title: "Symbol", Width: 10},
		{Title: "Action", Width: 6},
		{Title: "Reason", Width: 20},
		{Title: "Message", Width: 40},
	})
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format(time.DateOnly)
}

// TradeRows renders trades in the order they were executed.
func TradeRows(trades []types.Trade) []table.Row {
	rows := make([]table.Row, 0, len(trades))

	for _, trade := range trades {
		rows = append(rows, table.Row{
			formatDate(trade.Timestamp),
			trade.Symbol,
			string(trade.Action),
			fmt.Sprintf("%.2f", trade.Price),
			fmt.Sprintf("%d", trade.Shares),
			fmt.Sprintf("%.2f", trade.Amount),
			fmt.Sprintf("%.2f", trade.Fee),
		})
	}

	return rows
}

func RejectionRows(rejections []types.Rejection) []table.Row {
	rows := make([]table.Row, 0, len(rejections))

	for _, rejection := range rejections {
		rows = append(rows, table.Row{
			formatDate(rejection.Date),
			rejection.Symbol,
			string(rejection.Action),
			string(rejection.Reason),
			rejection.Message,
		})
	}

	return rows
}

// RenderMetrics renders the summary panel of a result.
func RenderMetrics(result types.BacktestResult) string {
	line := func(label string, value string) string {
		return LabelStyle.Render(label) + value
	}

	m := result.Metrics

	left := strings.Join([]string{
		line("Strategy", result.StrategyName),
		line("Symbol", result.Symbol),
		line("Period", fmt.Sprintf("%s .. %s (%d bars)",
			formatDate(result.DataInfo.StartDate), formatDate(result.DataInfo.EndDate), result.DataInfo.BarCount)),
		line("Initial capital", fmt.Sprintf("%.2f", result.InitialCapital)),
		line("Final cash", fmt.Sprintf("%.2f", result.FinalCash)),
		line("Final equity", fmt.Sprintf("%.2f", m.FinalEquity)),
		line("Cost model", result.Settings.CostModel),
	}, "\n")

	right := strings.Join([]string{
		line("Strategy return", FormatReturn(m.StrategyReturn)),
		line("Buy & hold", FormatReturn(m.BuyHoldReturn)),
		line("Excess return", FormatReturn(m.ExcessReturn)),
		line("Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)),
		line("Trades", fmt.Sprintf("%d (%d signals)", m.TotalTrades, result.SignalCount)),
		line("Win rate", fmt.Sprintf("%.2f%% (%d/%d)", m.WinRate*100, m.WinningTrades, m.ClosedTrades)),
		line("Realized PnL", fmt.Sprintf("%.2f", m.RealizedPnL)),
		line("Fees", fmt.Sprintf("%.2f", m.TotalFees)),
	}, "\n")

	return PanelStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))
}
