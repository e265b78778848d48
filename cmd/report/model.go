package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
)

// Application states.
const (
	StateLoading = iota
	StateResultSelect
	StateReport
)

// Report tabs.
const (
	TabTrades = iota
	TabRejections
)

// Model is the Bubble Tea model of the result viewer.
type Model struct {
	state          int
	root           string
	paths          []string
	resultList     list.Model
	tradeTable     table.Model
	rejectionTable table.Model
	tab            int
	result         types.BacktestResult
	path           string
	warning        string
	err            error
	width          int
	height         int
}

// NewModel creates a Model that browses the result files under root. root
// may also name a single result file.
func NewModel(root string) Model {
	return Model{
		state:          StateLoading,
		root:           root,
		resultList:     NewResultList(root, nil),
		tradeTable:     NewTradeTable(),
		rejectionTable: NewRejectionTable(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return findResults(m.root)
}

// findResults walks root for result files.
func findResults(root string) tea.Cmd {
	return func() tea.Msg {
		info, err := os.Stat(root)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		if !info.IsDir() {
			return ResultsFoundMsg{Paths: []string{root}}
		}

		var paths []string

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && d.Name() == engine.ResultFileName {
				paths = append(paths, path)
			}

			return nil
		})
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		if len(paths) == 0 {
			return LoadErrorMsg{Err: fmt.Errorf("no %s found under %s", engine.ResultFileName, root)}
		}

		sort.Strings(paths)

		return ResultsFoundMsg{Paths: paths}
	}
}

// loadResult reads one result file and checks which engine wrote it.
func loadResult(path string) tea.Cmd {
	return func() tea.Msg {
		result, err := types.ReadBacktestResult(path)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		msg := ResultLoadedMsg{Path: path, Result: result}

		if result.EngineVersion != "" {
			if err := version.CheckVersionCompatibility(version.GetVersion(), result.EngineVersion); err != nil {
				msg.Warning = err.Error()
			}
		}

		return msg
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// q types into the list filter while filtering
			if m.resultList.FilterState() != list.Filtering {
				return m, tea.Quit
			}
		case "esc":
			if m.state == StateReport && len(m.paths) > 1 {
				m.state = StateResultSelect
				m.warning = ""
				m.err = nil
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resultList.SetSize(msg.Width, msg.Height-4)
		m.tradeTable.SetWidth(msg.Width)
		m.tradeTable.SetHeight(max(msg.Height-16, 3))
		m.rejectionTable.SetWidth(msg.Width)
		m.rejectionTable.SetHeight(max(msg.Height-16, 3))
		return m, nil

	case ResultsFoundMsg:
		m.paths = msg.Paths
		m.resultList.SetItems(NewResultList(m.root, msg.Paths).Items())

		// a single result opens directly
		if len(msg.Paths) == 1 {
			return m, loadResult(msg.Paths[0])
		}

		m.state = StateResultSelect
		return m, nil

	case ResultLoadedMsg:
		m.result = msg.Result
		m.path = msg.Path
		m.warning = msg.Warning
		m.err = nil
		m.tab = TabTrades
		m.tradeTable.SetRows(TradeRows(msg.Result.Trades))
		m.tradeTable.GotoTop()
		m.rejectionTable.SetRows(RejectionRows(msg.Result.Rejections))
		m.rejectionTable.GotoTop()
		m.state = StateReport
		return m, nil

	case LoadErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	switch m.state {
	case StateResultSelect:
		return m.updateResultSelect(msg)
	case StateReport:
		return m.updateReport(msg)
	}

	return m, nil
}

func (m Model) updateResultSelect(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" && m.resultList.FilterState() != list.Filtering {
		if item, ok := m.resultList.SelectedItem().(listItem); ok {
			return m, loadResult(item.path)
		}
	}

	var cmd tea.Cmd
	m.resultList, cmd = m.resultList.Update(msg)
	return m, cmd
}

func (m Model) updateReport(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "tab" {
		if m.tab == TabTrades {
			m.tab = TabRejections
		} else {
			m.tab = TabTrades
		}

		return m, nil
	}

	var cmd tea.Cmd
	if m.tab == TabTrades {
		m.tradeTable, cmd = m.tradeTable.Update(msg)
	} else {
		m.rejectionTable, cmd = m.rejectionTable.Update(msg)
	}

	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateLoading:
		s.WriteString(TitleStyle.Render("Backtest Report"))
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			s.WriteString(fmt.Sprintf("Searching %s...", m.root))
		}

		s.WriteString("\n\n")
		s.WriteString(HelpStyle.Render("q: quit"))

	case StateResultSelect:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Backtest Report - %d results", len(m.paths))))
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		s.WriteString(m.resultList.View())
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render("Enter: open | /: filter | q: quit"))

	case StateReport:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Backtest %s - %s", m.result.StrategyName, m.result.Symbol)))
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render(m.path))
		s.WriteString("\n\n")

		if m.warning != "" {
			s.WriteString(WarningStyle.Render("Warning: " + m.warning))
			s.WriteString("\n\n")
		}

		s.WriteString(RenderMetrics(m.result))
		s.WriteString("\n\n")
		s.WriteString(m.renderTabs())
		s.WriteString("\n")

		if m.tab == TabTrades {
			if len(m.result.Trades) == 0 {
				s.WriteString("No trades.\n")
			} else {
				s.WriteString(m.tradeTable.View())
			}
		} else {
			if len(m.result.Rejections) == 0 {
				s.WriteString("No rejections.\n")
			} else {
				s.WriteString(m.rejectionTable.View())
			}
		}

		s.WriteString("\n")

		help := "Tab: switch table | q: quit"
		if len(m.paths) > 1 {
			help = "Tab: switch table | Esc: back | q: quit"
		}

		s.WriteString(HelpStyle.Render(help))
	}

	return s.String()
}

func (m Model) renderTabs() string {
	trades := fmt.Sprintf("Trades (%d)", len(m.result.Trades))
	rejections := fmt.Sprintf("Rejections (%d)", len(m.result.Rejections))

	if m.tab == TabTrades {
		return ActiveTabStyle.Render(trades) + "   " + InactiveTabStyle.Render(rejections)
	}

	return InactiveTabStyle.Render(trades) + "   " + ActiveTabStyle.Render(rejections)
}
