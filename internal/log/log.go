package log

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// LogEntry is one line of a backtest run journal.
type LogEntry struct {
	// Timestamp is the bar date the entry refers to, or the wall time for
	// entries outside the bar loop.
	Timestamp time.Time
	// Symbol is the instrument the entry refers to, empty for run-level entries.
	Symbol string
	Level  types.LogLevel
	// Message is the log message content.
	Message string
	// Fields contains optional structured key-value data.
	Fields map[string]string
}

// String renders the entry as "[2006-01-02] LEVEL symbol: message k=v".
func (e LogEntry) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Timestamp.Format(time.DateOnly), strings.ToUpper(string(e.Level)))

	if e.Symbol != "" {
		fmt.Fprintf(&b, " %s", e.Symbol)
	}

	fmt.Fprintf(&b, ": %s", e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Fields[k])
	}

	return b.String()
}

// Log stores the journal of a run.
type Log interface {
	Log(entry LogEntry) error
	GetLogs() ([]LogEntry, error)
}
