package log

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestLogEntryString(t *testing.T) {
	day := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    LogEntry
		expected string
	}{
		{
			name:     "run level",
			entry:    LogEntry{Timestamp: day, Level: types.LogLevelInfo, Message: "run started"},
			expected: "[2024-02-05] INFO: run started",
		},
		{
			name: "with symbol and sorted fields",
			entry: LogEntry{
				Timestamp: day,
				Symbol:    "600519",
				Level:     types.LogLevelWarn,
				Message:   "sell rejected",
				Fields:    map[string]string{"reason": "same_day_restriction", "price": "1700"},
			},
			expected: "[2024-02-05] WARN 600519: sell rejected price=1700 reason=same_day_restriction",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.entry.String())
		})
	}
}
