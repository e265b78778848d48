package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ResultFolder returns root/<strategy>/[<start>_<end>/]<data file>/<symbol>,
// the directory a batch run writes one result into.
func (c BacktestEngineV1Config) ResultFolder(root string, strategyName string, dataPath string, symbol string) string {
	folder := filepath.Join(root, strategyName)

	if c.StartTime.IsSome() || c.EndTime.IsSome() {
		startStr := "all"
		endStr := "all"

		if start, err := c.StartTime.Take(); err == nil {
			startStr = start.Format("20060102")
		}

		if end, err := c.EndTime.Take(); err == nil {
			endStr = end.Format("20060102")
		}

		folder = filepath.Join(folder, fmt.Sprintf("%s_%s", startStr, endStr))
	}

	dataFileName := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))
	folder = filepath.Join(folder, dataFileName)

	if symbol != "" {
		folder = filepath.Join(folder, symbol)
	}

	return folder
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func ftoa(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}

	return t.Format(time.DateOnly)
}

func displaySymbol(symbol string) string {
	if symbol == "" {
		return "an unnamed symbol"
	}

	return symbol
}
