// Package ledger tracks round lots per instrument for the same-day-sale rule.
//
// Every lot is LotSize shares stamped with its acquisition day. Lots of one
// instrument are kept oldest first, so the lots sellable on a day always form
// a prefix of the queue and a sale is a plain dequeue from the front.
package ledger

import (
	"slices"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// LotSize is the number of shares in one board lot.
const LotSize = 100

// compactThreshold is the number of consumed slots a queue tolerates before
// it copies its live lots into a fresh slice.
const compactThreshold = 64

type Lot struct {
	Symbol string
	// AcquiredAt is the calendar day of the purchase. None marks a lot bought
	// without a date; such lots sort first and are sellable on any day.
	AcquiredAt optional.Option[time.Time]
}

// Ledger is a set of per-instrument FIFO lot queues. It is not safe for
// concurrent use.
type Ledger struct {
	queues map[string]*queue
}

func New() *Ledger {
	return &Ledger{queues: make(map[string]*queue)}
}

// Add appends count lots for symbol acquired on date.
func (l *Ledger) Add(symbol string, date optional.Option[time.Time], count int) {
	if count <= 0 {
		return
	}

	q, ok := l.queues[symbol]
	if !ok {
		q = &queue{}
		l.queues[symbol] = q
	}

	acquired := optional.Map(date, truncateToDay)
	for range count {
		q.insert(Lot{Symbol: symbol, AcquiredAt: acquired})
	}
}

// Count returns the number of lots held for symbol.
func (l *Ledger) Count(symbol string) int {
	q, ok := l.queues[symbol]
	if !ok {
		return 0
	}

	return q.len()
}

// Shares returns the number of shares the lots of symbol represent.
func (l *Ledger) Shares(symbol string) int64 {
	return int64(l.Count(symbol)) * LotSize
}

// SellableCount returns how many lots of symbol were acquired strictly
// before the calendar day of date.
func (l *Ledger) SellableCount(symbol string, date time.Time) int {
	q, ok := l.queues[symbol]
	if !ok {
		return 0
	}

	day := truncateToDay(date)
	live := q.live()

	return sort.Search(len(live), func(i int) bool {
		acquired, err := live[i].AcquiredAt.Take()

		return err == nil && !acquired.Before(day)
	})
}

// PopOldest removes and returns the count oldest lots of symbol.
func (l *Ledger) PopOldest(symbol string, count int) ([]Lot, error) {
	if count < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "cannot pop %d lots", count)
	}

	held := l.Count(symbol)
	if count > held {
		return nil, errors.Newf(errors.ErrCodeInternal, "cannot pop %d lots of %s, only %d held", count, symbol, held)
	}

	if count == 0 {
		return nil, nil
	}

	return l.queues[symbol].pop(count), nil
}

// Lots returns a copy of the lots of symbol, oldest first.
func (l *Ledger) Lots(symbol string) []Lot {
	q, ok := l.queues[symbol]
	if !ok {
		return nil
	}

	return slices.Clone(q.live())
}

// Remove drops every lot of symbol.
func (l *Ledger) Remove(symbol string) {
	delete(l.queues, symbol)
}

// Symbols returns the instruments that have an entry, sorted.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.queues))
	for symbol := range l.queues {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

type queue struct {
	lots []Lot
	head int
}

func (q *queue) len() int {
	return len(q.lots) - q.head
}

func (q *queue) live() []Lot {
	return q.lots[q.head:]
}

// insert places lot after every lot acquired on or before its day.
// In-order purchases append at the back.
func (q *queue) insert(lot Lot) {
	live := q.live()

	n := len(live)
	if n == 0 || !laterThan(live[n-1], lot) {
		q.lots = append(q.lots, lot)

		return
	}

	pos := sort.Search(n, func(i int) bool { return laterThan(live[i], lot) })
	q.lots = slices.Insert(q.lots, q.head+pos, lot)
}

func (q *queue) pop(count int) []Lot {
	popped := slices.Clone(q.lots[q.head : q.head+count])
	q.head += count

	if q.head >= compactThreshold && q.head*2 >= len(q.lots) {
		q.lots = slices.Clone(q.lots[q.head:])
		q.head = 0
	}

	return popped
}

// laterThan reports whether a was acquired strictly after b.
func laterThan(a, b Lot) bool {
	aDay, aErr := a.AcquiredAt.Take()
	if aErr != nil {
		return false
	}

	bDay, bErr := b.AcquiredAt.Take()
	if bErr != nil {
		return true
	}

	return aDay.After(bDay)
}

// truncateToDay returns the calendar day t names, stamped in UTC so days
// written with different offsets compare by date.
func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
