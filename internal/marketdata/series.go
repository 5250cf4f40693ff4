package marketdata

import (
	"math"
	"sort"
	"time"
)

// Series is a date-indexed table of daily closes, one column per symbol.
// The index is strictly ascending; columns are forward-filled after their
// first observation and NaN before it (leading gaps are never back-filled).
type Series struct {
	// Synthetic marks a table fabricated by the last-resort fallback rather
	// than fetched from the provider.
	Synthetic bool

	dates []time.Time
	cols  map[string][]float64
}

// BuildSeries assembles a Series from per-symbol observations. Symbols with
// no observations contribute no column. Duplicate observations for the same
// day keep the last one.
func BuildSeries(obs map[string][]PricePoint) *Series {
	daySet := make(map[time.Time]struct{})
	for _, points := range obs {
		for _, p := range points {
			daySet[dayOf(p.Day)] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	cols := make(map[string][]float64)
	for symbol, points := range obs {
		if len(points) == 0 {
			continue
		}
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, p := range points {
			col[index[dayOf(p.Day)]] = p.Close
		}
		// Forward fill from the first observation on.
		last := math.NaN()
		for i := range col {
			if !math.IsNaN(col[i]) {
				last = col[i]
			} else if !math.IsNaN(last) {
				col[i] = last
			}
		}
		cols[symbol] = col
	}
	return &Series{dates: dates, cols: cols}
}

// Empty reports whether the series holds no data at all.
func (s *Series) Empty() bool {
	return s == nil || len(s.dates) == 0 || len(s.cols) == 0
}

// Symbols returns the column names in sorted order.
func (s *Series) Symbols() []string {
	out := make([]string, 0, len(s.cols))
	for sym := range s.cols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of index dates.
func (s *Series) Len() int { return len(s.dates) }

// Has reports whether the series carries a column for symbol.
func (s *Series) Has(symbol string) bool {
	_, ok := s.cols[symbol]
	return ok
}

// AsOf returns the most recent close for symbol on or before day: a
// backward search against the date index, never forward-looking. The second
// return is false when the symbol is absent or has no data yet at that day.
func (s *Series) AsOf(symbol string, day time.Time) (float64, bool) {
	col, ok := s.cols[symbol]
	if !ok {
		return 0, false
	}
	day = dayOf(day)
	// Largest index with date <= day.
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(day) }) - 1
	for ; i >= 0; i-- {
		if !math.IsNaN(col[i]) {
			return col[i], true
		}
	}
	return 0, false
}

// Last returns the latest close for symbol.
func (s *Series) Last(symbol string) (float64, bool) {
	if len(s.dates) == 0 {
		return 0, false
	}
	return s.AsOf(symbol, s.dates[len(s.dates)-1])
}
