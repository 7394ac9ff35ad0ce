// Package market holds the bounded market history a run has seen so far.
package market

import (
	"sort"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Window is the read-only view of market state handed to strategies. It covers bars up to and
// including the current timestamp.
type Window interface {
	Time() time.Time
	Symbols() []string
	Latest(symbol string) (common.Bar, bool)
	// Closes returns close prices oldest first. The slice is a copy.
	Closes(symbol string) []fixed.Point
}

type State struct {
	depth   int
	now     time.Time
	history map[string][]common.Bar
}

func NewState(depth int) *State {
	if depth <= 0 {
		depth = 1
	}
	return &State{
		depth:   depth,
		history: make(map[string][]common.Bar),
	}
}

func (s *State) Depth() int {
	return s.depth
}

// Update appends a bar and advances the clock.
func (s *State) Update(bar common.Bar) {
	if bar.TimeStamp.After(s.now) {
		s.now = bar.TimeStamp
	}
	bars := append(s.history[bar.Symbol], bar)
	if len(bars) > s.depth {
		bars = append(bars[:0:0], bars[len(bars)-s.depth:]...)
	}
	s.history[bar.Symbol] = bars
}

// ForwardFill appends synthetic flat bars at every missing interval between the last known bar
// of symbol and until (exclusive). It returns how many bars were inserted.
func (s *State) ForwardFill(symbol string, until time.Time, interval time.Duration) int {
	last, ok := s.LastBar(symbol)
	if !ok || interval <= 0 {
		return 0
	}

	inserted := 0
	for ts := last.TimeStamp.Add(interval); ts.Before(until); ts = ts.Add(interval) {
		s.Update(common.Bar{
			Source:    "forward-fill",
			Symbol:    symbol,
			TimeStamp: ts,
			Period:    last.Period,
			Open:      last.Close,
			High:      last.Close,
			Low:       last.Close,
			Close:     last.Close,
			Volume:    fixed.Zero,
		})
		inserted++
	}
	return inserted
}

func (s *State) Time() time.Time {
	return s.now
}

func (s *State) Symbols() []string {
	symbols := make([]string, 0, len(s.history))
	for symbol := range s.history {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (s *State) LastBar(symbol string) (common.Bar, bool) {
	bars := s.history[symbol]
	if len(bars) == 0 {
		return common.Bar{}, false
	}
	return bars[len(bars)-1], true
}

func (s *State) Latest(symbol string) (common.Bar, bool) {
	return s.LastBar(symbol)
}

func (s *State) Closes(symbol string) []fixed.Point {
	bars := s.history[symbol]
	closes := make([]fixed.Point, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// Prices returns the latest close per symbol.
func (s *State) Prices() map[string]fixed.Point {
	prices := make(map[string]fixed.Point, len(s.history))
	for symbol, bars := range s.history {
		if len(bars) > 0 {
			prices[symbol] = bars[len(bars)-1].Close
		}
	}
	return prices
}
