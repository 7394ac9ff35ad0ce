package ledger

import (
	"sort"
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Snapshot is a read-only copy of the ledger. It never shares state with the ledger it was
// taken from.
type Snapshot struct {
	TimeStamp   time.Time           `json:"ts"`
	InitialCash fixed.Point         `json:"initial_cash"`
	Cash        fixed.Point         `json:"cash"`
	Positions   map[string]Position `json:"positions"`
	FillCount   int                 `json:"fill_count"`
}

func (s Snapshot) Position(symbol string) Position {
	if p, ok := s.Positions[symbol]; ok {
		return p
	}
	return Position{Symbol: symbol}
}

func (s Snapshot) Quantity(symbol string) fixed.Point {
	return s.Position(symbol).Quantity
}

func (s Snapshot) Notional(symbol string) fixed.Point {
	return s.Position(symbol).Notional()
}

func (s Snapshot) GrossNotional() fixed.Point {
	gross := fixed.Zero
	for _, symbol := range s.Symbols() {
		gross = gross.Add(s.Positions[symbol].Notional())
	}
	return gross
}

func (s Snapshot) Equity() fixed.Point {
	equity := s.Cash
	for _, symbol := range s.Symbols() {
		equity = equity.Add(s.Positions[symbol].MarketValue())
	}
	return equity
}

func (s Snapshot) RealizedPnL() fixed.Point {
	pnl := fixed.Zero
	for _, symbol := range s.Symbols() {
		pnl = pnl.Add(s.Positions[symbol].RealizedPnL)
	}
	return pnl
}

// Symbols returns the held symbols in lexical order.
func (s Snapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Positions))
	for symbol := range s.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
