// Package ledger keeps cash and positions. Fills are the only thing that change quantities or
// cash, and each fill is applied exactly once in arrival order.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// ErrConsistency marks a broken ledger invariant. A run that sees it must halt.
var ErrConsistency = errors.New("ledger consistency violation")

type Ledger struct {
	initialCash fixed.Point
	cash        fixed.Point
	positions   map[string]*Position

	applied   map[string]struct{}
	lastFill  time.Time
	lastMark  time.Time
	fillCount int
	applying  bool
}

func New(initialCash fixed.Point) *Ledger {
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*Position),
		applied:     make(map[string]struct{}),
	}
}

// Apply books a fill. Any returned error wraps ErrConsistency and leaves the ledger unchanged.
func (l *Ledger) Apply(fill common.Fill) error {
	if l.applying {
		return fmt.Errorf("%w: fill %s applied while another fill is in progress", ErrConsistency, fill.Id)
	}
	if err := l.validate(fill); err != nil {
		return err
	}

	l.applying = true
	defer func() { l.applying = false }()

	position, ok := l.positions[fill.Symbol]
	if !ok {
		position = &Position{Symbol: fill.Symbol}
		l.positions[fill.Symbol] = position
	}

	signedQty := fill.SignedQuantity()
	position.apply(signedQty, fill.Price)
	position.Commissions = position.Commissions.Add(fill.Commission)

	l.cash = l.cash.Sub(signedQty.Mul(fill.Price)).Sub(fill.Commission)
	l.applied[fill.Id] = struct{}{}
	if fill.TimeStamp.After(l.lastFill) {
		l.lastFill = fill.TimeStamp
	}
	l.fillCount++
	return nil
}

func (l *Ledger) validate(fill common.Fill) error {
	switch {
	case fill.Id == "":
		return fmt.Errorf("%w: fill without id", ErrConsistency)
	case fill.Symbol == "":
		return fmt.Errorf("%w: fill %s without symbol", ErrConsistency, fill.Id)
	case !fill.Quantity.IsPos():
		return fmt.Errorf("%w: fill %s has non-positive quantity %s", ErrConsistency, fill.Id, fill.Quantity)
	case !fill.Price.IsPos():
		return fmt.Errorf("%w: fill %s has non-positive price %s", ErrConsistency, fill.Id, fill.Price)
	case fill.Commission.IsNeg():
		return fmt.Errorf("%w: fill %s has negative commission %s", ErrConsistency, fill.Id, fill.Commission)
	}
	if _, ok := l.applied[fill.Id]; ok {
		return fmt.Errorf("%w: fill %s already applied", ErrConsistency, fill.Id)
	}
	return nil
}

// Check reports the error Apply would return for fill without booking it.
func (l *Ledger) Check(fill common.Fill) error {
	if l.applying {
		return fmt.Errorf("%w: fill %s checked while another fill is in progress", ErrConsistency, fill.Id)
	}
	return l.validate(fill)
}

// Applied reports whether a fill id has been booked.
func (l *Ledger) Applied(fillId string) bool {
	_, ok := l.applied[fillId]
	return ok
}

// Mark updates the valuation price of a held symbol. It changes neither quantity nor cash.
func (l *Ledger) Mark(symbol string, price fixed.Point, ts time.Time) {
	if ts.After(l.lastMark) {
		l.lastMark = ts
	}
	if position, ok := l.positions[symbol]; ok && price.IsPos() {
		position.MarkPrice = price
	}
}

func (l *Ledger) Cash() fixed.Point {
	return l.cash
}

func (l *Ledger) Equity() fixed.Point {
	return l.Snapshot().Equity()
}

func (l *Ledger) Snapshot() Snapshot {
	positions := make(map[string]Position, len(l.positions))
	for symbol, position := range l.positions {
		positions[symbol] = *position
	}

	ts := l.lastMark
	if l.lastFill.After(ts) {
		ts = l.lastFill
	}

	return Snapshot{
		TimeStamp:   ts,
		InitialCash: l.initialCash,
		Cash:        l.cash,
		Positions:   positions,
		FillCount:   l.fillCount,
	}
}
