package engine

import (
	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/simulation"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Result of an event driven backtest. The embedded series hold one point per distinct
// timestamp: Positions is net exposure as a fraction of equity, Turnover is traded notional
// as a fraction of equity.
type Result struct {
	simulation.BacktestResult

	// Holdings are the position quantities after each instant.
	Holdings  []map[string]fixed.Point `json:"holdings"`
	Decisions []common.RiskDecision    `json:"decisions"`
	Fills     []common.Fill            `json:"fills"`
	Ledger    ledger.Snapshot          `json:"ledger"`
	Gaps      int                      `json:"gaps"`

	Router      bus.Statistics      `json:"-"`
	ExecutionID utility.ExecutionID `json:"eid"`
}

// Allowed counts the orders that passed risk.
func (r Result) Allowed() int {
	n := 0
	for _, decision := range r.Decisions {
		if decision.Allowed {
			n++
		}
	}
	return n
}

// Denied groups denied orders by reason.
func (r Result) Denied() map[common.ReasonCode]int {
	denied := make(map[common.ReasonCode]int)
	for _, decision := range r.Decisions {
		if !decision.Allowed {
			denied[decision.Reason]++
		}
	}
	return denied
}
