package simulation

import "time"

// BacktestResult holds the per period series of a run, aligned by index with TimeStamps.
// Equity starts from 1 for the vectorized path and from the initial cash for event runs.
type BacktestResult struct {
	TimeStamps []time.Time       `json:"ts"`
	Equity     []float64         `json:"equity"`
	Returns    []float64         `json:"returns"`
	Positions  []float64         `json:"positions"`
	Turnover   []float64         `json:"turnover"`
	Stats      Stats             `json:"stats"`
	Metadata   map[string]string `json:"metadata"`
	// Costs is the total cost and slippage drag in return units.
	Costs float64 `json:"costs"`
}

func (r BacktestResult) Len() int {
	return len(r.TimeStamps)
}

// Trades counts the periods in which the position changed.
func (r BacktestResult) Trades() int {
	n := 0
	for _, t := range r.Turnover {
		if t != 0 {
			n++
		}
	}
	return n
}

func (r BacktestResult) TotalTurnover() float64 {
	sum := 0.0
	for _, t := range r.Turnover {
		sum += t
	}
	return sum
}
