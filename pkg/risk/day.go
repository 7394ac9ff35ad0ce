package risk

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// DayState is the daily loss view consumed by Evaluate.
type DayState struct {
	Day        time.Time
	OpenEquity fixed.Point
	PnL        fixed.Point
	Latched    bool
}

// DayGuard tracks realized plus unrealized P&L for the current trading day. Once the loss limit
// is breached the day stays latched until the next day boundary, even if P&L recovers.
type DayGuard struct {
	threshold fixed.Point
	location  *time.Location

	started    bool
	day        time.Time
	openEquity fixed.Point
	lastEquity fixed.Point
	latched    bool
}

func NewDayGuard(limits Limits, location *time.Location) *DayGuard {
	if location == nil {
		location = time.UTC
	}
	return &DayGuard{
		threshold: limits.DailyLossThreshold(),
		location:  location,
	}
}

// Observe records equity at ts and returns the state of the day ts belongs to.
func (g *DayGuard) Observe(ts time.Time, equity fixed.Point) DayState {
	day := truncateDay(ts, g.location)

	switch {
	case !g.started:
		g.started = true
		g.day = day
		g.openEquity = equity
	case day.After(g.day):
		g.day = day
		g.openEquity = g.lastEquity
		g.latched = false
	}

	g.lastEquity = equity
	pnl := equity.Sub(g.openEquity)
	if pnl.Lte(g.threshold) {
		g.latched = true
	}

	return g.State()
}

func (g *DayGuard) State() DayState {
	return DayState{
		Day:        g.day,
		OpenEquity: g.openEquity,
		PnL:        g.lastEquity.Sub(g.openEquity),
		Latched:    g.latched,
	}
}

func truncateDay(ts time.Time, location *time.Location) time.Time {
	y, m, d := ts.In(location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, location)
}
