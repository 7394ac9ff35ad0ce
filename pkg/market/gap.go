package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
)

var ErrDataGap = errors.New("data gap")

type GapPolicy string

const (
	GapPolicyFail        GapPolicy = "fail"
	GapPolicyForwardFill GapPolicy = "forward_fill"
)

func (p GapPolicy) Validate() error {
	switch p {
	case GapPolicyFail, GapPolicyForwardFill:
		return nil
	case "":
		return errors.New("gap policy must be set explicitly")
	default:
		return fmt.Errorf("unknown gap policy %q", p)
	}
}

// DataGapError reports bars missing between two consecutive bars of a symbol.
type DataGapError struct {
	Symbol   string
	Previous time.Time
	Got      time.Time
	Interval time.Duration
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("%s: expected bar %s after %s, got %s (missing %d)",
		e.Symbol, e.Interval, e.Previous.UTC(), e.Got.UTC(), e.Missing())
}

func (e *DataGapError) Unwrap() error {
	return ErrDataGap
}

// Missing returns the number of bars that should have arrived between Previous and Got.
func (e *DataGapError) Missing() int {
	if e.Interval <= 0 {
		return 0
	}
	return int((e.Got.Sub(e.Previous) - 1) / e.Interval)
}

// GapDetector flags bars that arrive later than one interval after the previous bar of the same
// symbol. For session based data the interval must cover the longest regular break.
type GapDetector struct {
	interval time.Duration
	last     map[string]time.Time
}

func NewGapDetector(interval time.Duration) *GapDetector {
	return &GapDetector{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

func (d *GapDetector) Check(bar common.Bar) error {
	if d.interval <= 0 {
		return nil
	}

	previous, ok := d.last[bar.Symbol]
	d.last[bar.Symbol] = bar.TimeStamp
	if !ok || bar.TimeStamp.Sub(previous) <= d.interval {
		return nil
	}

	return &DataGapError{
		Symbol:   bar.Symbol,
		Previous: previous,
		Got:      bar.TimeStamp,
		Interval: d.interval,
	}
}
