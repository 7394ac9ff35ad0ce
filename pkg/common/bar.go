package common

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Bar is a market event. Bars are produced by a data source and never mutated afterwards.
type Bar struct {
	Source    string        `json:"src,omitempty"`
	Symbol    string        `json:"symbol"`
	TimeStamp time.Time     `json:"ts"`
	Period    time.Duration `json:"period,omitempty"`
	Open      fixed.Point   `json:"open"`
	High      fixed.Point   `json:"high"`
	Low       fixed.Point   `json:"low"`
	Close     fixed.Point   `json:"close"`
	Volume    fixed.Point   `json:"volume"`
}
