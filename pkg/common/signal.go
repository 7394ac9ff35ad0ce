package common

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Signal carries the desired exposure for a symbol. The sign is the direction and the
// magnitude the scaled position.
type Signal struct {
	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
	Exposure    fixed.Point         `json:"exposure"`
}
