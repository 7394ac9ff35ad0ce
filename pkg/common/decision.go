package common

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonKillSwitch          ReasonCode = "kill_switch"
	ReasonMaxDailyLoss        ReasonCode = "max_daily_loss"
	ReasonMaxGrossNotional    ReasonCode = "max_gross_notional"
	ReasonMaxPositionNotional ReasonCode = "max_position_notional"
	ReasonBrokerRejected      ReasonCode = "broker_rejected"
	ReasonBrokerUnavailable   ReasonCode = "broker_unavailable"
	ReasonBrokerClosed        ReasonCode = "broker_closed"
)

// DecisionContext holds the values a risk decision was based on.
type DecisionContext struct {
	Notional            fixed.Point `json:"notional"`
	SymbolNotionalAfter fixed.Point `json:"symbol_notional_after"`
	GrossAfter          fixed.Point `json:"gross_after"`
	DailyPnL            fixed.Point `json:"daily_pnl"`
}

// RiskDecision is produced exactly once per OrderRequest.
type RiskDecision struct {
	OrderId string          `json:"order_id"`
	Allowed bool            `json:"allowed"`
	Reason  ReasonCode      `json:"reason,omitempty"`
	Context DecisionContext `json:"context"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
