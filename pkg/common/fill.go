package common

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Fill is the realized execution of all or part of an order. Price already includes slippage.
type Fill struct {
	Id            string      `json:"id"`
	OrderId       string      `json:"order_id"`
	BrokerOrderId string      `json:"broker_order_id,omitempty"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Quantity      fixed.Point `json:"quantity"`
	Price         fixed.Point `json:"price"`
	Commission    fixed.Point `json:"commission"`
	Slippage      fixed.Point `json:"slippage"`
	Venue         string      `json:"venue,omitempty"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (f Fill) SignedQuantity() fixed.Point {
	return f.Quantity.Mul(f.Side.Sign())
}

func (f Fill) Notional() fixed.Point {
	return f.Quantity.Mul(f.Price)
}
