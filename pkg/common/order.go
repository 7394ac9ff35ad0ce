package common

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

type OrderSide int

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

func (s OrderSide) String() string {
	if s == OrderSideSell {
		return "sell"
	}
	return "buy"
}

// Sign is +1 for buys and -1 for sells.
func (s OrderSide) Sign() fixed.Point {
	if s == OrderSideSell {
		return fixed.NegOne
	}
	return fixed.One
}

func (s OrderSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OrderSide) UnmarshalText(text []byte) error {
	side, err := ParseOrderSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

func ParseOrderSide(value string) (OrderSide, error) {
	switch value {
	case "buy":
		return OrderSideBuy, nil
	case "sell":
		return OrderSideSell, nil
	default:
		return OrderSideBuy, fmt.Errorf("unknown order side %q", value)
	}
}

// SideOf returns the side that moves a position by the signed quantity.
func SideOf(signedQuantity fixed.Point) OrderSide {
	if signedQuantity.IsNeg() {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderRequest is a concrete instruction derived from a signal. Quantity is always positive,
// the direction is carried by Side.
type OrderRequest struct {
	Id             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Quantity       fixed.Point `json:"quantity"`
	ReferencePrice fixed.Point `json:"reference_price"`
	SignalTime     time.Time   `json:"signal_ts"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

// SignedQuantity returns the quantity with the sign of the side.
func (o OrderRequest) SignedQuantity() fixed.Point {
	return o.Quantity.Mul(o.Side.Sign())
}

// Notional returns the absolute value of the order at the reference price.
func (o OrderRequest) Notional() fixed.Point {
	return o.Quantity.Mul(o.ReferencePrice).Abs()
}

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionRejected  SubmissionStatus = "rejected"
	SubmissionFailed    SubmissionStatus = "failed"
	// SubmissionClosed marks an accepted order that left the venue with quantity unfilled.
	SubmissionClosed SubmissionStatus = "closed"
)

// Submission records the outcome of handing an allowed order to a broker.
type Submission struct {
	OrderId       string           `json:"order_id"`
	BrokerOrderId string           `json:"broker_order_id,omitempty"`
	Status        SubmissionStatus `json:"status"`
	Reason        ReasonCode       `json:"reason,omitempty"`
	Error         string           `json:"error,omitempty"`
	Attempts      int              `json:"attempts"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

// Closure reports an order that left the venue with quantity it will never fill: cancelled,
// expired, or refused after it was accepted. Remaining is that unfilled quantity.
type Closure struct {
	OrderId       string      `json:"order_id"`
	BrokerOrderId string      `json:"broker_order_id"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Remaining     fixed.Point `json:"remaining"`
	Reason        string      `json:"reason,omitempty"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (c Closure) SignedRemaining() fixed.Point {
	return c.Remaining.Mul(c.Side.Sign())
}
