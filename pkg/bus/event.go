package bus

import "fmt"

// EventId doubles as the tie breaker between events sharing a timestamp: lower ids run first.
type EventId uint8

const (
	MarketEvent EventId = iota
	SignalEvent
	OrderEvent
	FillEvent
)

func (id EventId) String() string {
	switch id {
	case MarketEvent:
		return "market"
	case SignalEvent:
		return "signal"
	case OrderEvent:
		return "order"
	case FillEvent:
		return "fill"
	default:
		return fmt.Sprintf("event(%d)", uint8(id))
	}
}
