package bridge

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const (
	framePlace     = "place"
	frameCancel    = "cancel"
	frameFills     = "fills"
	frameClosed    = "closed"
	frameHeartbeat = "heartbeat"
	frameResponse  = "response"
	frameError     = "error"
)

// frame is the envelope exchanged with the bridge. On the wire it is a protobuf Struct.
type frame struct {
	Id      uint64
	Type    string
	Payload map[string]any
}

func encodeFrame(f frame) ([]byte, error) {
	payload := f.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	s, err := structpb.NewStruct(map[string]any{
		"id":      float64(f.Id),
		"type":    f.Type,
		"payload": payload,
	})
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	return proto.Marshal(s)
}

func decodeFrame(data []byte) (frame, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}

	fields := s.GetFields()
	f := frame{
		Id:   uint64(fields["id"].GetNumberValue()),
		Type: fields["type"].GetStringValue(),
	}
	if payload := fields["payload"].GetStructValue(); payload != nil {
		f.Payload = payload.AsMap()
	}
	return f, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func pointField(m map[string]any, key string) (fixed.Point, error) {
	switch v := m[key].(type) {
	case string:
		return fixed.FromString(v)
	case float64:
		return fixed.FromFloat64(v), nil
	case nil:
		return fixed.Zero, nil
	default:
		return fixed.Zero, fmt.Errorf("field %s: unexpected %T", key, v)
	}
}

func orderPayload(order common.OrderRequest, clientOrderId string) map[string]any {
	return map[string]any{
		"order_id":        order.Id,
		"client_order_id": clientOrderId,
		"symbol":          order.Symbol,
		"side":            order.Side.String(),
		"quantity":        order.Quantity.String(),
		"type":            "market",
	}
}

func fillFromPayload(m map[string]any) (common.Fill, error) {
	quantity, err := pointField(m, "quantity")
	if err != nil {
		return common.Fill{}, err
	}
	price, err := pointField(m, "price")
	if err != nil {
		return common.Fill{}, err
	}
	commission, err := pointField(m, "commission")
	if err != nil {
		return common.Fill{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, stringField(m, "ts"))
	if err != nil {
		return common.Fill{}, fmt.Errorf("field ts: %w", err)
	}

	side := common.OrderSideBuy
	if stringField(m, "side") == common.OrderSideSell.String() {
		side = common.OrderSideSell
	}

	return common.Fill{
		Id:            stringField(m, "id"),
		OrderId:       stringField(m, "order_id"),
		BrokerOrderId: stringField(m, "broker_order_id"),
		Symbol:        stringField(m, "symbol"),
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Commission:    commission,
		Venue:         "BRIDGE",
		TimeStamp:     ts.UTC(),
	}, nil
}

func closureFromPayload(m map[string]any) (common.Closure, error) {
	remaining, err := pointField(m, "remaining")
	if err != nil {
		return common.Closure{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, stringField(m, "ts"))
	if err != nil {
		return common.Closure{}, fmt.Errorf("field ts: %w", err)
	}
	return common.Closure{
		BrokerOrderId: stringField(m, "broker_order_id"),
		Remaining:     remaining,
		Reason:        stringField(m, "reason"),
		TimeStamp:     ts.UTC(),
	}, nil
}
