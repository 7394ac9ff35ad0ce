// Package bridge is a Gateway that talks to an out-of-process broker bridge over a websocket,
// exchanging protobuf Struct frames correlated by message id.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
)

const clientComponentName = "broker.live.bridge"

type Client struct {
	conn   *connection
	logger *zap.Logger
}

func Dial(ctx context.Context, logger *zap.Logger, url string, heartbeat time.Duration) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &broker.ConnectivityError{Op: "dial " + url, Attempts: 1, Err: err}
	}

	logger = logger.Named(clientComponentName)
	c := newConnection(conn, logger)
	c.start(heartbeat)

	logger.Info("connected", zap.String("url", url))
	return &Client{conn: c, logger: logger}, nil
}

func (client *Client) Close() {
	client.conn.stop()
}

func (client *Client) Place(ctx context.Context, order common.OrderRequest, clientOrderId string) (string, error) {
	resp, err := client.call(ctx, framePlace, orderPayload(order, clientOrderId))
	if err != nil {
		if errors.Is(err, errBridgeRejected) {
			return "", &broker.RejectionError{OrderId: order.Id, Reason: stringField(resp.Payload, "reason")}
		}
		return "", err
	}

	brokerOrderId := stringField(resp.Payload, "broker_order_id")
	if brokerOrderId == "" {
		return "", fmt.Errorf("place %s: response without broker order id", order.Id)
	}
	return brokerOrderId, nil
}

func (client *Client) Cancel(ctx context.Context, brokerOrderId string) error {
	_, err := client.call(ctx, frameCancel, map[string]any{"broker_order_id": brokerOrderId})
	if errors.Is(err, errBridgeRejected) {
		return fmt.Errorf("cancel %s: %w", brokerOrderId, broker.ErrUnknownOrder)
	}
	return err
}

func (client *Client) Fills(ctx context.Context, since time.Time) ([]common.Fill, error) {
	resp, err := client.call(ctx, frameFills, map[string]any{"since": since.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return nil, err
	}

	raw, _ := resp.Payload["fills"].([]any)
	fills := make([]common.Fill, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("fills: unexpected item %T", item)
		}
		fill, err := fillFromPayload(m)
		if err != nil {
			return nil, fmt.Errorf("fills: %w", err)
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

// Closed lists orders submitted since that the bridge reports cancelled or expired with quantity left.
func (client *Client) Closed(ctx context.Context, since time.Time) ([]common.Closure, error) {
	resp, err := client.call(ctx, frameClosed, map[string]any{"since": since.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return nil, err
	}

	raw, _ := resp.Payload["orders"].([]any)
	closures := make([]common.Closure, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("closed: unexpected item %T", item)
		}
		closure, err := closureFromPayload(m)
		if err != nil {
			return nil, fmt.Errorf("closed: %w", err)
		}
		closures = append(closures, closure)
	}
	return closures, nil
}

var errBridgeRejected = errors.New("bridge rejected request")

func (client *Client) call(ctx context.Context, kind string, payload map[string]any) (frame, error) {
	resp, err := client.conn.request(ctx, kind, payload)
	if err != nil {
		return frame{}, &broker.ConnectivityError{Op: kind, Attempts: 1, Err: err}
	}
	if resp.Type == frameError {
		return resp, errBridgeRejected
	}
	return resp, nil
}
