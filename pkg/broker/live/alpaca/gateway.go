// Package alpaca is a Gateway backed by the Alpaca trading API.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const (
	gatewayComponentName = "broker.live.alpaca"
	venue                = "ALPACA"
	fillActivity         = "FILL"
	closedOrders         = "closed"
	closedOrdersLimit    = 500
)

// terminal statuses that leave quantity unfilled
var unfilledStatuses = map[string]struct{}{
	"canceled": {},
	"expired":  {},
	"rejected": {},
}

// tradingAPI is the subset of the Alpaca client the gateway calls.
type tradingAPI interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	GetAccountActivities(req alpaca.GetAccountActivitiesRequest) ([]alpaca.AccountActivity, error)
	GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error)
}

type Credentials struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

type Gateway struct {
	logger *zap.Logger
	api    tradingAPI

	// order ids by broker id, so fills can be attributed
	mu     sync.Mutex
	orders map[string]string
}

func NewGateway(logger *zap.Logger, credentials Credentials) *Gateway {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    credentials.APIKey,
		APISecret: credentials.APISecret,
		BaseURL:   credentials.BaseURL,
	})
	return newGateway(logger, client)
}

func newGateway(logger *zap.Logger, api tradingAPI) *Gateway {
	return &Gateway{
		logger: logger.Named(gatewayComponentName),
		api:    api,
		orders: make(map[string]string),
	}
}

func (g *Gateway) Place(ctx context.Context, order common.OrderRequest, clientOrderId string) (string, error) {
	qty := toDecimal(order.Quantity)
	side := alpaca.Buy
	if order.Side == common.OrderSideSell {
		side = alpaca.Sell
	}

	placed, err := call(ctx, func() (*alpaca.Order, error) {
		return g.api.PlaceOrder(alpaca.PlaceOrderRequest{
			Symbol:        order.Symbol,
			Qty:           &qty,
			Side:          side,
			Type:          alpaca.Market,
			TimeInForce:   alpaca.Day,
			ClientOrderID: clientOrderId,
		})
	})
	if err != nil {
		return "", classify("place "+order.Id, order.Id, err)
	}

	g.mu.Lock()
	g.orders[placed.ID] = order.Id
	g.mu.Unlock()
	return placed.ID, nil
}

func (g *Gateway) Cancel(ctx context.Context, brokerOrderId string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, g.api.CancelOrder(brokerOrderId)
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			return fmt.Errorf("cancel %s: %w", brokerOrderId, broker.ErrUnknownOrder)
		}
		return classify("cancel "+brokerOrderId, "", err)
	}
	return nil
}

func (g *Gateway) Fills(ctx context.Context, since time.Time) ([]common.Fill, error) {
	req := alpaca.GetAccountActivitiesRequest{ActivityTypes: []string{fillActivity}}
	if !since.IsZero() {
		// After is exclusive on the venue side
		req.After = since.Add(-time.Nanosecond)
	}

	activities, err := call(ctx, func() ([]alpaca.AccountActivity, error) {
		return g.api.GetAccountActivities(req)
	})
	if err != nil {
		return nil, classify("fills", "", err)
	}

	fills := make([]common.Fill, 0, len(activities))
	for _, activity := range activities {
		fill, err := g.fillFromActivity(activity)
		if err != nil {
			g.logger.Warn("skipping malformed activity", zap.String("activity_id", activity.ID), zap.Error(err))
			continue
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

func (g *Gateway) Closed(ctx context.Context, since time.Time) ([]common.Closure, error) {
	req := alpaca.GetOrdersRequest{Status: closedOrders, Limit: closedOrdersLimit, Direction: "asc"}
	if !since.IsZero() {
		req.After = since.Add(-time.Nanosecond)
	}

	orders, err := call(ctx, func() ([]alpaca.Order, error) {
		return g.api.GetOrders(req)
	})
	if err != nil {
		return nil, classify("closed orders", "", err)
	}

	closures := make([]common.Closure, 0, len(orders))
	for _, order := range orders {
		if _, ok := unfilledStatuses[order.Status]; !ok || order.Qty == nil {
			continue
		}
		remaining, err := fromDecimal(order.Qty.Sub(order.FilledQty))
		if err != nil {
			g.logger.Warn("skipping malformed order", zap.String("broker_order_id", order.ID), zap.Error(err))
			continue
		}
		if !remaining.IsPos() {
			continue
		}
		closures = append(closures, common.Closure{
			BrokerOrderId: order.ID,
			Remaining:     remaining,
			Reason:        order.Status,
			TimeStamp:     closedAt(order),
		})
	}
	return closures, nil
}

func closedAt(order alpaca.Order) time.Time {
	for _, at := range []*time.Time{order.CanceledAt, order.ExpiredAt, order.FailedAt} {
		if at != nil {
			return at.UTC()
		}
	}
	return order.UpdatedAt.UTC()
}

func (g *Gateway) fillFromActivity(activity alpaca.AccountActivity) (common.Fill, error) {
	quantity, err := fromDecimal(activity.Qty.Abs())
	if err != nil {
		return common.Fill{}, fmt.Errorf("qty: %w", err)
	}
	price, err := fromDecimal(activity.Price)
	if err != nil {
		return common.Fill{}, fmt.Errorf("price: %w", err)
	}

	side := common.OrderSideBuy
	if activity.Side == string(alpaca.Sell) || activity.Side == "sell_short" {
		side = common.OrderSideSell
	}

	g.mu.Lock()
	orderId, ok := g.orders[activity.OrderID]
	g.mu.Unlock()
	if !ok {
		orderId = activity.OrderID
	}

	return common.Fill{
		Id:            activity.ID,
		OrderId:       orderId,
		BrokerOrderId: activity.OrderID,
		Symbol:        activity.Symbol,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Commission:    fixed.Zero,
		Venue:         venue,
		TimeStamp:     activity.TransactionTime.UTC(),
	}, nil
}

// classify maps client errors onto broker errors: 4xx responses are rejections, the rest are
// connectivity failures.
func classify(op, orderId string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode != http.StatusRequestTimeout {
		return &broker.RejectionError{OrderId: orderId, Reason: apiErr.Message}
	}
	return &broker.ConnectivityError{Op: op, Attempts: 1, Err: err}
}

// call runs a blocking client call and abandons it when ctx ends first.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func toDecimal(p fixed.Point) decimal.Decimal {
	return decimal.RequireFromString(p.String())
}

func fromDecimal(d decimal.Decimal) (fixed.Point, error) {
	return fixed.FromString(d.String())
}
