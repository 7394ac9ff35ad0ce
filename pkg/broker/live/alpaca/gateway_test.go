package alpaca

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

type mockTradingAPI struct {
	placed     []alpaca.PlaceOrderRequest
	placeErr   error
	cancelErr  error
	activities []alpaca.AccountActivity
	lastReq    alpaca.GetAccountActivitiesRequest
	orders     []alpaca.Order
	ordersReq  alpaca.GetOrdersRequest
	block      chan struct{}
}

func (m *mockTradingAPI) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	if m.block != nil {
		<-m.block
	}
	m.placed = append(m.placed, req)
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	return &alpaca.Order{ID: "alp-1", ClientOrderID: req.ClientOrderID, Symbol: req.Symbol}, nil
}

func (m *mockTradingAPI) CancelOrder(string) error {
	return m.cancelErr
}

func (m *mockTradingAPI) GetAccountActivities(req alpaca.GetAccountActivitiesRequest) ([]alpaca.AccountActivity, error) {
	m.lastReq = req
	return m.activities, nil
}

func (m *mockTradingAPI) GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error) {
	m.ordersReq = req
	return m.orders, nil
}

var testOrder = common.OrderRequest{Id: "ORD-7", Symbol: "AAPL", Side: common.OrderSideSell, Quantity: fixed.FromInt(15, 0)}

func TestGateway_PlaceTranslatesOrder(t *testing.T) {
	api := &mockTradingAPI{}
	g := newGateway(zap.NewNop(), api)

	id, err := g.Place(context.Background(), testOrder, "client-7")
	require.NoError(t, err)
	assert.Equal(t, "alp-1", id)

	require.Len(t, api.placed, 1)
	req := api.placed[0]
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, alpaca.Sell, req.Side)
	assert.Equal(t, alpaca.Market, req.Type)
	assert.Equal(t, "client-7", req.ClientOrderID)
	assert.True(t, req.Qty.Equal(decimal.NewFromInt(15)))
}

func TestGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantRejection  bool
		wantConnection bool
	}{
		{name: "buying power", err: &alpaca.APIError{StatusCode: http.StatusForbidden, Message: "insufficient buying power"}, wantRejection: true},
		{name: "rate limited", err: &alpaca.APIError{StatusCode: http.StatusTooManyRequests}, wantConnection: true},
		{name: "server error", err: &alpaca.APIError{StatusCode: http.StatusBadGateway}, wantConnection: true},
		{name: "network", err: errors.New("dial tcp: i/o timeout"), wantConnection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(zap.NewNop(), &mockTradingAPI{placeErr: tt.err})
			_, err := g.Place(context.Background(), testOrder, "c")
			assert.Equal(t, tt.wantRejection, broker.IsRejection(err))
			assert.Equal(t, tt.wantConnection, broker.IsConnectivity(err))
		})
	}
}

func TestGateway_PlaceHonoursContext(t *testing.T) {
	api := &mockTradingAPI{block: make(chan struct{})}
	defer close(api.block)
	g := newGateway(zap.NewNop(), api)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Place(ctx, testOrder, "c")
	assert.True(t, broker.IsConnectivity(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_FillsMapActivities(t *testing.T) {
	ts := time.Date(2024, 9, 3, 14, 31, 0, 0, time.UTC)
	api := &mockTradingAPI{activities: []alpaca.AccountActivity{
		{
			ID:              "20240903::act-1",
			ActivityType:    "FILL",
			OrderID:         "alp-1",
			Symbol:          "AAPL",
			Side:            "sell",
			Qty:             decimal.NewFromInt(15),
			Price:           decimal.RequireFromString("221.37"),
			TransactionTime: ts,
		},
	}}
	g := newGateway(zap.NewNop(), api)

	_, err := g.Place(context.Background(), testOrder, "c")
	require.NoError(t, err)

	fills, err := g.Fills(context.Background(), ts)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	fill := fills[0]
	assert.Equal(t, "ORD-7", fill.OrderId)
	assert.Equal(t, "alp-1", fill.BrokerOrderId)
	assert.Equal(t, common.OrderSideSell, fill.Side)
	assert.True(t, fill.Price.Eq(fixed.FromFloat64(221.37)))
	assert.True(t, fill.Quantity.Eq(fixed.FromInt(15, 0)))
	assert.Equal(t, ts, fill.TimeStamp)

	assert.Equal(t, []string{"FILL"}, api.lastReq.ActivityTypes)
	assert.True(t, api.lastReq.After.Before(ts))
}

func TestGateway_CancelUnknownOrder(t *testing.T) {
	g := newGateway(zap.NewNop(), &mockTradingAPI{cancelErr: &alpaca.APIError{StatusCode: http.StatusUnprocessableEntity}})
	assert.ErrorIs(t, g.Cancel(context.Background(), "alp-9"), broker.ErrUnknownOrder)
}

func TestGateway_ClosedReportsUnfilledRemainders(t *testing.T) {
	since := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)
	cancelledAt := since.Add(time.Hour)
	qty := decimal.NewFromInt(15)
	api := &mockTradingAPI{orders: []alpaca.Order{
		{ID: "alp-1", Status: "canceled", Qty: &qty, FilledQty: decimal.NewFromInt(5), CanceledAt: &cancelledAt},
		{ID: "alp-2", Status: "filled", Qty: &qty, FilledQty: qty},
		{ID: "alp-3", Status: "expired", Qty: &qty, FilledQty: qty},
		{ID: "alp-4", Status: "expired", Qty: &qty, UpdatedAt: since},
	}}
	g := newGateway(zap.NewNop(), api)

	closures, err := g.Closed(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "closed", api.ordersReq.Status)
	assert.Equal(t, since.Add(-time.Nanosecond), api.ordersReq.After)

	require.Len(t, closures, 2)
	assert.Equal(t, "alp-1", closures[0].BrokerOrderId)
	assert.True(t, closures[0].Remaining.Eq(fixed.FromInt(10, 0)))
	assert.Equal(t, "canceled", closures[0].Reason)
	assert.Equal(t, cancelledAt, closures[0].TimeStamp)
	assert.Equal(t, "alp-4", closures[1].BrokerOrderId)
	assert.True(t, closures[1].Remaining.Eq(fixed.FromInt(15, 0)))
	assert.Equal(t, since, closures[1].TimeStamp)
}
