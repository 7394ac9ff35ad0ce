package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var t0 = time.Date(2024, 5, 6, 13, 30, 0, 0, time.UTC)

type mockPrices map[string]common.Bar

func (m mockPrices) LastBar(symbol string) (common.Bar, bool) {
	bar, ok := m[symbol]
	return bar, ok
}

func (m mockPrices) set(symbol string, close float64, volume int64, offset int) {
	m[symbol] = common.Bar{
		Symbol:    symbol,
		TimeStamp: t0.Add(time.Duration(offset) * time.Minute),
		Close:     fixed.FromFloat64(close),
		Volume:    fixed.FromInt64(volume, 0),
	}
}

func createTestSimulator(t *testing.T, prices mockPrices, options ...Option) *Simulator {
	t.Helper()
	sim, err := NewSimulator(zap.NewNop(), prices, options...)
	require.NoError(t, err)
	return sim
}

func createOrder(id string, side common.OrderSide, qty int64) common.OrderRequest {
	return common.OrderRequest{
		Id:       id,
		Symbol:   "SPY",
		Side:     side,
		Quantity: fixed.FromInt64(qty, 0),
	}
}

func TestSandboxSimulator_NextTickFillsOnFollowingBar(t *testing.T) {
	ctx := context.Background()
	prices := mockPrices{}
	prices.set("SPY", 100, 1000000, 0)

	slippage, _ := cost.NewSlippageModel(fixed.FromInt(10, 0))
	commission, _ := cost.NewCostModel(fixed.FromInt(5, 0))
	sim := createTestSimulator(t, prices, WithSlippageModel(slippage), WithCostModel(commission))

	brokerOrderId, err := sim.Submit(ctx, createOrder("ORD-1", common.OrderSideBuy, 10))
	require.NoError(t, err)
	assert.Equal(t, "SIM-1", brokerOrderId)

	fills, err := sim.PollFills(ctx)
	require.NoError(t, err)
	assert.Empty(t, fills)

	prices.set("SPY", 200, 1000000, 1)
	fills, err = sim.PollFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	fill := fills[0]
	assert.Equal(t, "ORD-1", fill.OrderId)
	assert.Equal(t, brokerOrderId, fill.BrokerOrderId)
	assert.Equal(t, t0.Add(time.Minute), fill.TimeStamp)
	assert.True(t, fill.Price.Eq(fixed.FromFloat64(200.2)), "price %s", fill.Price)
	assert.True(t, fill.Quantity.Eq(fixed.FromInt(10, 0)))
	assert.True(t, fill.Commission.Eq(fixed.FromFloat64(1.001)), "commission %s", fill.Commission)
	assert.True(t, fill.Slippage.Eq(fixed.FromInt(2, 0)), "slippage %s", fill.Slippage)
	assert.Equal(t, "SIM", fill.Venue)

	fills, err = sim.PollFills(ctx)
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestSandboxSimulator_SameTickFillsImmediately(t *testing.T) {
	ctx := context.Background()
	prices := mockPrices{}
	prices.set("SPY", 50, 1000, 0)
	sim := createTestSimulator(t, prices, WithFillTiming(SameTick))

	_, err := sim.Submit(ctx, createOrder("ORD-1", common.OrderSideSell, 3))
	require.NoError(t, err)

	fills, err := sim.PollFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.OrderSideSell, fills[0].Side)
	assert.True(t, fills[0].Price.Eq(fixed.FromInt(50, 0)))
	assert.Equal(t, t0, fills[0].TimeStamp)
}

func TestSandboxSimulator_RejectsWithoutPrice(t *testing.T) {
	sim := createTestSimulator(t, mockPrices{})

	_, err := sim.Submit(context.Background(), createOrder("ORD-1", common.OrderSideBuy, 1))
	var rejection *broker.RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "ORD-1", rejection.OrderId)
}

func TestSandboxSimulator_RejectsEmptyOrder(t *testing.T) {
	prices := mockPrices{}
	prices.set("SPY", 50, 1000, 0)
	sim := createTestSimulator(t, prices)

	_, err := sim.Submit(context.Background(), createOrder("ORD-1", common.OrderSideBuy, 0))
	assert.True(t, broker.IsRejection(err))
}

func TestSandboxSimulator_VolumeParticipationFillsPartially(t *testing.T) {
	ctx := context.Background()
	prices := mockPrices{}
	prices.set("SPY", 10, 150, 0)
	sim := createTestSimulator(t, prices, WithVolumeParticipation(fixed.FromFloat64(0.5)))

	brokerOrderId, err := sim.Submit(ctx, createOrder("ORD-1", common.OrderSideBuy, 100))
	require.NoError(t, err)

	prices.set("SPY", 10, 150, 1)
	fills, err := sim.PollFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Quantity.Eq(fixed.FromInt(75, 0)), "quantity %s", fills[0].Quantity)
	assert.True(t, sim.OpenQuantity(brokerOrderId).Eq(fixed.FromInt(25, 0)))

	// same bar polled again does not fill twice
	fills, err = sim.PollFills(ctx)
	require.NoError(t, err)
	assert.Empty(t, fills)

	prices.set("SPY", 11, 150, 2)
	fills, err = sim.PollFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Quantity.Eq(fixed.FromInt(25, 0)))
	assert.True(t, sim.OpenQuantity(brokerOrderId).IsZero())
}

func TestSandboxSimulator_CancelRemovesRemainder(t *testing.T) {
	ctx := context.Background()
	prices := mockPrices{}
	prices.set("SPY", 10, 10, 0)
	sim := createTestSimulator(t, prices, WithVolumeParticipation(fixed.FromFloat64(0.1)))

	brokerOrderId, err := sim.Submit(ctx, createOrder("ORD-1", common.OrderSideBuy, 5))
	require.NoError(t, err)

	prices.set("SPY", 10, 10, 1)
	fills, err := sim.PollFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	require.NoError(t, sim.Cancel(ctx, brokerOrderId))
	prices.set("SPY", 10, 10, 2)
	fills, err = sim.PollFills(ctx)
	require.NoError(t, err)
	assert.Empty(t, fills)

	closures, err := sim.PollClosures(ctx)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Equal(t, "ORD-1", closures[0].OrderId)
	assert.Equal(t, brokerOrderId, closures[0].BrokerOrderId)
	assert.True(t, closures[0].Remaining.Eq(fixed.FromInt(4, 0)), closures[0].Remaining.String())
	assert.True(t, closures[0].SignedRemaining().Eq(fixed.FromInt(4, 0)))

	closures, err = sim.PollClosures(ctx)
	require.NoError(t, err)
	assert.Empty(t, closures, "closures are reported once")

	assert.NoError(t, sim.Cancel(ctx, brokerOrderId), "cancel after close is a no-op")
	assert.ErrorIs(t, sim.Cancel(ctx, "SIM-99"), broker.ErrUnknownOrder)
}

func TestSandboxSimulator_InvalidOptions(t *testing.T) {
	_, err := NewSimulator(zap.NewNop(), mockPrices{}, WithFillTiming("eventually"))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewSimulator(zap.NewNop(), mockPrices{}, WithVolumeParticipation(fixed.FromFloat64(1.5)))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewSimulator(zap.NewNop(), mockPrices{}, WithCostModel(cost.CostModel{RateBps: fixed.FromInt(-1, 0)}))
	assert.ErrorIs(t, err, cost.ErrNegativeRate)
}
