package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func createTestEngine(t testing.TB, killSwitch KillSwitch) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultLimits(), killSwitch)
	require.NoError(t, err)
	return e
}

func createOrder(symbol string, side common.OrderSide, qty, price int64) common.OrderRequest {
	return common.OrderRequest{
		Id:             "ORD-1",
		Symbol:         symbol,
		Side:           side,
		Quantity:       fixed.FromInt64(qty, 0),
		ReferencePrice: fixed.FromInt64(price, 0),
		TimeStamp:      t0,
	}
}

func bookWith(t testing.TB, fills ...common.Fill) Book {
	t.Helper()
	l := ledger.New(fixed.FromInt(1_000_000, 0))
	for _, fill := range fills {
		require.NoError(t, l.Apply(fill))
	}
	return Book{Snapshot: l.Snapshot()}
}

func TestRiskEngine_PositionNotionalExceeded(t *testing.T) {
	e := createTestEngine(t, Static(false))

	decision := e.Evaluate(createOrder("SPY", common.OrderSideBuy, 600, 100), bookWith(t), DayState{})

	assert.False(t, decision.Allowed)
	assert.Equal(t, common.ReasonMaxPositionNotional, decision.Reason)
	assert.True(t, decision.Context.Notional.Eq(fixed.FromInt(60_000, 0)))
	assert.True(t, decision.Context.SymbolNotionalAfter.Eq(fixed.FromInt(60_000, 0)))
}

func TestRiskEngine_DailyLossBlocksWholeDay(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxDailyLoss = fixed.FromInt(-2_500, 0)
	e, err := NewEngine(limits, Static(false))
	require.NoError(t, err)

	guard := NewDayGuard(limits, time.UTC)
	guard.Observe(t0, fixed.FromInt(100_000, 0))
	day := guard.Observe(t0.Add(time.Hour), fixed.FromInt(97_000, 0))
	require.True(t, day.PnL.Eq(fixed.FromInt(-3_000, 0)))

	book := bookWith(t)
	for _, order := range []common.OrderRequest{
		createOrder("SPY", common.OrderSideBuy, 1, 100),
		createOrder("QQQ", common.OrderSideSell, 1, 100),
	} {
		decision := e.Evaluate(order, book, day)
		assert.False(t, decision.Allowed)
		assert.Equal(t, common.ReasonMaxDailyLoss, decision.Reason)
	}

	recovered := guard.Observe(t0.Add(2*time.Hour), fixed.FromInt(100_500, 0))
	assert.True(t, recovered.Latched)
	assert.Equal(t, common.ReasonMaxDailyLoss, e.Evaluate(createOrder("SPY", common.OrderSideBuy, 1, 100), book, recovered).Reason)

	nextDay := guard.Observe(t0.Add(24*time.Hour), fixed.FromInt(100_400, 0))
	assert.False(t, nextDay.Latched)
	assert.True(t, e.Evaluate(createOrder("SPY", common.OrderSideBuy, 1, 100), book, nextDay).Allowed)
}

func TestRiskEngine_EvaluationOrder(t *testing.T) {
	tests := []struct {
		name   string
		kill   bool
		day    DayState
		order  common.OrderRequest
		fills  []common.Fill
		reason common.ReasonCode
	}{
		{
			name:   "kill switch wins over every limit",
			kill:   true,
			day:    DayState{PnL: fixed.FromInt(-10_000, 0)},
			order:  createOrder("SPY", common.OrderSideBuy, 10_000, 100),
			reason: common.ReasonKillSwitch,
		},
		{
			name:   "daily loss wins over notional limits",
			day:    DayState{PnL: fixed.FromInt(-2_500, 0)},
			order:  createOrder("SPY", common.OrderSideBuy, 10_000, 100),
			reason: common.ReasonMaxDailyLoss,
		},
		{
			name:   "gross checked before position",
			order:  createOrder("SPY", common.OrderSideBuy, 3_000, 100),
			reason: common.ReasonMaxGrossNotional,
		},
		{
			name:  "gross includes other symbols",
			order: createOrder("SPY", common.OrderSideBuy, 300, 100),
			fills: []common.Fill{
				{Id: "1", Symbol: "AAA", Side: common.OrderSideBuy, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
				{Id: "2", Symbol: "BBB", Side: common.OrderSideBuy, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
				{Id: "3", Symbol: "CCC", Side: common.OrderSideBuy, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
				{Id: "4", Symbol: "DDD", Side: common.OrderSideSell, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
				{Id: "5", Symbol: "EEE", Side: common.OrderSideSell, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
			},
			reason: common.ReasonMaxGrossNotional,
		},
		{
			name:  "reducing order allowed",
			order: createOrder("SPY", common.OrderSideSell, 100, 100),
			fills: []common.Fill{
				{Id: "1", Symbol: "SPY", Side: common.OrderSideBuy, Quantity: fixed.FromInt(450, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
			},
			reason: common.ReasonNone,
		},
		{
			name:   "within limits",
			order:  createOrder("SPY", common.OrderSideBuy, 500, 100),
			reason: common.ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t, Static(tt.kill))
			decision := e.Evaluate(tt.order, bookWith(t, tt.fills...), tt.day)
			assert.Equal(t, tt.reason, decision.Reason)
			assert.Equal(t, tt.reason == common.ReasonNone, decision.Allowed)
			assert.Equal(t, tt.order.Id, decision.OrderId)
		})
	}
}

func TestRiskEngine_AllowedOrdersRespectLimits(t *testing.T) {
	e := createTestEngine(t, Static(false))
	limits := e.Limits()

	rapid.Check(t, func(t *rapid.T) {
		held := rapid.Int64Range(-800, 800).Draw(t, "held")
		l := ledger.New(fixed.FromInt(1_000_000, 0))
		if held != 0 {
			side := common.SideOf(fixed.FromInt64(held, 0))
			if err := l.Apply(common.Fill{Id: "seed", Symbol: "SPY", Side: side,
				Quantity: fixed.FromInt64(held, 0).Abs(), Price: fixed.FromInt(100, 0), TimeStamp: t0}); err != nil {
				t.Fatal(err)
			}
		}

		working := rapid.Int64Range(-800, 800).Draw(t, "working")
		other := rapid.Int64Range(-2_000, 2_000).Draw(t, "other")
		book := Book{
			Snapshot: l.Snapshot(),
			Working: map[string]fixed.Point{
				"SPY": fixed.FromInt64(working, 0),
				"QQQ": fixed.FromInt64(other, 0),
			},
			Prices: map[string]fixed.Point{"QQQ": fixed.FromInt(100, 0)},
		}

		qty := rapid.Int64Range(1, 5_000).Draw(t, "qty")
		side := rapid.SampledFrom([]common.OrderSide{common.OrderSideBuy, common.OrderSideSell}).Draw(t, "side")
		price := rapid.Int64Range(1, 500).Draw(t, "price")
		order := createOrder("SPY", side, qty, price)

		decision := e.Evaluate(order, book, DayState{})
		if !decision.Allowed {
			return
		}

		final := fixed.FromInt64(held+working, 0).Add(order.SignedQuantity())
		symbolAfter := final.Mul(order.ReferencePrice).Abs()
		grossAfter := symbolAfter.Add(fixed.FromInt64(other, 0).Abs().Mul(fixed.FromInt(100, 0)))
		if symbolAfter.Gt(limits.MaxPositionNotional) {
			t.Fatalf("allowed order ends at position %s above the limit", symbolAfter)
		}
		if grossAfter.Gt(limits.MaxGrossNotional) {
			t.Fatalf("allowed order ends at gross %s above the limit", grossAfter)
		}
		if decision.Context.SymbolNotionalAfter.Gt(limits.MaxPositionNotional) {
			t.Fatalf("allowed order exceeds position limit: %s", decision.Context.SymbolNotionalAfter)
		}
		if decision.Context.GrossAfter.Gt(limits.MaxGrossNotional) {
			t.Fatalf("allowed order exceeds gross limit: %s", decision.Context.GrossAfter)
		}
	})
}

func TestRiskEngine_WorkingOrdersCount(t *testing.T) {
	e := createTestEngine(t, Static(false))
	held := []common.Fill{
		{Id: "1", Symbol: "SPY", Side: common.OrderSideBuy, Quantity: fixed.FromInt(100, 0), Price: fixed.FromInt(100, 0), TimeStamp: t0},
	}

	tests := []struct {
		name        string
		working     map[string]fixed.Point
		order       common.OrderRequest
		reason      common.ReasonCode
		symbolAfter int
		grossAfter  int
	}{
		{
			name:        "working buy pushes position over the limit",
			working:     map[string]fixed.Point{"SPY": fixed.FromInt(300, 0)},
			order:       createOrder("SPY", common.OrderSideBuy, 200, 100),
			reason:      common.ReasonMaxPositionNotional,
			symbolAfter: 60_000,
			grossAfter:  60_000,
		},
		{
			name:        "working sell offsets the order",
			working:     map[string]fixed.Point{"SPY": fixed.FromInt(-100, 0)},
			order:       createOrder("SPY", common.OrderSideBuy, 400, 100),
			reason:      common.ReasonNone,
			symbolAfter: 40_000,
			grossAfter:  40_000,
		},
		{
			name:        "working orders of unheld symbols join gross",
			working:     map[string]fixed.Point{"QQQ": fixed.FromInt(-500, 0), "IWM": fixed.FromInt(1_000, 0), "DIA": fixed.FromInt(500, 0)},
			order:       createOrder("SPY", common.OrderSideBuy, 100, 100),
			reason:      common.ReasonMaxGrossNotional,
			symbolAfter: 20_000,
			grossAfter:  295_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := bookWith(t, held...)
			book.Working = tt.working
			book.Prices = map[string]fixed.Point{
				"SPY": fixed.FromInt(100, 0),
				"QQQ": fixed.FromInt(100, 0),
				"IWM": fixed.FromInt(200, 0),
				"DIA": fixed.FromInt(50, 0),
			}

			decision := e.Evaluate(tt.order, book, DayState{})
			assert.Equal(t, tt.reason, decision.Reason)
			assert.True(t, decision.Context.SymbolNotionalAfter.Eq(fixed.FromInt(tt.symbolAfter, 0)), decision.Context.SymbolNotionalAfter.String())
			assert.True(t, decision.Context.GrossAfter.Eq(fixed.FromInt(tt.grossAfter, 0)), decision.Context.GrossAfter.String())
		})
	}
}

func TestRiskEngine_KillSwitchDeniesEverything(t *testing.T) {
	e := createTestEngine(t, Static(true))
	book := bookWith(t)

	rapid.Check(t, func(t *rapid.T) {
		qty := rapid.Int64Range(1, 10).Draw(t, "qty")
		order := createOrder("SPY", common.OrderSideBuy, qty, 1)
		if decision := e.Evaluate(order, book, DayState{}); decision.Allowed {
			t.Fatalf("order allowed with kill switch engaged")
		}
	})
}

func TestLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"defaults", DefaultLimits(), false},
		{"zero position", Limits{fixed.Zero, fixed.One, fixed.One}, true},
		{"negative gross", Limits{fixed.One, fixed.NegOne, fixed.One}, true},
		{"zero daily loss", Limits{fixed.One, fixed.One, fixed.Zero}, true},
		{"negative daily loss accepted", Limits{fixed.One, fixed.Two, fixed.NegOne}, false},
		{"position above gross", Limits{fixed.Ten, fixed.One, fixed.One}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLimits)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEngine_RequiresKillSwitch(t *testing.T) {
	_, err := NewEngine(DefaultLimits(), nil)
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestEnvKillSwitch(t *testing.T) {
	tests := []struct {
		value string
		set   bool
		want  bool
	}{
		{"1", true, true},
		{"TRUE", true, true},
		{" yes ", true, true},
		{"on", true, true},
		{"0", true, false},
		{"off", true, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			ks := EnvKillSwitch{name: KillSwitchEnv, lookup: func(string) (string, bool) { return tt.value, tt.set }}
			assert.Equal(t, tt.want, ks.Engaged())
		})
	}

	t.Setenv("QUANTEX_TEST_KILL", "1")
	assert.True(t, NewEnvKillSwitch("QUANTEX_TEST_KILL").Engaged())
}

func TestSwitch_Listen(t *testing.T) {
	s := NewSwitch(false)
	updates := make(chan bool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Listen(ctx, updates)
		close(done)
	}()

	updates <- true
	updates <- true
	assert.True(t, s.Engaged())

	updates <- false
	close(updates)
	<-done
	assert.False(t, s.Engaged())
}
