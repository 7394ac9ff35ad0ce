package strategy

import (
	"testing"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func stateWithCloses(symbol string, closes ...float64) *market.State {
	state := market.NewState(len(closes) + 1)
	for i, c := range closes {
		price := fixed.FromFloat64(c)
		state.Update(common.Bar{
			Symbol:    symbol,
			TimeStamp: t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    fixed.FromInt(1000, 0),
		})
	}
	return state
}

func requireExposure(t *testing.T, s Strategy, window market.Window, symbol string, want fixed.Point) {
	t.Helper()
	exposures, err := s.GenerateSignal(window)
	require.NoError(t, err)
	got, ok := exposures[symbol]
	require.True(t, ok, "no exposure for %s", symbol)
	assert.True(t, want.Eq(got), "want %s, got %s", want, got)
}

func requireNoSignal(t *testing.T, s Strategy, window market.Window, symbol string) {
	t.Helper()
	exposures, err := s.GenerateSignal(window)
	require.NoError(t, err)
	_, ok := exposures[symbol]
	assert.False(t, ok)
}

func TestConstant(t *testing.T) {
	state := stateWithCloses("SPY", 100)
	state.Update(common.Bar{Symbol: "QQQ", TimeStamp: t0, Close: fixed.FromInt(300, 0)})

	s := Constant{Exposure: fixed.FromFloat64(0.5)}
	requireExposure(t, s, state, "SPY", fixed.FromFloat64(0.5))
	requireExposure(t, s, state, "QQQ", fixed.FromFloat64(0.5))
}

func TestMomentum(t *testing.T) {
	s := NewMomentum(3, 1)

	requireNoSignal(t, s, stateWithCloses("SPY", 100, 101, 102), "SPY")
	requireExposure(t, s, stateWithCloses("SPY", 100, 101, 102, 90), "SPY", fixed.One)
	requireExposure(t, s, stateWithCloses("SPY", 100, 99, 98, 120), "SPY", fixed.NegOne)
}

func TestMomentum_Defaults(t *testing.T) {
	s := NewMomentum(0, -1)
	assert.Equal(t, 252, s.Lookback)
	assert.Equal(t, 0, s.Skip)
}

func TestCarry(t *testing.T) {
	s := NewCarry(3)

	requireNoSignal(t, s, stateWithCloses("SPY", 100), "SPY")
	requireExposure(t, s, stateWithCloses("SPY", 100, 101), "SPY", fixed.One)
	requireExposure(t, s, stateWithCloses("SPY", 100, 110, 105, 100, 95), "SPY", fixed.NegOne)
	requireExposure(t, s, stateWithCloses("SPY", 100, 100, 100), "SPY", fixed.Zero)
}

func TestMeanReversion(t *testing.T) {
	s := NewMeanReversion(4)
	assert.Equal(t, 2, s.MinPeriods)

	requireNoSignal(t, s, stateWithCloses("SPY", 100), "SPY")
	requireNoSignal(t, s, stateWithCloses("SPY", 100, 100, 100), "SPY")
	requireExposure(t, s, stateWithCloses("SPY", 100, 100, 100, 110), "SPY", fixed.NegOne)
	requireExposure(t, s, stateWithCloses("SPY", 100, 100, 100, 90), "SPY", fixed.One)
	// only the last lookback closes count
	requireExposure(t, s, stateWithCloses("SPY", 10, 100, 101, 100, 99), "SPY", fixed.One)
}

func TestScaled(t *testing.T) {
	s := Scaled{Strategy: Constant{Exposure: fixed.One}, Factor: fixed.FromFloat64(0.25)}
	assert.Equal(t, "constant", s.Name())
	requireExposure(t, s, stateWithCloses("SPY", 100), "SPY", fixed.FromFloat64(0.25))
}

func TestNew(t *testing.T) {
	def, err := New("momentum", nil)
	require.NoError(t, err)
	assert.Equal(t, "momentum", def.Name)
	assert.Equal(t, 253, def.Depth)

	def, err = New("mean_reversion", Params{"lookback": 10, "scale": 2})
	require.NoError(t, err)
	assert.Equal(t, 10, def.Depth)
	assert.IsType(t, Scaled{}, def.Strategy)

	_, err = New("martingale", nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	assert.Equal(t, []string{"carry", "constant", "mean_reversion", "momentum"}, Names())
}

func TestToPosition(t *testing.T) {
	assert.True(t, ToPosition(fixed.FromFloat64(3.2)).Eq(fixed.One))
	assert.True(t, ToPosition(fixed.FromFloat64(-0.1)).Eq(fixed.NegOne))
	assert.True(t, ToPosition(fixed.Zero).Eq(fixed.Zero))
}
