package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func createBar(symbol string, day int, close int) common.Bar {
	return common.Bar{
		Symbol:    symbol,
		TimeStamp: t0.AddDate(0, 0, day),
		Close:     fixed.FromInt(close, 0),
	}
}

func TestMarketState_BoundedWindow(t *testing.T) {
	s := NewState(3)
	for i := 0; i < 5; i++ {
		s.Update(createBar("SPY", i, 100+i))
	}
	s.Update(createBar("AAPL", 4, 10))

	closes := s.Closes("SPY")
	require.Len(t, closes, 3)
	assert.True(t, closes[0].Eq(fixed.FromInt(102, 0)))
	assert.True(t, closes[2].Eq(fixed.FromInt(104, 0)))

	closes[0] = fixed.Zero
	assert.True(t, s.Closes("SPY")[0].Eq(fixed.FromInt(102, 0)))

	bar, ok := s.Latest("SPY")
	require.True(t, ok)
	assert.Equal(t, t0.AddDate(0, 0, 4), bar.TimeStamp)
	assert.Equal(t, t0.AddDate(0, 0, 4), s.Time())
	assert.Equal(t, []string{"AAPL", "SPY"}, s.Symbols())

	_, ok = s.Latest("QQQ")
	assert.False(t, ok)
	assert.Empty(t, s.Closes("QQQ"))
}

func TestMarketState_ForwardFill(t *testing.T) {
	s := NewState(10)
	s.Update(createBar("SPY", 0, 100))

	inserted := s.ForwardFill("SPY", t0.AddDate(0, 0, 3), 24*time.Hour)
	assert.Equal(t, 2, inserted)

	closes := s.Closes("SPY")
	require.Len(t, closes, 3)
	for _, c := range closes {
		assert.True(t, c.Eq(fixed.FromInt(100, 0)))
	}
	assert.Equal(t, 0, s.ForwardFill("QQQ", t0, time.Hour))
}

func TestGapDetector(t *testing.T) {
	d := NewGapDetector(24 * time.Hour)

	require.NoError(t, d.Check(createBar("SPY", 0, 1)))
	require.NoError(t, d.Check(createBar("SPY", 1, 1)))
	require.NoError(t, d.Check(createBar("QQQ", 5, 1)))

	err := d.Check(createBar("SPY", 4, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataGap))

	var gap *DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "SPY", gap.Symbol)
	assert.Equal(t, 2, gap.Missing())

	assert.NoError(t, NewGapDetector(0).Check(createBar("SPY", 100, 1)))
}

func TestGapPolicy_Validate(t *testing.T) {
	assert.NoError(t, GapPolicyFail.Validate())
	assert.NoError(t, GapPolicyForwardFill.Validate())
	assert.Error(t, GapPolicy("").Validate())
	assert.Error(t, GapPolicy("skip").Validate())
}
