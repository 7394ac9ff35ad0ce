package datasource

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(symbol string, day int, close float64) common.Bar {
	return common.Bar{Symbol: symbol, TimeStamp: t0.AddDate(0, 0, day), Close: fixed.FromFloat64(close)}
}

func TestSlice_OrdersByTimeThenSymbol(t *testing.T) {
	src := NewSlice([]common.Bar{bar("QQQ", 1, 1), bar("SPY", 0, 1), bar("AAPL", 1, 1)})

	bars, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "SPY", bars[0].Symbol)
	assert.Equal(t, "AAPL", bars[1].Symbol)
	assert.Equal(t, "QQQ", bars[2].Symbol)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrEof)
}

func TestMerge(t *testing.T) {
	spy := NewSlice([]common.Bar{bar("SPY", 0, 1), bar("SPY", 2, 1)})
	qqq := NewSlice([]common.Bar{bar("QQQ", 0, 1), bar("QQQ", 1, 1)})

	bars, err := Collect(context.Background(), NewMerge(spy, qqq))
	require.NoError(t, err)

	var got []string
	for _, b := range bars {
		got = append(got, b.Symbol+b.TimeStamp.Format("02"))
	}
	assert.Equal(t, []string{"QQQ02", "SPY02", "QQQ03", "SPY04"}, got)
}

func TestBatcher_GroupsInstants(t *testing.T) {
	src := NewSlice([]common.Bar{bar("SPY", 0, 1), bar("QQQ", 0, 1), bar("SPY", 1, 1)})
	batcher := NewBatcher(src)
	ctx := context.Background()

	batch, err := batcher.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	batch, err = batcher.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, t0.AddDate(0, 0, 1), batch[0].TimeStamp)

	_, err = batcher.Next(ctx)
	assert.ErrorIs(t, err, ErrEof)
}

type failingSource struct{}

func (failingSource) Next(context.Context) (common.Bar, error) {
	return common.Bar{}, errors.New("disk on fire")
}

func TestBatcher_PropagatesErrors(t *testing.T) {
	_, err := NewBatcher(failingSource{}).Next(context.Background())
	assert.EqualError(t, err, "disk on fire")
}

func TestCSV(t *testing.T) {
	input := strings.Join([]string{
		"timestamp,symbol,open,high,low,close,volume",
		"2024-01-02,SPY,470.1,472.0,469.5,471.25,1000",
		"2024-01-03T00:00:00Z,SPY,471.25,473,470,472.5,1200",
	}, "\n")

	src, err := NewCSV(strings.NewReader(input))
	require.NoError(t, err)

	bars, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].TimeStamp)
	assert.True(t, bars[0].Close.Eq(fixed.FromFloat64(471.25)))
	assert.True(t, bars[1].Volume.Eq(fixed.FromInt(1200, 0)))
}

func TestCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad header", input: "ts,symbol,open,high,low,close,volume\n"},
		{name: "bad number", input: "timestamp,symbol,open,high,low,close,volume\n2024-01-02,SPY,x,1,1,1,1\n"},
		{name: "non positive close", input: "timestamp,symbol,open,high,low,close,volume\n2024-01-02,SPY,1,1,1,0,1\n"},
		{name: "out of order", input: "timestamp,symbol,open,high,low,close,volume\n2024-01-03,SPY,1,1,1,1,1\n2024-01-02,SPY,1,1,1,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCSV(strings.NewReader(tt.input))
			if err == nil {
				_, err = Collect(context.Background(), src)
			}
			assert.Error(t, err)
		})
	}
}
