package parquet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

func TestParquet_WriteThenOpenFiltersAndOrders(t *testing.T) {
	t0 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	bars := []common.Bar{
		{Symbol: "SPY", TimeStamp: t0.AddDate(0, 0, 1), Close: fixed.FromFloat64(490.5), Volume: fixed.FromInt(10, 0)},
		{Symbol: "QQQ", TimeStamp: t0, Close: fixed.FromFloat64(420.25), Volume: fixed.FromInt(10, 0)},
		{Symbol: "SPY", TimeStamp: t0, Close: fixed.FromFloat64(489), Volume: fixed.FromInt(10, 0)},
	}

	path := filepath.Join(t.TempDir(), "bars.parquet")
	require.NoError(t, Write(path, bars))

	src, err := Open(path, "SPY")
	require.NoError(t, err)

	got, err := datasource.Collect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t0, got[0].TimeStamp)
	assert.True(t, got[0].Close.Eq(fixed.FromInt(489, 0)))
	assert.True(t, got[1].Close.Eq(fixed.FromFloat64(490.5)))
}
