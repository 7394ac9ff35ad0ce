// Package parquet reads and writes bar files in the columnar layout used by the data store.
package parquet

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const sourceComponentName = "datasource.parquet"

// BarRecord is one parquet row.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

func (r BarRecord) Bar() common.Bar {
	return common.Bar{
		Source:    sourceComponentName,
		Symbol:    r.Symbol,
		TimeStamp: time.UnixMilli(r.Timestamp).UTC(),
		Open:      fixed.FromFloat64(r.Open),
		High:      fixed.FromFloat64(r.High),
		Low:       fixed.FromFloat64(r.Low),
		Close:     fixed.FromFloat64(r.Close),
		Volume:    fixed.FromFloat64(r.Volume),
	}
}

func RecordOf(bar common.Bar) BarRecord {
	value := func(p fixed.Point) float64 {
		f, _ := p.Float64()
		return f
	}
	return BarRecord{
		Symbol:    bar.Symbol,
		Timestamp: bar.TimeStamp.UnixMilli(),
		Open:      value(bar.Open),
		High:      value(bar.High),
		Low:       value(bar.Low),
		Close:     value(bar.Close),
		Volume:    value(bar.Volume),
	}
}

// Open loads a parquet file, keeping the bars of the given symbols (all when empty), ordered
// by timestamp then symbol.
func Open(path string, symbols ...string) (*datasource.Slice, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("unable to read parquet %q: %w", path, err)
	}

	keep := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		keep[symbol] = struct{}{}
	}

	bars := make([]common.Bar, 0, len(records))
	for _, record := range records {
		if _, ok := keep[record.Symbol]; len(keep) > 0 && !ok {
			continue
		}
		bars = append(bars, record.Bar())
	}
	return datasource.NewSlice(bars), nil
}

func Write(path string, bars []common.Bar) error {
	records := make([]BarRecord, len(bars))
	for i, bar := range bars {
		records[i] = RecordOf(bar)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("unable to write parquet %q: %w", path, err)
	}
	return nil
}
