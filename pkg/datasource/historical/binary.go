package historical

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// BinaryBar is the on-disk record: nanosecond UTC timestamp followed by OHLCV, little endian.
// One file holds one symbol.
type BinaryBar struct {
	TimeStamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func (b BinaryBar) ToBar(symbol string, bar *common.Bar) {
	bar.Symbol = symbol
	bar.TimeStamp = time.Unix(0, b.TimeStamp).UTC()
	bar.Open = fixed.FromFloat64(b.Open)
	bar.High = fixed.FromFloat64(b.High)
	bar.Low = fixed.FromFloat64(b.Low)
	bar.Close = fixed.FromFloat64(b.Close)
	bar.Volume = fixed.FromFloat64(b.Volume)
}

func FromBar(bar common.Bar) BinaryBar {
	value := func(p fixed.Point) float64 {
		f, _ := p.Float64()
		return f
	}
	return BinaryBar{
		TimeStamp: bar.TimeStamp.UnixNano(),
		Open:      value(bar.Open),
		High:      value(bar.High),
		Low:       value(bar.Low),
		Close:     value(bar.Close),
		Volume:    value(bar.Volume),
	}
}

// WriteFile stores bars in the binary format. Bars must be of one symbol and ordered by time.
func WriteFile(path string, bars []common.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}

	w := bufio.NewWriter(f)
	var last int64
	for i, bar := range bars {
		record := FromBar(bar)
		if i > 0 && record.TimeStamp <= last {
			_ = f.Close()
			return fmt.Errorf("bar %d at %s is not after its predecessor", i, bar.TimeStamp)
		}
		last = record.TimeStamp
		if err := binary.Write(w, binary.LittleEndian, record); err != nil {
			_ = f.Close()
			return fmt.Errorf("unable to write bar %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to flush %q: %w", path, err)
	}
	return f.Close()
}
