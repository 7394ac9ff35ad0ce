package historical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
)

const (
	invalidIndex           = -1
	barReaderComponentName = "datasource.historical.reader"
)

// BarReader streams the bars of one binary file within [from, to].
type BarReader struct {
	file   *File[BinaryBar]
	symbol string
	period time.Duration

	from int64
	to   int64
	idx  int64
}

func NewBarReader(file *File[BinaryBar], symbol string, period time.Duration, from, to time.Time) *BarReader {
	return &BarReader{
		file:   file,
		symbol: symbol,
		period: period,
		from:   from.UnixNano(),
		to:     to.UnixNano(),
		idx:    invalidIndex,
	}
}

// Open maps path and returns a reader over it. Closing the reader unmaps the file.
func Open(path, symbol string, period time.Duration, from, to time.Time) (*BarReader, error) {
	file := NewFile[BinaryBar](path)
	if err := file.Open(); err != nil {
		return nil, err
	}
	return NewBarReader(file, symbol, period, from, to), nil
}

func (r *BarReader) Close() error {
	return r.file.Close()
}

func (r *BarReader) Next(ctx context.Context) (common.Bar, error) {
	var bar common.Bar
	var record BinaryBar

	if err := ctx.Err(); err != nil {
		return bar, err
	}

	if r.idx == invalidIndex {
		if err := r.lookupStartIndex(); err != nil {
			return bar, err
		}
	}

	if err := r.file.Read(r.idx, &record); err != nil {
		if errors.Is(err, errOutOfRange) {
			return bar, datasource.ErrEof
		}
		return bar, fmt.Errorf("error reading entry at index %d: %w", r.idx, err)
	}
	r.idx++

	if record.TimeStamp > r.to {
		return bar, datasource.ErrEof
	}

	record.ToBar(r.symbol, &bar)
	bar.Source = barReaderComponentName
	bar.Period = r.period
	return bar, nil
}

// lookupStartIndex binary searches for the first record at or after from.
func (r *BarReader) lookupStartIndex() error {
	entryCount, err := r.file.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}

	var entry BinaryBar

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := r.file.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < r.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	r.idx = low
	return nil
}
