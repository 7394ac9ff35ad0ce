package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const csvSourceComponentName = "datasource.csv"

var csvHeader = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}

// CSV reads bars from a file with the header timestamp,symbol,open,high,low,close,volume.
// Timestamps are RFC 3339 or YYYY-MM-DD and are taken as UTC. Rows must already be ordered.
type CSV struct {
	file   *os.File
	reader *csv.Reader
	line   int
	last   *common.Bar
}

func OpenCSV(path string) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open csv %q: %w", path, err)
	}

	src, err := NewCSV(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.file = f
	return src, nil
}

func NewCSV(r io.Reader) (*CSV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header: %w", err)
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("unexpected csv column %d %q, want %q", i, header[i], name)
		}
	}
	return &CSV{reader: reader, line: 1}, nil
}

func (c *CSV) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}

func (c *CSV) Next(ctx context.Context) (common.Bar, error) {
	if err := ctx.Err(); err != nil {
		return common.Bar{}, err
	}

	record, err := c.reader.Read()
	if errors.Is(err, io.EOF) {
		return common.Bar{}, ErrEof
	}
	c.line++
	if err != nil {
		return common.Bar{}, fmt.Errorf("csv line %d: %w", c.line, err)
	}

	bar, err := parseRecord(record)
	if err != nil {
		return common.Bar{}, fmt.Errorf("csv line %d: %w", c.line, err)
	}
	if c.last != nil && Less(bar, *c.last) {
		return common.Bar{}, fmt.Errorf("csv line %d: bar %s %s out of order", c.line, bar.Symbol, bar.TimeStamp)
	}
	c.last = &bar
	return bar, nil
}

func parseRecord(record []string) (common.Bar, error) {
	ts, err := parseTime(record[0])
	if err != nil {
		return common.Bar{}, err
	}

	var values [5]fixed.Point
	for i := range values {
		values[i], err = fixed.FromString(strings.TrimSpace(record[i+2]))
		if err != nil {
			return common.Bar{}, fmt.Errorf("column %s: %w", csvHeader[i+2], err)
		}
	}

	bar := common.Bar{
		Source:    csvSourceComponentName,
		Symbol:    strings.TrimSpace(record[1]),
		TimeStamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	if bar.Symbol == "" {
		return common.Bar{}, errors.New("empty symbol")
	}
	if !bar.Close.IsPos() {
		return common.Bar{}, fmt.Errorf("close %s must be positive", bar.Close)
	}
	return bar, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
