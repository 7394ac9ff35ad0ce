// Package datasource provides the market data feeds a run consumes.
package datasource

import (
	"context"
	"errors"
	"sort"

	"github.com/peter-kozarec/quantex/pkg/common"
)

var ErrEof = errors.New("EOF")

// Source yields bars ordered by timestamp then symbol and returns ErrEof when exhausted.
type Source interface {
	Next(ctx context.Context) (common.Bar, error)
}

// Less is the order every source emits bars in.
func Less(a, b common.Bar) bool {
	if !a.TimeStamp.Equal(b.TimeStamp) {
		return a.TimeStamp.Before(b.TimeStamp)
	}
	return a.Symbol < b.Symbol
}

type Slice struct {
	bars []common.Bar
	idx  int
}

// NewSlice copies and orders bars.
func NewSlice(bars []common.Bar) *Slice {
	sorted := append([]common.Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i], sorted[j])
	})
	return &Slice{bars: sorted}
}

func (s *Slice) Next(ctx context.Context) (common.Bar, error) {
	if err := ctx.Err(); err != nil {
		return common.Bar{}, err
	}
	if s.idx >= len(s.bars) {
		return common.Bar{}, ErrEof
	}
	bar := s.bars[s.idx]
	s.idx++
	return bar, nil
}

func (s *Slice) Len() int {
	return len(s.bars)
}

// Collect drains a source.
func Collect(ctx context.Context, src Source) ([]common.Bar, error) {
	var bars []common.Bar
	for {
		bar, err := src.Next(ctx)
		if errors.Is(err, ErrEof) {
			return bars, nil
		}
		if err != nil {
			return bars, err
		}
		bars = append(bars, bar)
	}
}

// Merge interleaves several ordered sources into one, e.g. one file per symbol.
type Merge struct {
	sources []Source
	heads   []*common.Bar
	primed  bool
}

func NewMerge(sources ...Source) *Merge {
	return &Merge{sources: sources, heads: make([]*common.Bar, len(sources))}
}

func (m *Merge) Next(ctx context.Context) (common.Bar, error) {
	if !m.primed {
		for i := range m.sources {
			if err := m.advance(ctx, i); err != nil {
				return common.Bar{}, err
			}
		}
		m.primed = true
	}

	best := -1
	for i, head := range m.heads {
		if head != nil && (best < 0 || Less(*head, *m.heads[best])) {
			best = i
		}
	}
	if best < 0 {
		return common.Bar{}, ErrEof
	}

	bar := *m.heads[best]
	if err := m.advance(ctx, best); err != nil {
		return common.Bar{}, err
	}
	return bar, nil
}

func (m *Merge) advance(ctx context.Context, i int) error {
	bar, err := m.sources[i].Next(ctx)
	if errors.Is(err, ErrEof) {
		m.heads[i] = nil
		return nil
	}
	if err != nil {
		return err
	}
	m.heads[i] = &bar
	return nil
}

// Batcher groups consecutive bars sharing a timestamp.
type Batcher struct {
	src  Source
	next *common.Bar
}

func NewBatcher(src Source) *Batcher {
	return &Batcher{src: src}
}

// Next returns every bar of the next instant. It returns ErrEof once the source is exhausted.
func (b *Batcher) Next(ctx context.Context) ([]common.Bar, error) {
	var batch []common.Bar
	if b.next != nil {
		batch = append(batch, *b.next)
		b.next = nil
	}

	for {
		bar, err := b.src.Next(ctx)
		if errors.Is(err, ErrEof) {
			if len(batch) == 0 {
				return nil, ErrEof
			}
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 && !bar.TimeStamp.Equal(batch[0].TimeStamp) {
			b.next = &bar
			return batch, nil
		}
		batch = append(batch, bar)
	}
}
