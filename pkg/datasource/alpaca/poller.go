// Package alpaca polls the Alpaca market data API for the latest bars.
package alpaca

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const pollerComponentName = "datasource.alpaca.poller"

type latestBarsAPI interface {
	GetLatestBars(symbols []string, req marketdata.GetLatestBarRequest) (map[string]marketdata.Bar, error)
}

type Credentials struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// Poller emits, on every interval, the bars that are newer than the previous ones it saw.
type Poller struct {
	logger   *zap.Logger
	api      latestBarsAPI
	symbols  []string
	interval time.Duration
	period   time.Duration
	last     map[string]time.Time
}

func NewPoller(logger *zap.Logger, credentials Credentials, symbols []string, interval, period time.Duration) *Poller {
	opts := marketdata.ClientOpts{
		APIKey:    credentials.APIKey,
		APISecret: credentials.APISecret,
	}
	if credentials.BaseURL != "" {
		opts.BaseURL = credentials.BaseURL
	}
	return newPoller(logger, marketdata.NewClient(opts), symbols, interval, period)
}

func newPoller(logger *zap.Logger, api latestBarsAPI, symbols []string, interval, period time.Duration) *Poller {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return &Poller{
		logger:   logger.Named(pollerComponentName),
		api:      api,
		symbols:  sorted,
		interval: interval,
		period:   period,
		last:     make(map[string]time.Time),
	}
}

// Run polls until ctx ends, sending each new batch of bars on out. A failed poll is logged
// and retried on the next tick.
func (p *Poller) Run(ctx context.Context, out chan<- []common.Bar) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if batch, err := p.Poll(); err != nil {
			p.logger.Warn("poll failed", zap.Error(err))
		} else if len(batch) > 0 {
			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll fetches the latest bars once and returns the ones not seen before, ordered by time then
// symbol.
func (p *Poller) Poll() ([]common.Bar, error) {
	latest, err := p.api.GetLatestBars(p.symbols, marketdata.GetLatestBarRequest{})
	if err != nil {
		return nil, fmt.Errorf("latest bars: %w", err)
	}

	var batch []common.Bar
	for _, symbol := range p.symbols {
		bar, ok := latest[symbol]
		if !ok || !bar.Timestamp.After(p.last[symbol]) {
			continue
		}
		p.last[symbol] = bar.Timestamp
		batch = append(batch, common.Bar{
			Source:    pollerComponentName,
			Symbol:    symbol,
			TimeStamp: bar.Timestamp.UTC(),
			Period:    p.period,
			Open:      fixed.FromFloat64(bar.Open),
			High:      fixed.FromFloat64(bar.High),
			Low:       fixed.FromFloat64(bar.Low),
			Close:     fixed.FromFloat64(bar.Close),
			Volume:    fixed.FromInt64(int64(bar.Volume), 0),
		})
	}

	sort.SliceStable(batch, func(i, j int) bool {
		if !batch[i].TimeStamp.Equal(batch[j].TimeStamp) {
			return batch[i].TimeStamp.Before(batch[j].TimeStamp)
		}
		return batch[i].Symbol < batch[j].Symbol
	})
	return batch, nil
}
