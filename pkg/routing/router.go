// Package routing turns signals into sized orders after the configured execution delay.
package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid routing config")

type Config struct {
	// Delay is the number of ticks between a signal and the order it produces.
	Delay int `yaml:"delay" json:"delay"`
	// CapitalBase is the notional a unit of exposure represents. Zero uses current equity.
	CapitalBase fixed.Point `yaml:"capital_base" json:"capital_base"`
	// MinQuantity drops smaller deltas.
	MinQuantity fixed.Point `yaml:"min_quantity" json:"min_quantity"`
}

func DefaultConfig() Config {
	return Config{Delay: 1, CapitalBase: fixed.Zero, MinQuantity: fixed.One}
}

func (c Config) Validate() error {
	var errs []error
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay %d must not be negative", c.Delay))
	}
	if c.CapitalBase.IsNeg() {
		errs = append(errs, fmt.Errorf("capital base %s must not be negative", c.CapitalBase))
	}
	if c.MinQuantity.IsNeg() {
		errs = append(errs, fmt.Errorf("min quantity %s must not be negative", c.MinQuantity))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

type Router struct {
	logger  *zap.Logger
	cfg     Config
	ids     *utility.Sequence
	pending map[int]map[string]common.Signal
}

func NewRouter(logger *zap.Logger, cfg Config, ids *utility.Sequence) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = utility.NewSequence("ORD")
	}
	return &Router{
		logger:  logger,
		cfg:     cfg,
		ids:     ids,
		pending: make(map[int]map[string]common.Signal),
	}, nil
}

func (r *Router) Delay() int {
	return r.cfg.Delay
}

// Schedule holds the signal until tick+Delay. A later signal for the same symbol due at the
// same tick replaces the earlier one.
func (r *Router) Schedule(signal common.Signal, tick int) int {
	due := tick + r.cfg.Delay
	bucket, ok := r.pending[due]
	if !ok {
		bucket = make(map[string]common.Signal)
		r.pending[due] = bucket
	}
	if prev, ok := bucket[signal.Symbol]; ok {
		r.logger.Debug("signal superseded",
			zap.String("symbol", signal.Symbol),
			zap.String("previous", prev.Exposure.String()),
			zap.String("exposure", signal.Exposure.String()),
			zap.Int("due", due))
	}
	bucket[signal.Symbol] = signal
	return due
}

// Due removes and returns the signals due at or before tick, ordered by symbol.
func (r *Router) Due(tick int) []common.Signal {
	var ticks []int
	for due := range r.pending {
		if due <= tick {
			ticks = append(ticks, due)
		}
	}
	sort.Ints(ticks)

	latest := make(map[string]common.Signal)
	for _, due := range ticks {
		for symbol, signal := range r.pending[due] {
			latest[symbol] = signal
		}
		delete(r.pending, due)
	}

	signals := make([]common.Signal, 0, len(latest))
	for _, signal := range latest {
		signals = append(signals, signal)
	}
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Symbol < signals[j].Symbol
	})
	return signals
}

// Waiting returns how many signals are scheduled but not yet due.
func (r *Router) Waiting() int {
	n := 0
	for _, bucket := range r.pending {
		n += len(bucket)
	}
	return n
}

// TargetQuantity returns the whole number of units the exposure asks for at price.
func (r *Router) TargetQuantity(exposure, price fixed.Point, snapshot ledger.Snapshot) fixed.Point {
	base := r.cfg.CapitalBase
	if base.IsZero() {
		base = snapshot.Equity()
	}
	return exposure.Mul(base).Div(price).Round(0)
}

// Size converts a due signal into an order for the difference between the target quantity
// and what is already held or pending. It reports false when there is nothing to trade. The
// order timestamp is left for the caller to stamp with the dispatch time.
func (r *Router) Size(signal common.Signal, price fixed.Point, snapshot ledger.Snapshot, pending fixed.Point) (common.OrderRequest, bool) {
	if !price.IsPos() {
		r.logger.Warn("no tradable price", zap.String("symbol", signal.Symbol), zap.String("price", price.String()))
		return common.OrderRequest{}, false
	}

	target := r.TargetQuantity(signal.Exposure, price, snapshot)
	delta := target.Sub(snapshot.Quantity(signal.Symbol)).Sub(pending)
	if delta.IsZero() || delta.Abs().Lt(r.cfg.MinQuantity) {
		return common.OrderRequest{}, false
	}

	return common.OrderRequest{
		Id:             r.ids.Next(),
		Symbol:         signal.Symbol,
		Side:           common.SideOf(delta),
		Quantity:       delta.Abs(),
		ReferencePrice: price,
		SignalTime:     signal.TimeStamp,
		Source:         signal.Source,
		ExecutionID:    signal.ExecutionID,
		TraceID:        signal.TraceID,
	}, true
}
