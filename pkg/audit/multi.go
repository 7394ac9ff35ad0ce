package audit

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

var (
	_ Sink    = Multi(nil)
	_ FillLog = Multi(nil)
)

// ErrNoFillLog is returned when no member of a Multi can read fills back.
var ErrNoFillLog = errors.New("no sink keeps a readable fill log")

// Multi writes every record to all sinks in order. Every sink is attempted; the errors of the
// failing ones are combined.
type Multi []Sink

func (m Multi) RecordDecision(ctx context.Context, order common.OrderRequest, decision common.RiskDecision) error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.RecordDecision(ctx, order, decision))
	}
	return err
}

func (m Multi) RecordSubmission(ctx context.Context, submission common.Submission) error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.RecordSubmission(ctx, submission))
	}
	return err
}

func (m Multi) RecordFill(ctx context.Context, fill common.Fill) error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.RecordFill(ctx, fill))
	}
	return err
}

// Fills reads from the first sink that keeps a fill log.
func (m Multi) Fills(ctx context.Context, executionID utility.ExecutionID) ([]common.Fill, error) {
	for _, sink := range m {
		if log, ok := sink.(FillLog); ok {
			return log.Fills(ctx, executionID)
		}
	}
	return nil, ErrNoFillLog
}

func (m Multi) Close() error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.Close())
	}
	return err
}
