package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/common"
)

const loggerComponentName = "audit"

var _ Sink = (*Logger)(nil)

// Logger writes every record as a structured log line. It keeps no state and cannot be replayed.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named(loggerComponentName)}
}

func (l *Logger) RecordDecision(_ context.Context, order common.OrderRequest, decision common.RiskDecision) error {
	l.logger.Info("decision",
		zap.Stringer("eid", order.ExecutionID),
		zap.String("order_id", order.Id),
		zap.String("symbol", order.Symbol),
		zap.Stringer("side", order.Side),
		zap.Stringer("quantity", order.Quantity),
		zap.Stringer("reference_price", order.ReferencePrice),
		zap.Bool("allowed", decision.Allowed),
		zap.String("reason", string(decision.Reason)),
		zap.Stringer("notional", decision.Context.Notional),
		zap.Stringer("gross_after", decision.Context.GrossAfter),
		zap.Stringer("daily_pnl", decision.Context.DailyPnL),
		zap.Time("order_ts", order.TimeStamp))
	return nil
}

func (l *Logger) RecordSubmission(_ context.Context, submission common.Submission) error {
	l.logger.Info("submission",
		zap.Stringer("eid", submission.ExecutionID),
		zap.String("order_id", submission.OrderId),
		zap.String("broker_order_id", submission.BrokerOrderId),
		zap.String("status", string(submission.Status)),
		zap.String("reason", string(submission.Reason)),
		zap.String("error", submission.Error),
		zap.Int("attempts", submission.Attempts),
		zap.Time("submission_ts", submission.TimeStamp))
	return nil
}

func (l *Logger) RecordFill(_ context.Context, fill common.Fill) error {
	l.logger.Info("fill",
		zap.Stringer("eid", fill.ExecutionID),
		zap.String("fill_id", fill.Id),
		zap.String("order_id", fill.OrderId),
		zap.String("symbol", fill.Symbol),
		zap.Stringer("side", fill.Side),
		zap.Stringer("quantity", fill.Quantity),
		zap.Stringer("price", fill.Price),
		zap.Stringer("commission", fill.Commission),
		zap.String("venue", fill.Venue),
		zap.Time("fill_ts", fill.TimeStamp))
	return nil
}

func (l *Logger) Close() error {
	return nil
}
