package middleware

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/quantex/pkg/common"
)

func setupTestLogger(_ *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func TestMiddlewareMonitor_NewMonitor(t *testing.T) {
	m := NewMonitor(zap.NewNop(), MonitorBars|MonitorFills)
	if m.flags != (MonitorBars | MonitorFills) {
		t.Errorf("Expected flags %d, got %d", MonitorBars|MonitorFills, m.flags)
	}
}

func TestMiddlewareMonitor_WithMarket(t *testing.T) {
	logger, logs := setupTestLogger(t)

	var handlerCalled bool
	handler := func(ctx context.Context, bar common.Bar) error {
		handlerCalled = true
		return nil
	}

	wrapped := NewMonitor(logger, MonitorBars).WithMarket(handler)
	if err := wrapped(context.Background(), common.Bar{Symbol: "SPY"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !handlerCalled {
		t.Error("Handler not called")
	}
	if logs.FilterField(zap.String("bar", "SPY")).Len() != 1 {
		t.Error("Log entry not found")
	}
}

func TestMiddlewareMonitor_NoMonitor(t *testing.T) {
	logger, logs := setupTestLogger(t)
	m := NewMonitor(logger, MonitorNone)

	_ = m.WithMarket(NoopMarketHdl)(context.Background(), common.Bar{})
	_ = m.WithSignal(NoopSignalHdl)(context.Background(), common.Signal{})
	_ = m.WithOrder(NoopOrderHdl)(context.Background(), common.OrderRequest{})
	_ = m.WithFill(NoopFillHdl)(context.Background(), common.Fill{})

	if logs.Len() != 0 {
		t.Errorf("Unexpected log entries: %d", logs.Len())
	}
}

func TestMiddlewareMonitor_FlagCombinations(t *testing.T) {
	tests := []struct {
		name  string
		flags MonitorFlags
		want  int
	}{
		{"all", MonitorAll, 4},
		{"signals and fills", MonitorSignals | MonitorFills, 2},
		{"orders only", MonitorOrders, 1},
		{"all overrides none", MonitorAll | MonitorNone, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := setupTestLogger(t)
			m := NewMonitor(logger, tt.flags)

			_ = m.WithMarket(NoopMarketHdl)(context.Background(), common.Bar{})
			_ = m.WithSignal(NoopSignalHdl)(context.Background(), common.Signal{})
			_ = m.WithOrder(NoopOrderHdl)(context.Background(), common.OrderRequest{})
			_ = m.WithFill(NoopFillHdl)(context.Background(), common.Fill{})

			if logs.Len() != tt.want {
				t.Errorf("Expected %d log entries, got %d", tt.want, logs.Len())
			}
		})
	}
}

func TestMiddlewareMonitor_PropagatesErrors(t *testing.T) {
	want := errors.New("ledger consistency")
	handler := func(context.Context, common.Fill) error { return want }

	err := NewMonitor(zap.NewNop(), MonitorAll).WithFill(handler)(context.Background(), common.Fill{})
	if !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}

func TestMiddlewareMonitor_ContextPropagation(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")

	var got any
	handler := func(ctx context.Context, signal common.Signal) error {
		got = ctx.Value(ctxKey{})
		return nil
	}

	_ = NewMonitor(zap.NewNop(), MonitorSignals).WithSignal(handler)(ctx, common.Signal{})
	if got != "value" {
		t.Errorf("Context value not propagated, got %v", got)
	}
}

func TestParseMonitorFlags(t *testing.T) {
	flags, err := ParseMonitorFlags(" orders, Fills ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags&MonitorOrders == 0 || flags&MonitorFills == 0 || flags&MonitorBars != 0 {
		t.Errorf("unexpected flags %b", flags)
	}

	if _, err := ParseMonitorFlags("orders,trades"); err == nil {
		t.Error("expected error for unknown flag")
	}
}
