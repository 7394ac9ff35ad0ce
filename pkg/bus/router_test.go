package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/common"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func createRecordingRouter(trace *[]string) *Router {
	r := NewRouter(zap.NewNop())
	r.OnMarket = func(_ context.Context, bar common.Bar) error {
		*trace = append(*trace, "market:"+bar.Symbol)
		return nil
	}
	r.OnSignal = func(_ context.Context, signal common.Signal) error {
		*trace = append(*trace, "signal:"+signal.Symbol)
		return nil
	}
	r.OnOrder = func(_ context.Context, order common.OrderRequest) error {
		*trace = append(*trace, "order:"+order.Symbol)
		return nil
	}
	r.OnFill = func(_ context.Context, fill common.Fill) error {
		*trace = append(*trace, "fill:"+fill.Symbol)
		return nil
	}
	return r
}

func TestBusRouter_CompositeOrdering(t *testing.T) {
	var trace []string
	r := createRecordingRouter(&trace)

	posts := []struct {
		id   EventId
		ts   time.Time
		data any
	}{
		{FillEvent, t0, common.Fill{Symbol: "A"}},
		{OrderEvent, t0, common.OrderRequest{Symbol: "A"}},
		{MarketEvent, t0.Add(time.Minute), common.Bar{Symbol: "B"}},
		{SignalEvent, t0, common.Signal{Symbol: "A"}},
		{MarketEvent, t0, common.Bar{Symbol: "A"}},
		{MarketEvent, t0, common.Bar{Symbol: "C"}},
	}
	for _, p := range posts {
		if err := r.Post(p.id, p.ts, p.data); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}

	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	want := []string{"market:A", "market:C", "signal:A", "order:A", "fill:A", "market:B"}
	if len(trace) != len(want) {
		t.Fatalf("Expected %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], trace[i])
		}
	}

	stats := r.Statistics()
	if stats.PostCount != 6 || stats.DispatchCount != 6 {
		t.Errorf("Expected 6 posts and dispatches, got %d/%d", stats.PostCount, stats.DispatchCount)
	}
}

func TestBusRouter_HandlerPostsFollowUps(t *testing.T) {
	var trace []string
	r := createRecordingRouter(&trace)
	r.OnMarket = func(_ context.Context, bar common.Bar) error {
		trace = append(trace, "market:"+bar.Symbol)
		if err := r.Post(FillEvent, bar.TimeStamp, common.Fill{Symbol: bar.Symbol}); err != nil {
			return err
		}
		return r.Post(SignalEvent, bar.TimeStamp, common.Signal{Symbol: bar.Symbol})
	}

	if err := r.Post(MarketEvent, t0, common.Bar{Symbol: "A", TimeStamp: t0}); err != nil {
		t.Fatal(err)
	}
	if err := r.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"market:A", "signal:A", "fill:A"}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], trace[i])
		}
	}
}

func TestBusRouter_PostIntoThePastIsFatal(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.OnOrder = func(ctx context.Context, order common.OrderRequest) error {
		return r.Post(SignalEvent, t0, common.Signal{})
	}

	if err := r.Post(OrderEvent, t0, common.OrderRequest{}); err != nil {
		t.Fatal(err)
	}

	err := r.Drain(context.Background())
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("Expected ErrOutOfOrder, got %v", err)
	}
	if r.Statistics().PostFails != 1 {
		t.Errorf("Expected postFails=1, got %d", r.Statistics().PostFails)
	}
}

func TestBusRouter_PostEarlierTimestampIsFatal(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if err := r.Post(MarketEvent, t0, common.Bar{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := r.Post(FillEvent, t0.Add(-time.Second), common.Fill{}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Expected ErrOutOfOrder, got %v", err)
	}
	if err := r.Post(FillEvent, t0, common.Fill{}); err != nil {
		t.Errorf("Expected later kind at same instant to be accepted, got %v", err)
	}
}

func TestBusRouter_HandlerErrorStopsDrain(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(zap.NewNop())
	calls := 0
	r.OnMarket = func(context.Context, common.Bar) error {
		calls++
		return boom
	}

	_ = r.Post(MarketEvent, t0, common.Bar{})
	_ = r.Post(MarketEvent, t0.Add(time.Second), common.Bar{})

	if err := r.Drain(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if r.Pending() != 1 {
		t.Errorf("Expected 1 pending event, got %d", r.Pending())
	}
	if r.Statistics().DispatchFails != 1 {
		t.Errorf("Expected dispatchFails=1, got %d", r.Statistics().DispatchFails)
	}
}

func TestBusRouter_ExecLoop(t *testing.T) {
	done := errors.New("done")
	r := NewRouter(zap.NewNop())

	handled := 0
	r.OnMarket = func(context.Context, common.Bar) error {
		handled++
		return nil
	}

	fed := 0
	err := r.ExecLoop(context.Background(), func(context.Context) error {
		if fed == 3 {
			return done
		}
		fed++
		return r.Post(MarketEvent, t0.Add(time.Duration(fed)*time.Minute), common.Bar{})
	})

	if !errors.Is(err, done) {
		t.Fatalf("Expected done, got %v", err)
	}
	if handled != 3 {
		t.Errorf("Expected 3 handled bars, got %d", handled)
	}
}

func TestBusRouter_ContextCancelled(t *testing.T) {
	r := NewRouter(zap.NewNop())
	_ = r.Post(MarketEvent, t0, common.Bar{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBusRouter_InvalidPayload(t *testing.T) {
	r := NewRouter(zap.NewNop())
	_ = r.Post(FillEvent, t0, "not a fill")

	if err := r.Drain(context.Background()); err == nil {
		t.Error("Expected type assertion error")
	}
}

func TestBus_MergeHandlers(t *testing.T) {
	var calls []int
	stop := errors.New("stop")
	merged := MergeHandlers[common.Bar](
		func(context.Context, common.Bar) error { calls = append(calls, 1); return nil },
		func(context.Context, common.Bar) error { calls = append(calls, 2); return stop },
		func(context.Context, common.Bar) error { calls = append(calls, 3); return nil },
	)

	if err := merged(context.Background(), common.Bar{}); !errors.Is(err, stop) {
		t.Errorf("Expected stop, got %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("Expected 2 calls, got %v", calls)
	}
}
