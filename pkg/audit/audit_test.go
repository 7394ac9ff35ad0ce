package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var (
	t0  = time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
	eid = utility.SeededExecutionID("audit-test", 7)
)

func createOrder(id string) common.OrderRequest {
	return common.OrderRequest{
		Id:             id,
		Symbol:         "SPY",
		Side:           common.OrderSideBuy,
		Quantity:       fixed.FromInt(10, 0),
		ReferencePrice: fixed.FromFloat64(512.25),
		SignalTime:     t0.Add(-time.Minute),
		ExecutionID:    eid,
		TimeStamp:      t0,
	}
}

func createFill(id, orderId string, side common.OrderSide, offset int) common.Fill {
	return common.Fill{
		Id:            id,
		OrderId:       orderId,
		BrokerOrderId: "SIM-" + orderId,
		Symbol:        "SPY",
		Side:          side,
		Quantity:      fixed.FromInt(10, 0),
		Price:         fixed.FromFloat64(512.3),
		Commission:    fixed.FromFloat64(0.51),
		Slippage:      fixed.FromFloat64(0.5),
		Venue:         "SIM",
		ExecutionID:   eid,
		TimeStamp:     t0.Add(time.Duration(offset) * time.Minute),
	}
}

func writeRun(t *testing.T, sink Sink) {
	t.Helper()
	ctx := context.Background()
	order := createOrder("ORD-1")
	require.NoError(t, sink.RecordDecision(ctx, order, common.RiskDecision{
		OrderId: order.Id, Allowed: true, ExecutionID: eid, TimeStamp: t0,
		Context: common.DecisionContext{Notional: order.Notional()},
	}))
	require.NoError(t, sink.RecordSubmission(ctx, common.Submission{
		OrderId: order.Id, BrokerOrderId: "SIM-1", Status: common.SubmissionSubmitted, Attempts: 1,
		ExecutionID: eid, TimeStamp: t0,
	}))
	require.NoError(t, sink.RecordFill(ctx, createFill("F-1", order.Id, common.OrderSideBuy, 1)))
	require.NoError(t, sink.RecordFill(ctx, createFill("F-2", order.Id, common.OrderSideSell, 2)))
}

func TestMemory_KeepsWriteOrder(t *testing.T) {
	m := NewMemory()
	writeRun(t, m)

	records := m.Records()
	require.Len(t, records, 4)
	assert.Equal(t, []Kind{KindDecision, KindSubmission, KindFill, KindFill},
		[]Kind{records[0].Kind, records[1].Kind, records[2].Kind, records[3].Kind})
	for i, record := range records {
		assert.Equal(t, i+1, record.Seq)
		assert.Equal(t, "ORD-1", record.OrderId())
	}
	assert.Len(t, m.Decisions(), 1)
	assert.Len(t, m.Submissions(), 1)

	fills, err := m.Fills(context.Background(), utility.ExecutionID{})
	require.NoError(t, err)
	assert.Len(t, fills, 2)

	fills, err = m.Fills(context.Background(), utility.SeededExecutionID("other", 1))
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestSQLite_FillsReplayIntoLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	sink, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	writeRun(t, sink)
	require.NoError(t, sink.Close())

	// reopening must not re-run migrations
	sink, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer sink.Close()

	fills, err := sink.Fills(ctx, eid)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "F-1", fills[0].Id)
	assert.Equal(t, common.OrderSideSell, fills[1].Side)
	assert.True(t, fills[0].Price.Eq(fixed.FromFloat64(512.3)))
	assert.Equal(t, eid, fills[0].ExecutionID)
	assert.True(t, fills[0].TimeStamp.Equal(t0.Add(time.Minute)))

	memory := NewMemory()
	writeRun(t, memory)
	memoryFills, err := memory.Fills(ctx, eid)
	require.NoError(t, err)

	initial := fixed.FromInt(100_000, 0)
	fromSQL, err := ledger.Replay(initial, fills)
	require.NoError(t, err)
	fromMemory, err := ledger.Replay(initial, memoryFills)
	require.NoError(t, err)
	assert.True(t, fromSQL.Cash().Eq(fromMemory.Cash()))
	assert.True(t, fromSQL.Snapshot().Quantity("SPY").IsZero())
}

func TestSQLite_DuplicateFillFails(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.RecordFill(ctx, createFill("F-1", "ORD-1", common.OrderSideBuy, 0)))
	err = sink.RecordFill(ctx, createFill("F-1", "ORD-1", common.OrderSideBuy, 0))
	assert.ErrorIs(t, err, ErrWrite)
}

func TestLogger_WritesStructuredLines(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	writeRun(t, NewLogger(zap.New(core)))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "decision", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "ORD-1", entries[0].ContextMap()["order_id"])
	assert.Equal(t, "fill", entries[3].Message)
}

type failingSink struct {
	Memory
	err error
}

func (f *failingSink) RecordFill(context.Context, common.Fill) error { return f.err }
func (f *failingSink) Close() error                                  { return f.err }

func TestMulti_WritesEverySinkAndCombinesErrors(t *testing.T) {
	first, second := NewMemory(), NewMemory()
	broken := &failingSink{err: errors.New("disk full")}
	multi := Multi{first, broken, second}

	err := multi.RecordFill(context.Background(), createFill("F-1", "ORD-1", common.OrderSideBuy, 0))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, first.Records(), 1)
	assert.Len(t, second.Records(), 1)

	require.NoError(t, multi.RecordSubmission(context.Background(), common.Submission{OrderId: "ORD-1"}))
	assert.Error(t, multi.Close())
}

func TestMulti_FillsReadsFirstFillLog(t *testing.T) {
	ctx := context.Background()
	memory := NewMemory()
	multi := Multi{NewLogger(zap.NewNop()), memory}
	require.NoError(t, multi.RecordFill(ctx, createFill("F-1", "ORD-1", common.OrderSideBuy, 0)))

	fills, err := multi.Fills(ctx, eid)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "F-1", fills[0].Id)

	_, err = Multi{NewLogger(zap.NewNop())}.Fills(ctx, eid)
	assert.ErrorIs(t, err, ErrNoFillLog)
}

func TestDialect_Bind(t *testing.T) {
	query := `INSERT INTO t (a, b) VALUES (?, ?)`
	assert.Equal(t, query, sqliteDialect.bind(query))
	assert.Equal(t, `INSERT INTO t (a, b) VALUES ($1, $2)`, postgresDialect.bind(query))
	assert.Equal(t, len(sqliteDialect.migrations), len(postgresDialect.migrations))
}
