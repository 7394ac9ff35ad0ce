package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var ErrWrite = errors.New("audit write failed")

// dialect captures what differs between the SQL backends.
type dialect struct {
	name       string
	migrations []string
	numbered   bool
}

func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore is the shared implementation of the SQL sinks. Each record is written in its own
// transaction and committed before the call returns.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for version := int(current.Int64); version < len(s.dialect.migrations); version++ {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, s.dialect.migrations[version]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, s.dialect.bind(`INSERT INTO schema_version (version) VALUES (?)`), version+1)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s migration %d: %w", s.dialect.name, version+1, err)
		}
	}
	return nil
}

func (s *sqlStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqlStore) RecordDecision(ctx context.Context, order common.OrderRequest, decision common.RiskDecision) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.bind(`
			INSERT INTO orders (eid, order_id, symbol, side, quantity, reference_price, signal_ts, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			order.ExecutionID.String(), order.Id, order.Symbol, order.Side.String(),
			order.Quantity.String(), order.ReferencePrice.String(),
			formatTime(order.SignalTime), formatTime(order.TimeStamp))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.dialect.bind(`
			INSERT INTO decisions (eid, order_id, allowed, reason, notional, symbol_notional_after, gross_after, daily_pnl, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			decision.ExecutionID.String(), decision.OrderId, decision.Allowed, string(decision.Reason),
			decision.Context.Notional.String(), decision.Context.SymbolNotionalAfter.String(),
			decision.Context.GrossAfter.String(), decision.Context.DailyPnL.String(),
			formatTime(decision.TimeStamp))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: decision for order %s: %w", ErrWrite, order.Id, err)
	}
	return nil
}

func (s *sqlStore) RecordSubmission(ctx context.Context, submission common.Submission) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.bind(`
			INSERT INTO submissions (eid, order_id, broker_order_id, status, reason, error, attempts, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			submission.ExecutionID.String(), submission.OrderId, submission.BrokerOrderId,
			string(submission.Status), string(submission.Reason), submission.Error, submission.Attempts,
			formatTime(submission.TimeStamp))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: submission for order %s: %w", ErrWrite, submission.OrderId, err)
	}
	return nil
}

func (s *sqlStore) RecordFill(ctx context.Context, fill common.Fill) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.bind(`
			INSERT INTO fills (eid, fill_id, order_id, broker_order_id, symbol, side, quantity, price, commission, slippage, venue, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			fill.ExecutionID.String(), fill.Id, fill.OrderId, fill.BrokerOrderId, fill.Symbol, fill.Side.String(),
			fill.Quantity.String(), fill.Price.String(), fill.Commission.String(), fill.Slippage.String(),
			fill.Venue, formatTime(fill.TimeStamp))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: fill %s: %w", ErrWrite, fill.Id, err)
	}
	return nil
}

func (s *sqlStore) Fills(ctx context.Context, executionID utility.ExecutionID) ([]common.Fill, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(`
		SELECT eid, fill_id, order_id, broker_order_id, symbol, side, quantity, price, commission, slippage, venue, ts
		FROM fills WHERE eid = ? ORDER BY seq`), executionID.String())
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var fills []common.Fill
	for rows.Next() {
		var fill common.Fill
		var eid, side, qty, price, commission, slip, ts string
		if err := rows.Scan(&eid, &fill.Id, &fill.OrderId, &fill.BrokerOrderId, &fill.Symbol, &side,
			&qty, &price, &commission, &slip, &fill.Venue, &ts); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		if err := decodeFill(&fill, eid, side, qty, price, commission, slip, ts); err != nil {
			return nil, fmt.Errorf("decode fill %s: %w", fill.Id, err)
		}
		fills = append(fills, fill)
	}
	return fills, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func decodeFill(fill *common.Fill, eid, side, qty, price, commission, slippage, ts string) error {
	var err error
	if fill.ExecutionID, err = utility.ParseExecutionID(eid); err != nil {
		return err
	}
	if fill.Side, err = common.ParseOrderSide(side); err != nil {
		return err
	}
	for _, field := range []struct {
		dst *fixed.Point
		src string
	}{
		{&fill.Quantity, qty},
		{&fill.Price, price},
		{&fill.Commission, commission},
		{&fill.Slippage, slippage},
	} {
		if *field.dst, err = fixed.FromString(field.src); err != nil {
			return err
		}
	}
	fill.TimeStamp, err = time.Parse(time.RFC3339Nano, ts)
	return err
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
