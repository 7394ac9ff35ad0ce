package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var _ Sink = (*SQLite)(nil)
var _ FillLog = (*SQLite)(nil)

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{
		`CREATE TABLE orders (
			eid TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			reference_price TEXT NOT NULL,
			signal_ts TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (eid, order_id)
		)`,
		`CREATE TABLE decisions (
			eid TEXT NOT NULL,
			order_id TEXT NOT NULL,
			allowed INTEGER NOT NULL,
			reason TEXT NOT NULL,
			notional TEXT NOT NULL,
			symbol_notional_after TEXT NOT NULL,
			gross_after TEXT NOT NULL,
			daily_pnl TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (eid, order_id)
		)`,
		`CREATE TABLE submissions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			eid TEXT NOT NULL,
			order_id TEXT NOT NULL,
			broker_order_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			error TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			ts TEXT NOT NULL
		)`,
		`CREATE TABLE fills (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			eid TEXT NOT NULL,
			fill_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			broker_order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			commission TEXT NOT NULL,
			slippage TEXT NOT NULL,
			venue TEXT NOT NULL,
			ts TEXT NOT NULL,
			UNIQUE (eid, fill_id)
		)`,
	},
}

// SQLite is a file backed audit log. The database runs in WAL mode with full synchronous
// commits so that a record survives a crash once the call returns.
type SQLite struct {
	sqlStore
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=FULL`,
		`PRAGMA busy_timeout=5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLite{sqlStore{db: db, dialect: sqliteDialect}}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
