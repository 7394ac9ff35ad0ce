package audit

import (
	"context"

	"github.com/peter-kozarec/quantex/pkg/data/db/psql"
)

var _ Sink = (*Postgres)(nil)
var _ FillLog = (*Postgres)(nil)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	migrations: []string{
		`CREATE TABLE orders (
			eid TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity NUMERIC NOT NULL,
			reference_price NUMERIC NOT NULL,
			signal_ts TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (eid, order_id)
		)`,
		`CREATE TABLE decisions (
			eid TEXT NOT NULL,
			order_id TEXT NOT NULL,
			allowed BOOLEAN NOT NULL,
			reason TEXT NOT NULL,
			notional NUMERIC NOT NULL,
			symbol_notional_after NUMERIC NOT NULL,
			gross_after NUMERIC NOT NULL,
			daily_pnl NUMERIC NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (eid, order_id)
		)`,
		`CREATE TABLE submissions (
			seq BIGSERIAL PRIMARY KEY,
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
			seq BIGSERIAL PRIMARY KEY,
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

// Postgres shares the schema of SQLite, using numeric columns for decision amounts.
type Postgres struct {
	sqlStore
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := psql.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	s := &Postgres{sqlStore{db: db, dialect: postgresDialect}}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
