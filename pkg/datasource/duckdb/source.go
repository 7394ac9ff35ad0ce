// Package duckdb streams bars out of a DuckDB table.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const sourceComponentName = "datasource.duckdb"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Query selects bars from Table, which must have the columns ts, symbol, open, high, low,
// close and volume.
type Query struct {
	Table   string
	Symbols []string
	From    time.Time
	To      time.Time
}

type Source struct {
	dataSourceName string
	db             *sql.DB
	rows           *sql.Rows
}

func NewSource(dataSourceName string) *Source {
	return &Source{
		dataSourceName: dataSourceName,
	}
}

func (s *Source) Connect() error {
	db, err := sql.Open("duckdb", s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", s.dataSourceName, err)
	}
	s.db = db
	return nil
}

// DB exposes the connection, mostly for loading data.
func (s *Source) DB() *sql.DB {
	return s.db
}

func (s *Source) Close() error {
	if s.rows != nil {
		_ = s.rows.Close()
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open runs the query. Bars are then pulled with Next.
func (s *Source) Open(ctx context.Context, q Query) error {
	if !identifier.MatchString(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}

	query := fmt.Sprintf(`SELECT ts, symbol, open, high, low, close, volume FROM %s WHERE ts BETWEEN ? AND ?`, q.Table)
	args := []any{q.From, q.To}
	if len(q.Symbols) > 0 {
		query += ` AND symbol IN (?` + strings.Repeat(`, ?`, len(q.Symbols)-1) + `)`
		for _, symbol := range q.Symbols {
			args = append(args, symbol)
		}
	}
	query += ` ORDER BY ts, symbol`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	s.rows = rows
	return nil
}

func (s *Source) Next(_ context.Context) (common.Bar, error) {
	if s.rows == nil {
		return common.Bar{}, fmt.Errorf("query not opened")
	}

	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return common.Bar{}, fmt.Errorf("error scanning rows: %w", err)
		}
		return common.Bar{}, datasource.ErrEof
	}

	var (
		ts                             time.Time
		symbol                         string
		open, high, low, close, volume float64
	)
	if err := s.rows.Scan(&ts, &symbol, &open, &high, &low, &close, &volume); err != nil {
		return common.Bar{}, fmt.Errorf("error scanning row: %w", err)
	}

	return common.Bar{
		Source:    sourceComponentName,
		Symbol:    symbol,
		TimeStamp: ts.UTC(),
		Open:      fixed.FromFloat64(open),
		High:      fixed.FromFloat64(high),
		Low:       fixed.FromFloat64(low),
		Close:     fixed.FromFloat64(close),
		Volume:    fixed.FromFloat64(volume),
	}, nil
}
