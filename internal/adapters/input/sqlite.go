package input

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/puntscope/pkg/logger"
	_ "modernc.org/sqlite"
)

// SQLiteLoader reads a table from a SQLite database file.
type SQLiteLoader struct {
	path   string
	table  string
	logger logger.Logger
}

// Load selects every row of the table. Column rules match the CSV loader.
func (l *SQLiteLoader) Load(ctx context.Context) (Result, error) {
	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return Result{}, fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	res, err := ReadTable(ctx, db, l.table)
	if err != nil {
		return Result{}, fmt.Errorf("read %s:%s: %w", l.path, l.table, err)
	}
	l.logger.Info(ctx, "sqlite table loaded",
		logger.String("path", l.path),
		logger.String("table", l.table),
		logger.Int("events", len(res.Events)),
		logger.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// ReadTable reads punt rows from table on db.
func ReadTable(ctx context.Context, db *sql.DB, table string) (Result, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	headers, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}
	s, err := resolveSchema(headers)
	if err != nil {
		return Result{}, err
	}

	values := make([]any, len(headers))
	ptrs := make([]any, len(headers))
	for i := range values {
		ptrs[i] = &values[i]
	}
	cells := make([]string, len(headers))

	var res Result
	for line := 1; rows.Next(); line++ {
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("row %d: %w", line, err)
		}
		for i, v := range values {
			cells[i] = cellString(v)
		}
		e, err := s.event(line, cells)
		if err != nil {
			res.Rejected = append(res.Rejected, err)
			continue
		}
		res.Events = append(res.Events, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

// cellString renders a dynamically typed SQLite value as text.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
