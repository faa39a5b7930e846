package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// PostgresSource reads datasets from tables in the public schema.
type PostgresSource struct {
	db *sql.DB
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresSource) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadTable reads a whole table into a Frame. The table must appear in
// ListTables; the name is quoted before it reaches the query.
func (p *PostgresSource) LoadTable(ctx context.Context, table string) (*Frame, error) {
	tables, err := p.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	found := false
	for _, t := range tables {
		if t == table {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("table %q not found in public schema", table)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	frame := &Frame{Name: table, Headers: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = cellString(v)
		}
		frame.Rows = append(frame.Rows, record)
	}
	return frame, rows.Err()
}

// cellString renders a scanned driver value the way it would appear in a CSV.
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
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
