package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// PostgresProjectStore is a per-project relational database used by the
// NoSQL-collection ingestor: streamed rows are loaded into a
// project-scoped table here, then treated as documents downstream.
// Grounded on internal/persistence/postgres.go's NewPostgresDB connection
// setup (connection pool tuning, ping-on-connect).
type PostgresProjectStore struct {
	db *sql.DB
}

// NewPostgresProjectStore opens a Postgres connection and verifies it with
// a ping before returning.
func NewPostgresProjectStore(connectionString string) (*PostgresProjectStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres: %v", ragerr.ErrDatabase, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %v", ragerr.ErrDatabase, err)
	}

	return &PostgresProjectStore{db: db}, nil
}

func (p *PostgresProjectStore) Close() error {
	return p.db.Close()
}

// EnsureTable creates tableName if absent, inferring a TEXT column per key
// seen across the sampled rows — matching the NoSQL ingestor's
// "inferring column types on the fly" behavior with a conservative
// all-TEXT schema (every value still round-trips; narrower typing is a
// possible future refinement, not required by the contract).
func (p *PostgresProjectStore) EnsureTable(ctx context.Context, tableName string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns to create table %s", ragerr.ErrConfiguration, tableName)
	}
	var cols []string
	for _, c := range columns {
		cols = append(cols, fmt.Sprintf("%q TEXT", c))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", tableName, strings.Join(cols, ", "))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: creating project table: %v", ragerr.ErrDatabase, err)
	}
	return nil
}

// InsertRow inserts one streamed row of string-keyed values into tableName.
func (p *PostgresProjectStore) InsertRow(ctx context.Context, tableName string, row map[string]string) error {
	cols := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	values := make([]any, 0, len(row))
	i := 1
	for k, v := range row {
		cols = append(cols, fmt.Sprintf("%q", k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		values = append(values, v)
		i++
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", tableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := p.db.ExecContext(ctx, stmt, values...); err != nil {
		return fmt.Errorf("%w: inserting project row: %v", ragerr.ErrDatabase, err)
	}
	return nil
}

// TableExists reports whether tableName has been created in this project
// database.
func (p *PostgresProjectStore) TableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: checking table existence: %v", ragerr.ErrDatabase, err)
	}
	return exists, nil
}

// ExecuteQuery implements QueryExecutor against the project database.
func (p *PostgresProjectStore) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return nil, fmt.Errorf("%w: query must start with SELECT or WITH", ragerr.ErrUnsupportedOperation)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: executing project query: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %v", ragerr.ErrDatabase, err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ragerr.ErrDatabase, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetTableSchema implements SchemaIntrospector against information_schema.
func (p *PostgresProjectStore) GetTableSchema(ctx context.Context, table string) ([]Column, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable); err != nil {
			return nil, fmt.Errorf("%w: scanning schema row: %v", ragerr.ErrDatabase, err)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", ragerr.ErrNotFound, table)
	}
	return cols, rows.Err()
}
