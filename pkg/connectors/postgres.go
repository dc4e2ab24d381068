package connectors

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/flatten"
)

// PostgresConnector lists tables and streams their rows as records.
type PostgresConnector struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewPostgresConnector connects to a Postgres database.
func NewPostgresConnector(ctx context.Context, dsn string, queryTimeout time.Duration, logger *zap.Logger) (*PostgresConnector, error) {
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	return &PostgresConnector{
		pool:         pool,
		queryTimeout: queryTimeout,
		logger:       logger.Named("postgres"),
	}, nil
}

// ListTables returns the table names of the public schema.
func (c *PostgresConnector) ListTables(ctx context.Context) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(queryCtx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", apperrors.ErrDataSource, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	return tables, nil
}

// TableSource opens a row stream over one table, capped at limit rows.
func (c *PostgresConnector) TableSource(ctx context.Context, table string, limit int) (*PostgresSource, error) {
	if limit <= 0 {
		limit = 1000
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgx.Identifier{table}.Sanitize(), limit)

	rows, err := c.pool.Query(queryCtx, query)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: query %s: %v", apperrors.ErrDataSource, table, err)
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	c.logger.Debug("table stream opened",
		zap.String("table", table),
		zap.Int("columns", len(columns)),
		zap.Int("limit", limit))

	return &PostgresSource{rows: rows, columns: columns, cancel: cancel}, nil
}

// Close releases the connection pool.
func (c *PostgresConnector) Close() {
	c.pool.Close()
}

// PostgresSource adapts a pgx row stream to the record contract.
type PostgresSource struct {
	rows    pgx.Rows
	columns []string
	cancel  context.CancelFunc
}

// Next returns the next row as a record.
func (s *PostgresSource) Next(ctx context.Context) (flatten.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
		}
		return nil, io.EOF
	}
	values, err := s.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	rec := make(flatten.Record, len(s.columns))
	for i, col := range s.columns {
		if i < len(values) {
			rec[col] = values[i]
		}
	}
	return rec, nil
}

// Close ends the row stream and its query timeout.
func (s *PostgresSource) Close() error {
	s.rows.Close()
	s.cancel()
	return nil
}
