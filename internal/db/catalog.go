// Package db keeps the latest earthquake snapshot in an in-memory DuckDB
// catalog for ad-hoc SQL.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/style"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("catalog closed")

// EarthquakesTable is the table holding the latest earthquake snapshot.
const EarthquakesTable = "earthquakes"

const createEarthquakes = `CREATE TABLE IF NOT EXISTS earthquakes (
	id         VARCHAR,
	place      VARCHAR,
	magnitude  DOUBLE,
	depth_km   DOUBLE,
	lon        DOUBLE,
	lat        DOUBLE,
	event_time TIMESTAMP,
	radius     DOUBLE,
	color      VARCHAR
)`

// Catalog is an in-memory DuckDB database.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex // serialises snapshot replacement
	closed bool
}

// Result is a generic query result.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Open creates an empty in-memory catalog.
func Open(ctx context.Context, logger *slog.Logger) (*Catalog, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEarthquakes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s: %w", EarthquakesTable, err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// ReplaceEarthquakes swaps the earthquake table contents for quakes in one
// transaction. Each row carries the marker radius and depth colour.
func (c *Catalog) ReplaceEarthquakes(ctx context.Context, quakes []feed.Earthquake) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createEarthquakes); err != nil {
		return fmt.Errorf("create %s: %w", EarthquakesTable, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM earthquakes"); err != nil {
		return fmt.Errorf("clear %s: %w", EarthquakesTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO earthquakes
		(id, place, magnitude, depth_km, lon, lat, event_time, radius, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quakes {
		if _, err := stmt.ExecContext(ctx,
			q.ID, q.Place, q.Magnitude, q.Depth, q.Point.Lon(), q.Point.Lat(), q.Time,
			style.Radius(q.Magnitude), style.Color(q.Depth),
		); err != nil {
			return fmt.Errorf("insert %q: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if c.logger != nil {
		c.logger.DebugContext(ctx, "earthquake catalog replaced", "rows", len(quakes))
	}
	return nil
}

// Tables lists the catalog's tables.
func (c *Catalog) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Query runs an arbitrary SQL statement and collects every row.
func (c *Catalog) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	res := &Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
