package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/streamql/internal/stream"
)

// Defaults for table streams.
const (
	DefaultBatchSize    = 256
	DefaultPollInterval = time.Second
)

// DB exposes the tables of a SQLite database as sources.
//
// Rows are read in rowid order, in batches. A batch is fully read and its
// cursor closed before any row is emitted, so a slow consumer (or a join
// reading another table per row) never holds the connection.
type DB struct {
	db     *sql.DB
	batch  int
	follow bool
	poll   time.Duration
}

// DBOption configures a DB.
type DBOption func(*DB)

// WithFollow keeps table streams open after the last row, polling every
// poll for rows with a higher rowid until the subscription is cancelled.
func WithFollow(poll time.Duration) DBOption {
	return func(d *DB) {
		d.follow = true
		if poll > 0 {
			d.poll = poll
		}
	}
}

// WithBatchSize sets how many rows are read per query.
//
// Default: 256 (DefaultBatchSize)
func WithBatchSize(n int) DBOption {
	return func(d *DB) {
		if n > 0 {
			d.batch = n
		}
	}
}

// OpenDB opens the SQLite database at path.
//
// The connection is configured with:
//   - WAL mode so a writer can append while tables are followed
//   - 5-second busy timeout for lock contention
//   - a single connection
func OpenDB(path string, opts ...DBOption) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	d := &DB{db: db, batch: DefaultBatchSize, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQL returns the underlying handle, for fixtures and writers.
func (d *DB) SQL() *sql.DB { return d.db }

// Source implements Provider. Every name is accepted; a name that is not a
// table fails the subscription with ErrUnknownSource.
func (d *DB) Source(name string) (stream.Stream[any], bool) {
	return d.Table(name), true
}

// Tables lists the database's tables in name order.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *DB) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %q: %w", name, err)
	}
	return n > 0, nil
}

// Table streams the rows of table as column maps in rowid order.
func (d *DB) Table(table string) stream.Stream[any] {
	return func(ctx context.Context, emit func(any) error) error {
		ok, err := d.hasTable(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSource, table)
		}

		query := fmt.Sprintf(`SELECT rowid, * FROM %s WHERE rowid > ? ORDER BY rowid LIMIT ?`, quoteIdent(table))
		var last int64
		for {
			batch, next, err := d.readBatch(ctx, query, last)
			if err != nil {
				return fmt.Errorf("read %s: %w", table, err)
			}
			last = next
			for _, row := range batch {
				if err := emit(row); err != nil {
					return err
				}
			}
			if len(batch) == d.batch {
				continue
			}
			if !d.follow {
				return nil
			}
			if err := sleep(ctx, d.poll); err != nil {
				return err
			}
		}
	}
}

// readBatch reads up to d.batch rows after rowid last and returns them with
// the highest rowid read.
func (d *DB) readBatch(ctx context.Context, query string, last int64) ([]any, int64, error) {
	rows, err := d.db.QueryContext(ctx, query, last, d.batch)
	if err != nil {
		return nil, last, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, last, err
	}

	var out []any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, last, err
		}

		row := make(map[string]any, len(cols)-1)
		for i, c := range cols[1:] {
			row[c] = columnValue(vals[i+1])
		}
		if id, ok := vals[0].(int64); ok {
			last = id
		}
		out = append(out, row)
	}
	return out, last, rows.Err()
}

func columnValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
