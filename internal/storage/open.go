package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	logx "kursbot/pkg/logx"
)

// DB wraps *sql.DB with the driver needed to rebind placeholders.
type DB struct {
	db     *sql.DB
	driver string
	log    logx.Logger
}

// Open connects, applies pragmas (sqlite) and runs migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*DB, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := normalizeDriver(cfg.Driver)
	dsn := strings.TrimSpace(cfg.DSN)

	var (
		sqlDB *sql.DB
		err   error
	)
	switch driver {
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("storage: postgres dsn is required")
		}
		sqlDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	case DriverSQLite:
		if dsn == "" {
			dsn = "./kursbot.db"
		}
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
		sqlDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// one writer; also keeps a :memory: database on a single connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		busy := cfg.BusyTimeout
		if busy <= 0 {
			busy = 5 * time.Second
		}
		_, _ = sqlDB.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
		_, _ = sqlDB.ExecContext(ctx, "PRAGMA journal_mode = WAL")
		_, _ = sqlDB.ExecContext(ctx, "PRAGMA synchronous = NORMAL")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", driver, err)
	}
	d := &DB{db: sqlDB, driver: driver, log: log.With(logx.String("comp", "storage"))}
	if err := d.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	d.log.Info("storage ready", logx.String("driver", driver))
	return d, nil
}

func normalizeDriver(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

func (d *DB) Driver() string { return d.driver }

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N into ?N for SQLite.
func rebind(driver, q string) string {
	if driver != DriverSQLite {
		return q
	}
	return placeholderRe.ReplaceAllString(q, "?$1")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, rebind(d.driver, query), args...)
}

func (d *DB) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, rebind(d.driver, query), args...)
}

func (d *DB) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, rebind(d.driver, query), args...)
}

// withTx runs fn in a transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullStr(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
