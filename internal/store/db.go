package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is the pipeline store. It is safe for use by several orchestrator
// processes against the same database; track ownership is arbitrated by
// leases, see ClaimEligible.
type DB struct {
	*sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects using the given driver ("sqlite" or "postgres") and applies
// the schema.
func Open(driver, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		return NewSQLiteDB(dsn)
	case DialectPostgres:
		return NewPostgresDB(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func NewSQLiteDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	return initDB(db, DialectSQLite, SQLiteSchema)
}

func NewPostgresDB(dsn string) (*DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return initDB(db, DialectPostgres, PostgresSchema)
}

func initDB(db *sqlx.DB, dialect Dialect, schema string) (*DB, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{
		DB:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// SetClock overrides the time source. Tests use it to move leases forward.
func (db *DB) SetClock(now func() time.Time) {
	db.now = func() time.Time { return now().UTC() }
}

// Healthy checks connectivity; used by the status server.
func (db *DB) Healthy(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin tx: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit tx: %w", err))
	}
	return nil
}
