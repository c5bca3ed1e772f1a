package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/celsiusify/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: ConversionLedger implements domain.ConversionLedger.
var _ domain.ConversionLedger = (*ConversionLedger)(nil)

// ConversionLedger implements domain.ConversionLedger using SQLite.
type ConversionLedger struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready ledger.
// ":memory:" keeps the ledger for the life of the process only.
func New(dataSourceName string) (*ConversionLedger, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready ledger.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*ConversionLedger, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &ConversionLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *ConversionLedger) Close() error {
	return l.db.Close()
}

// DB returns the underlying database connection for the job queue.
func (l *ConversionLedger) DB() *sql.DB {
	return l.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Save writes conversions in one transaction. Non-finite values are skipped:
// SQLite REAL cannot hold NaN, so such requests are served but not summarized.
func (l *ConversionLedger) Save(ctx context.Context, conversions ...domain.Conversion) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO conversions (app_identifier, fahrenheit, celsius, served_at)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range conversions {
		if math.IsNaN(c.Fahrenheit) || math.IsInf(c.Fahrenheit, 0) {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			c.AppIdentifier.String(), c.Fahrenheit, c.Celsius,
			c.At.UTC().Format(timeFormat),
		); err != nil {
			return fmt.Errorf("inserting conversion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversions: %w", err)
	}
	return nil
}

// Stats summarizes the conversions recorded under id.
func (l *ConversionLedger) Stats(ctx context.Context, id domain.AppIdentifier) (domain.LedgerStats, error) {
	var (
		count           int64
		minF, maxF      sql.NullFloat64
		firstAt, lastAt sql.NullString
	)

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(fahrenheit), MAX(fahrenheit), MIN(served_at), MAX(served_at)
		 FROM conversions WHERE app_identifier = ?`, id.String(),
	).Scan(&count, &minF, &maxF, &firstAt, &lastAt)
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("summarizing conversions: %w", err)
	}

	stats := domain.LedgerStats{
		AppIdentifier: id,
		Count:         count,
		MinFahrenheit: minF.Float64,
		MaxFahrenheit: maxF.Float64,
	}
	if firstAt.Valid {
		if stats.FirstAt, err = time.Parse(timeFormat, firstAt.String); err != nil {
			return domain.LedgerStats{}, fmt.Errorf("parsing first served_at: %w", err)
		}
	}
	if lastAt.Valid {
		if stats.LastAt, err = time.Parse(timeFormat, lastAt.String); err != nil {
			return domain.LedgerStats{}, fmt.Errorf("parsing last served_at: %w", err)
		}
	}

	return stats, nil
}
