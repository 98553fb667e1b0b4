// Package storage keeps the last imported dataset snapshot in SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"fonreal/internal/core"
	"fonreal/internal/dataset"
	"fonreal/internal/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNoSnapshot is returned before the first import.
var ErrNoSnapshot = errors.New("no dataset snapshot imported")

// Meta describes the stored snapshot.
type Meta struct {
	Source     string
	ImportedAt time.Time
	RowCount   int
}

// SQLiteRepository stores one dataset snapshot and serves it as a
// dataset.Source.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var (
	_ dataset.Source    = (*SQLiteRepository)(nil)
	_ dataset.Versioned = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Snapshot schema ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, logger: logger}, nil
}

// migrateSchema applies the embedded migrations over the migrate driver's
// own connection and returns the resulting schema version.
func migrateSchema(dbPath string) (uint, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Name() string { return "sqlite" }

// ReplaceSnapshot swaps the stored rows for table in one transaction.
func (r *SQLiteRepository) ReplaceSnapshot(ctx context.Context, source string, table *core.Table, importedAt time.Time) error {
	if table.Len() == 0 {
		return fmt.Errorf("replace snapshot: %w", core.ErrEmptyDataset)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (position, normalization, fonitem, provname, provabb, date, date_label, val)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range table.Rows() {
		// Missing observations are stored as NULL.
		val := sql.NullFloat64{Float64: rec.Value, Valid: !rec.Missing()}
		if _, err := stmt.ExecContext(ctx, i,
			rec.Normalization, rec.Item, rec.Jurisdiction, rec.Abbreviation,
			rec.Date.UTC().Format(time.RFC3339), rec.DateLabel, val); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dataset_meta (id, source, imported_at, row_count) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET source = excluded.source,
			imported_at = excluded.imported_at, row_count = excluded.row_count`,
		source, importedAt.UTC().Format(time.RFC3339Nano), table.Len()); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "Dataset snapshot replaced", log.NewFields().
		WithDataset(source, table.Len()).
		WithOperation(log.OpImport).ToSlice()...)
	return nil
}

// Fetch reads the snapshot back in its original row order.
func (r *SQLiteRepository) Fetch(ctx context.Context) (*core.Table, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT normalization, fonitem, provname, provabb, date, date_label, val
		FROM records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var recs []core.Record
	for rows.Next() {
		var rec core.Record
		var date string
		var val sql.NullFloat64
		if err := rows.Scan(&rec.Normalization, &rec.Item, &rec.Jurisdiction, &rec.Abbreviation,
			&date, &rec.DateLabel, &val); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Value = math.NaN()
		if val.Valid {
			rec.Value = val.Float64
		}
		if rec.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrNoSnapshot
	}
	return core.NewTable(recs), nil
}

// Meta returns the snapshot description.
func (r *SQLiteRepository) Meta(ctx context.Context) (Meta, error) {
	var m Meta
	var at string
	err := r.db.QueryRowContext(ctx,
		`SELECT source, imported_at, row_count FROM dataset_meta WHERE id = 1`).
		Scan(&m.Source, &at, &m.RowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, ErrNoSnapshot
	}
	if err != nil {
		return Meta{}, fmt.Errorf("query meta: %w", err)
	}
	if m.ImportedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return Meta{}, fmt.Errorf("parse imported_at: %w", err)
	}
	return m, nil
}

// Version identifies the stored snapshot by its import time. It is empty
// before the first import.
func (r *SQLiteRepository) Version(ctx context.Context) (string, error) {
	m, err := r.Meta(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.ImportedAt.UTC().Format(time.RFC3339Nano), nil
}
