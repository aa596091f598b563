// Package sqlite stores augmented tables and run history in a SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	aqio "github.com/hed1ad/aqguard/pkg/io"
	"github.com/hed1ad/aqguard/pkg/table"
)

// rowColumn keeps the original row order of a stored table.
const rowColumn = "_row"

// Run is one pipeline execution recorded in the runs table.
type Run struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Input         string    `json:"input"`
	Rows          int       `json:"rows"`
	Anomalies     int       `json:"anomalies"`
	Contamination float64   `json:"contamination"`
	Seed          int64     `json:"seed"`
}

// Store handles persistent storage of augmented tables.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the run ledger if it doesn't exist.
func (s *Store) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		input TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		anomalies INTEGER NOT NULL,
		contamination REAL NOT NULL,
		seed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// SaveTable replaces the named table with the contents of t in one transaction.
func (s *Store) SaveTable(name string, t *table.Table) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("table %q has no columns", name)
	}

	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, quote(rowColumn)+" INTEGER PRIMARY KEY")
	names := make([]string, 0, len(cols)+1)
	names = append(names, quote(rowColumn))
	for _, c := range cols {
		defs = append(defs, quote(c.Name)+" "+sqlType(c.Kind))
		names = append(names, quote(c.Name))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DROP TABLE IF EXISTS " + quote(name)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %q: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(names, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for i := 0; i < t.NumRows(); i++ {
		args[0] = i
		for j, c := range cols {
			args[j+1] = cellValue(c, i)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Str("table", name).Int("rows", t.NumRows()).Msg("Table saved")
	return nil
}

// LoadTable reads a table written by SaveTable, in its original row order.
func (s *Store) LoadTable(name string) (*table.Table, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quote(name), quote(rowColumn)))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %q: %w", name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]*table.Column, len(types))
	dest := make([]any, len(types))
	for j, ct := range types {
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "REAL":
			cols[j] = table.NewFloat(ct.Name(), nil)
			dest[j] = new(sql.NullFloat64)
		case "DATETIME":
			cols[j] = table.NewTime(ct.Name(), nil)
			dest[j] = new(sql.NullTime)
		case "INTEGER":
			dest[j] = new(sql.NullInt64)
		default:
			cols[j] = table.NewString(ct.Name(), nil)
			dest[j] = new(sql.NullString)
		}
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for j, d := range dest {
			c := cols[j]
			if c == nil {
				continue
			}
			switch v := d.(type) {
			case *sql.NullFloat64:
				if v.Valid {
					c.Floats = append(c.Floats, v.Float64)
				} else {
					c.Floats = append(c.Floats, math.NaN())
				}
			case *sql.NullTime:
				if v.Valid {
					c.Times = append(c.Times, v.Time.UTC())
				} else {
					c.Times = append(c.Times, time.Time{})
				}
			case *sql.NullString:
				c.Strings = append(c.Strings, v.String)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var kept []*table.Column
	for j, c := range cols {
		if c != nil && types[j].Name() != rowColumn {
			kept = append(kept, c)
		}
	}
	return table.New(kept...)
}

// RecordRun appends a run to the ledger.
func (s *Store) RecordRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, created_at, input, row_count, anomalies, contamination, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CreatedAt.UTC(), r.Input, r.Rows, r.Anomalies, r.Contamination, r.Seed)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, input, row_count, anomalies, contamination, seed
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Input, &r.Rows, &r.Anomalies, &r.Contamination, &r.Seed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Writer adapts the store to the aqio.Writer interface for one table name.
func (s *Store) Writer(name string) aqio.Writer {
	return &tableWriter{store: s, name: name}
}

type tableWriter struct {
	store *Store
	name  string
}

func (w *tableWriter) Write(t *table.Table) error {
	return w.store.SaveTable(w.name, t)
}

// Close is a no-op; the store owns the connection.
func (w *tableWriter) Close() error {
	return nil
}

func sqlType(k table.Kind) string {
	switch k {
	case table.Float:
		return "REAL"
	case table.Time:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func cellValue(c *table.Column, i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case table.Float:
		return c.Floats[i]
	case table.String:
		return c.Strings[i]
	default:
		return c.Times[i].UTC()
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
