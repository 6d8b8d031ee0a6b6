package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"loanrisk/internal"
)

var ErrRunNotFound = errors.New("run not found")

// timeLayout keeps createdAt lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  runId TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  loaded INTEGER NOT NULL,
  retained INTEGER NOT NULL,
  failures INTEGER NOT NULL,
  createdAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS applications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  recordId INTEGER NOT NULL,
  age INTEGER NOT NULL,
  income TEXT NOT NULL,
  creditScore INTEGER NOT NULL,
  debtToIncome REAL NOT NULL,
  educationLevel TEXT NOT NULL,
  loanPurpose TEXT NOT NULL,
  loanAmount TEXT NOT NULL,
  riskRating REAL NOT NULL,
  UNIQUE(runId, recordId),
  FOREIGN KEY(runId) REFERENCES runs(runId)
);
CREATE INDEX IF NOT EXISTS idx_applications_runId ON applications(runId);

CREATE TABLE IF NOT EXISTS run_columns (
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  columnName TEXT NOT NULL,
  PRIMARY KEY(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(runId)
);

CREATE TABLE IF NOT EXISTS run_cells (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  rowIndex INTEGER NOT NULL,
  recordId INTEGER NOT NULL,
  columnName TEXT NOT NULL,
  value TEXT NOT NULL,
  isAmount INTEGER NOT NULL DEFAULT 0,
  UNIQUE(runId, rowIndex, columnName),
  FOREIGN KEY(runId) REFERENCES runs(runId)
);
CREATE INDEX IF NOT EXISTS idx_run_cells_runId ON run_cells(runId);

CREATE TABLE IF NOT EXISTS row_failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  rowIndex INTEGER NOT NULL,
  recordId INTEGER NOT NULL,
  columnName TEXT NOT NULL,
  value TEXT NOT NULL,
  reason TEXT NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(runId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveRun stores a run, its cleaned table, the typed applications and the
// row failures in a single transaction.
func (d *DB) SaveRun(ctx context.Context, run internal.RunSummary, table internal.Table, apps []internal.Application, failures []internal.RowFailure) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (runId, source, loaded, retained, failures, createdAt)
VALUES (?, ?, ?, ?, ?, ?)
`, run.RunID, run.Source, run.Loaded, run.Retained, run.Failures, run.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertTable(ctx, tx, run.RunID, table); err != nil {
		return err
	}
	if err := insertApplications(ctx, tx, run.RunID, apps); err != nil {
		return err
	}
	if err := insertFailures(ctx, tx, run.RunID, failures); err != nil {
		return err
	}

	return tx.Commit()
}

func insertTable(ctx context.Context, tx *sql.Tx, runID string, table internal.Table) error {
	for i, col := range table.Columns {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO run_columns (runId, position, columnName) VALUES (?, ?, ?)
`, runID, i, col); err != nil {
			return fmt.Errorf("insert column %s: %w", col, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_cells (runId, rowIndex, recordId, columnName, value, isAmount)
VALUES (?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for row, rec := range table.Records {
		// The ID marker keeps rows that carry no other cells.
		if _, err := stmt.ExecContext(ctx, runID, row, rec.ID, internal.ColID, strconv.Itoa(rec.ID), 0); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.ID, err)
		}
		for col, cell := range rec.Cells {
			if col == internal.ColID {
				continue
			}
			isAmount := 0
			if cell.Amount != nil {
				isAmount = 1
			}
			if _, err := stmt.ExecContext(ctx, runID, row, rec.ID, col, cell.String(), isAmount); err != nil {
				return fmt.Errorf("insert record %d column %s: %w", rec.ID, col, err)
			}
		}
	}
	return nil
}

func insertApplications(ctx context.Context, tx *sql.Tx, runID string, apps []internal.Application) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO applications (
  runId, recordId, age, income, creditScore, debtToIncome,
  educationLevel, loanPurpose, loanAmount, riskRating
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range apps {
		if _, err := stmt.ExecContext(ctx,
			runID, a.ID, a.Age, a.Income.StringFixed(2), a.CreditScore, a.DebtToIncome,
			a.EducationLevel, a.LoanPurpose, a.LoanAmount.StringFixed(2), a.RiskRating,
		); err != nil {
			return fmt.Errorf("insert application %d: %w", a.ID, err)
		}
	}
	return nil
}

func insertFailures(ctx context.Context, tx *sql.Tx, runID string, failures []internal.RowFailure) error {
	for _, f := range failures {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO row_failures (runId, rowIndex, recordId, columnName, value, reason)
VALUES (?, ?, ?, ?, ?, ?)
`, runID, f.Row, f.ID, f.Column, f.Value, f.Reason); err != nil {
			return fmt.Errorf("insert failure for record %d: %w", f.ID, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx, `
SELECT runId, source, loaded, retained, failures, createdAt
FROM runs ORDER BY createdAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunSummary
	for rows.Next() {
		var run internal.RunSummary
		var createdAt string
		if err := rows.Scan(&run.RunID, &run.Source, &run.Loaded, &run.Retained, &run.Failures, &createdAt); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("run %s createdAt: %w", run.RunID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRunApplications returns the cleaned applications of one run in ID order.
func (d *DB) GetRunApplications(ctx context.Context, runID string) ([]internal.Application, error) {
	if err := d.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	return d.queryApplications(ctx, `WHERE runId = ? ORDER BY recordId ASC`, runID)
}

// GetRunTable rebuilds the cleaned table of a run exactly as the pipeline
// produced it, unconverted cells included.
func (d *DB) GetRunTable(ctx context.Context, runID string) (internal.Table, error) {
	if err := d.requireRun(ctx, runID); err != nil {
		return internal.Table{}, err
	}

	var table internal.Table
	cols, err := d.conn.QueryContext(ctx, `
SELECT columnName FROM run_columns WHERE runId = ? ORDER BY position ASC
`, runID)
	if err != nil {
		return internal.Table{}, err
	}
	defer cols.Close()
	for cols.Next() {
		var name string
		if err := cols.Scan(&name); err != nil {
			return internal.Table{}, err
		}
		table.Columns = append(table.Columns, name)
	}
	if err := cols.Err(); err != nil {
		return internal.Table{}, err
	}

	rows, err := d.conn.QueryContext(ctx, `
SELECT rowIndex, recordId, columnName, value, isAmount
FROM run_cells WHERE runId = ? ORDER BY rowIndex ASC, id ASC
`, runID)
	if err != nil {
		return internal.Table{}, err
	}
	defer rows.Close()

	lastRow := -1
	for rows.Next() {
		var rowIndex, recordID int
		var column, value string
		var isAmount bool
		if err := rows.Scan(&rowIndex, &recordID, &column, &value, &isAmount); err != nil {
			return internal.Table{}, err
		}
		if rowIndex != lastRow {
			table.Records = append(table.Records, internal.Record{ID: recordID, Cells: map[string]internal.Cell{}})
			lastRow = rowIndex
		}
		if column == internal.ColID {
			continue
		}
		cell := internal.Cell{Raw: value}
		if isAmount {
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return internal.Table{}, fmt.Errorf("record %d column %s: %w", recordID, column, err)
			}
			cell.Amount = &amount
		}
		table.Records[len(table.Records)-1].Cells[column] = cell
	}
	return table, rows.Err()
}

func (d *DB) requireRun(ctx context.Context, runID string) error {
	var exists int
	err := d.conn.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE runId = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}

func (d *DB) ListFailures(ctx context.Context, runID string) ([]internal.RowFailure, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT rowIndex, recordId, columnName, value, reason
FROM row_failures WHERE runId = ? ORDER BY id ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RowFailure
	for rows.Next() {
		var f internal.RowFailure
		if err := rows.Scan(&f.Row, &f.ID, &f.Column, &f.Value, &f.Reason); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadReference returns every stored application across all runs. It makes
// the database usable as a scoring reference corpus.
func (d *DB) LoadReference(ctx context.Context) ([]internal.Application, error) {
	return d.queryApplications(ctx, `ORDER BY runId ASC, recordId ASC`)
}

func (d *DB) queryApplications(ctx context.Context, tail string, args ...any) ([]internal.Application, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT recordId, age, income, creditScore, debtToIncome,
       educationLevel, loanPurpose, loanAmount, riskRating
FROM applications `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Application
	for rows.Next() {
		var a internal.Application
		if err := rows.Scan(
			&a.ID, &a.Age, &a.Income, &a.CreditScore, &a.DebtToIncome,
			&a.EducationLevel, &a.LoanPurpose, &a.LoanAmount, &a.RiskRating,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
