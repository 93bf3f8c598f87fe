// Package ingest populates the SQLite tables and the document index from
// the raw knowledge base files.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tableSources maps each CSV file to the table it feeds. The first CSV
// column is a row index and is dropped on load.
var tableSources = map[string]string{
	"Expanded_data_with_more_features.csv": "student_info_detailed",
	"Original_data_with_more_rows.csv":     "student_info_basic",
}

// RequiredTables lists the tables the SQL agent queries.
var RequiredTables = []string{"student_info_basic", "student_info_detailed"}

// LoadTables reads the knowledge base CSVs from dataDir and replaces the
// corresponding SQLite tables. Each table is dropped and recreated inside a
// single transaction, so readers never see a half-loaded table.
func LoadTables(ctx context.Context, db *sql.DB, dataDir string) error {
	for file, table := range tableSources {
		if err := loadTable(ctx, db, filepath.Join(dataDir, file), table); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
	}
	return nil
}

func loadTable(ctx context.Context, db *sql.DB, path, table string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return fmt.Errorf("expected at least 2 columns, got %d", len(header))
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec[1:])
	}
	cols := header[1:]
	types := inferColumnTypes(cols, rows)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createStmt(table, cols, types)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertStmt(table, cols))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(cols))
		for i := range cols {
			args[i] = cellValue(row[i], types[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// TablesReady reports whether every required table exists and has rows.
func TablesReady(ctx context.Context, db *sql.DB) (bool, error) {
	for _, table := range RequiredTables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		var n int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&n); err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

const (
	colInteger = "INTEGER"
	colReal    = "REAL"
	colText    = "TEXT"
)

// inferColumnTypes picks the narrowest SQLite type every non-empty value in
// the column fits.
func inferColumnTypes(cols []string, rows [][]string) []string {
	types := make([]string, len(cols))
	for i := range cols {
		typ := colInteger
		seen := false
		for _, row := range rows {
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			seen = true
			if typ == colInteger {
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					continue
				}
				typ = colReal
			}
			if typ == colReal {
				if _, err := strconv.ParseFloat(v, 64); err == nil {
					continue
				}
				typ = colText
				break
			}
		}
		if !seen {
			typ = colText
		}
		types[i] = typ
	}
	return types
}

func cellValue(raw, typ string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch typ {
	case colInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case colReal:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return v
	}
}

func createStmt(table string, cols, types []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%q %s", c, types[i])
	}
	return fmt.Sprintf("CREATE TABLE %q (%s)", table, strings.Join(defs, ", "))
}

func insertStmt(table string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
}
