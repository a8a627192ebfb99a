package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store mirrors the CSV dataset into SQLite. The mirror exists for
// administrative re-ingestion and inspection; query analysis always runs on
// the in-memory RecordTable snapshot.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite mirror database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the mirror is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Mirror replaces the mirrored copy of every dataset table with the rows of
// the given snapshot. Each table is dropped and rebuilt inside one
// transaction so readers never observe a half-written mirror.
func (s *Store) Mirror(rt *RecordTable) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range TableNames {
		table := rt.TableByName(name)
		if err := mirrorTable(tx, table); err != nil {
			return fmt.Errorf("failed to mirror table %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror: %w", err)
	}
	return nil
}

// mirrorTable rebuilds one SQLite table from a dataset table. All columns are
// stored as TEXT; typing happens at analysis time, not in the mirror.
func mirrorTable(tx *sql.Tx, table Table) error {
	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table.Name)); err != nil {
		return err
	}
	if len(table.Columns) == 0 {
		return nil
	}

	columnDefs := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	quoted := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columnDefs[i] = fmt.Sprintf("%q TEXT", col)
		placeholders[i] = "?"
		quoted[i] = fmt.Sprintf("%q", col)
	}

	createStmt := fmt.Sprintf(`CREATE TABLE %q (%s)`, table.Name, strings.Join(columnDefs, ", "))
	if _, err := tx.Exec(createStmt); err != nil {
		return err
	}

	insertStmt := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`,
		table.Name, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range table.Rows {
		args := make([]interface{}, len(table.Columns))
		for i, col := range table.Columns {
			args[i] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the mirrored row count per dataset table. Tables that have
// never been mirrored report zero.
func (s *Store) Counts() (map[string]int, error) {
	counts := make(map[string]int, len(TableNames))
	for _, name := range TableNames {
		var count int
		err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&count)
		if err != nil {
			if isMissingTable(err) {
				counts[name] = 0
				continue
			}
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = count
	}
	return counts, nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
