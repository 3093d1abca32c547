package roster

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS registrants (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	student_id TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	course     TEXT NOT NULL DEFAULT '',
	code       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_registrants_student_id
	ON registrants (lower(trim(student_id)));
`

// SQLiteStore serves lookups from a registrants table. The schema is
// created on open, so pointing the daemon at a fresh file just works.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert adds one registrant row. Used by imports and tests.
func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrants (name, student_id, email, course, code) VALUES (?, ?, ?, ?, ?)`,
		rec.Name, rec.ID, rec.Email, rec.Course, rec.Code)
	if err != nil {
		return fmt.Errorf("insert registrant: %w", err)
	}
	return nil
}

// Lookup narrows by normalized student id in SQL, then applies the same
// name normalization as the CSV store in Go.
func (s *SQLiteStore) Lookup(ctx context.Context, name, id string) (Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, student_id, email, course, code FROM registrants
		 WHERE lower(trim(student_id)) = ?`, NormalizeID(id))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.ID, &rec.Email, &rec.Course, &rec.Code); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if match(rec, name, id) {
			return rec, nil
		}
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Record{}, ErrNotFound
}

func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, student_id, email, course, code FROM registrants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.ID, &rec.Email, &rec.Course, &rec.Code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, nil
}
