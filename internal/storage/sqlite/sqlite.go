// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver — exactly what an on-device directory of a few thousand
// students needs. One table, no secondary indexes.
//
// NAME SEARCH
// ───────────
// SQLite's own lower()/LIKE only fold ASCII. Names may contain any
// Unicode letter, so the driver is registered with a Go function,
// name_matches(name, query), that calls storage.MatchName. The
// in-memory store uses the same function, so both backends agree on
// what a match is.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/student-directory/internal/config"
	"github.com/aanand-mishra/student-directory/internal/storage"
	"github.com/aanand-mishra/student-directory/internal/types"
)

// driverName is the sqlite3 driver with the name_matches function
// attached to every new connection.
const driverName = "sqlite3_student_directory"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// pure=true: same inputs always give the same output, which
			// lets SQLite cache the result within a statement.
			return conn.RegisterFunc("name_matches", nameMatches, true)
		},
	})
}

// nameMatches adapts storage.MatchName to an SQL function: 1 for a
// match, 0 otherwise.
func nameMatches(name, query string) int64 {
	if storage.MatchName(name, query) {
		return 1
	}
	return 0
}

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

// compile-time check that *SQLite satisfies the interface.
var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.StoragePath.
func New(cfg *config.Config) (*SQLite, error) {
	return Open(cfg.StoragePath)
}

// Open opens (or creates) the database file at path, applies pragmas,
// creates the students table if it does not already exist, and returns
// a ready-to-use *SQLite. Safe to call on every startup.
func Open(path string) (*SQLite, error) {
	// sql.Open does NOT open a real connection yet — it just validates
	// the driver name and data source name (DSN). Ping forces one.
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite.Open: %q: %w", pragma, err)
		}
	}

	// Schema:
	//   id         — AUTOINCREMENT so a deleted id is never handed out again
	//   name       — student's full name
	//   place      — home town / city
	//   contact    — ten-digit phone number stored as an integer
	//   image_path — reference to the photo asset (never the bytes)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT    NOT NULL,
			place      TEXT    NOT NULL,
			contact    INTEGER NOT NULL,
			image_path TEXT    NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Insert adds a new row and returns its id.
//
// Placeholders (?) keep user input out of the SQL text: the driver sends
// the statement and the values separately, so a name like
// "'; DROP TABLE students; --" is stored as a (strange) name, nothing more.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Insert(ctx context.Context, st types.Student) (int64, error) {
	result, err := s.Db.ExecContext(ctx,
		"INSERT INTO students (name, place, contact, image_path) VALUES (?, ?, ?, ?)",
		st.Name, st.Place, st.Contact, st.ImagePath,
	)
	if err != nil {
		return 0, fmt.Errorf("Insert: exec: %w", err)
	}

	// LastInsertId returns the auto-generated primary key of the new row.
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("Insert: last insert id: %w", err)
	}
	return id, nil
}

// Update replaces all mutable columns of the row with st.ID.
// Zero rows affected means no row has that id.
func (s *SQLite) Update(ctx context.Context, st types.Student) (int64, error) {
	// Argument order matches the ? order in the SQL: name, place,
	// contact, image_path, id.
	result, err := s.Db.ExecContext(ctx,
		"UPDATE students SET name = ?, place = ?, contact = ?, image_path = ? WHERE id = ?",
		st.Name, st.Place, st.Contact, st.ImagePath, st.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("Update: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Update: rows affected: %w", err)
	}
	return n, nil
}

// Delete removes the row with the given id.
func (s *SQLite) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := s.Db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("Delete: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Delete: rows affected: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SearchAll returns the rows whose name contains query (case-insensitive),
// oldest first. The empty query is the "load everything" path.
//
// Query returns *sql.Rows — a cursor over the result set. We iterate with
// rows.Next(), Scan each row, and always check rows.Err() afterwards:
// an error during iteration is reported there, not by Scan.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) SearchAll(ctx context.Context, query string) ([]types.Student, error) {
	const columns = "SELECT id, name, place, contact, image_path FROM students"

	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = s.Db.QueryContext(ctx, columns+" ORDER BY id")
	} else {
		rows, err = s.Db.QueryContext(ctx,
			columns+" WHERE name_matches(name, ?) ORDER BY id", query)
	}
	if err != nil {
		return nil, fmt.Errorf("SearchAll: query: %w", err)
	}
	defer rows.Close()

	// Non-nil empty slice: "no results" is a result, not an absence.
	students := make([]types.Student, 0)
	for rows.Next() {
		var st types.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Place, &st.Contact, &st.ImagePath); err != nil {
			return nil, fmt.Errorf("SearchAll: scan row: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchAll: rows iteration: %w", err)
	}

	return students, nil
}

// GetByID fetches exactly one student row matched by primary key.
func (s *SQLite) GetByID(ctx context.Context, id int64) (types.Student, error) {
	var st types.Student

	// QueryRow never returns nil for "no match" — the error surfaces only
	// when Scan is called, as sql.ErrNoRows.
	err := s.Db.QueryRowContext(ctx,
		"SELECT id, name, place, contact, image_path FROM students WHERE id = ? LIMIT 1",
		id,
	).Scan(&st.ID, &st.Name, &st.Place, &st.Contact, &st.ImagePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetByID: scan: %w", err)
	}

	return st, nil
}
