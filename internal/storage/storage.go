// Package storage defines the Storage interface — the record store
// contract that any database backend must satisfy to hold the student
// directory.
//
// WHY AN INTERFACE?
// ─────────────────
// The directory service should not know or care which database it is
// talking to. By depending only on this interface:
//
//   - Switching databases = implement the interface for the new DB,
//     change one line in the wiring. Zero service changes.
//
//   - Writing tests = pass the in-memory store or a fake that fails on
//     purpose. No real database needed for unit tests.
//
// The store does NOT validate fields and does NOT check that a record's
// image path points at a live asset. Validation belongs to the directory
// service; asset liveness is checked by readers.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-directory/internal/types"
)

// ErrNotFound is returned by GetByID when no row has the requested id.
// Compare with errors.Is.
var ErrNotFound = errors.New("student not found")

// Storage is the record store contract.
//
// Any failure of the underlying medium (disk full, permission denied,
// corruption, timeout) comes back as a non-nil error, and no operation
// ever partially applies: a failed Insert leaves no row, a failed Update
// or Delete leaves the prior row untouched.
type Storage interface {
	// Insert persists a new record (its ID is ignored) and returns the
	// freshly assigned id.
	Insert(ctx context.Context, s types.Student) (int64, error)

	// Update replaces every mutable field of the row matching s.ID and
	// returns the number of rows affected (0 or 1). Zero is not an error:
	// "no such id" and "nothing changed" are deliberately the same answer.
	Update(ctx context.Context, s types.Student) (int64, error)

	// Delete removes the row with the given id and returns the number of
	// rows affected (0 or 1). The referenced asset is left alone.
	Delete(ctx context.Context, id int64) (int64, error)

	// SearchAll returns every record whose name contains query, compared
	// case-insensitively. The empty query returns all rows. Results are in
	// insertion order (ascending id). An empty result is an empty, non-nil
	// slice.
	SearchAll(ctx context.Context, query string) ([]types.Student, error)

	// GetByID fetches one record, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (types.Student, error)

	// Close releases the backend.
	Close() error
}
