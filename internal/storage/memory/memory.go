// Package memory contains an in-memory record store. It keeps no data
// across restarts; it backs tests and the "memory" storage backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aanand-mishra/student-directory/internal/storage"
	"github.com/aanand-mishra/student-directory/internal/types"
)

// Store is a map of records guarded by a RWMutex: many concurrent
// readers, one writer at a time.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]types.Student
}

var _ storage.Storage = (*Store)(nil)

// New constructs an empty Store. Ids start at 1.
func New() *Store {
	return &Store{
		nextID: 1,
		rows:   make(map[int64]types.Student),
	}
}

// Insert assigns the next id and stores a copy of s.
func (m *Store) Insert(ctx context.Context, s types.Student) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Ids are never reused, matching SQLite AUTOINCREMENT.
	s.ID = m.nextID
	m.nextID++
	m.rows[s.ID] = s
	return s.ID, nil
}

// Update replaces the row with s.ID if it exists.
func (m *Store) Update(ctx context.Context, s types.Student) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("Update: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[s.ID]; !ok {
		return 0, nil
	}
	m.rows[s.ID] = s
	return 1, nil
}

// Delete removes the row with id if it exists.
func (m *Store) Delete(ctx context.Context, id int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("Delete: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

// SearchAll returns matching rows sorted by id, i.e. insertion order.
func (m *Store) SearchAll(ctx context.Context, query string) ([]types.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("SearchAll: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Student, 0, len(m.rows))
	for _, s := range m.rows {
		if storage.MatchName(s.Name, query) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID returns a copy of the row, or storage.ErrNotFound.
func (m *Store) GetByID(ctx context.Context, id int64) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return types.Student{}, fmt.Errorf("GetByID: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.rows[id]
	if !ok {
		return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

// Close is a no-op.
func (m *Store) Close() error { return nil }
