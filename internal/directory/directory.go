// Package directory is the one gateway through which the rest of the
// application reads and changes student data.
//
// The Service owns an in-memory copy of the student list and a loading
// flag, funnels every mutation through the record store and the asset
// store, and tells subscribers whenever its state changes.
//
// RULES THE SERVICE KEEPS
// ───────────────────────
//   - Fields are validated (Validate) before any store is touched.
//   - A photo is persisted BEFORE the record that references it, so no
//     committed record ever points at a missing asset.
//   - Only one mutating call or load runs at a time. A call that arrives
//     while another is in flight fails with ErrBusy instead of racing it.
//   - A subscriber is notified after the change it describes, never
//     before, and at most once per step.
//   - The loading flag always ends up false again, whatever the outcome.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aanand-mishra/student-directory/internal/asset"
	"github.com/aanand-mishra/student-directory/internal/storage"
	"github.com/aanand-mishra/student-directory/internal/types"
)

// DefaultStoreTimeout bounds a record store call when no option sets one.
const DefaultStoreTimeout = 5 * time.Second

// State is a snapshot of what the service currently shows.
type State struct {
	Students []types.Student `json:"students"`
	Loading  bool            `json:"loading"`

	// Query is the search filter behind Students; "" after a full refresh.
	Query string `json:"query"`

	// NoResults is set when a non-empty search matched nothing.
	NoResults bool `json:"no_results"`
}

// Service is the directory service. Its methods may be called from any
// goroutine; mutations are serialised by rejecting overlap (ErrBusy).
type Service struct {
	store   storage.Storage
	assets  asset.Store
	log     *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	students []types.Student
	query    string
	loading  bool
	busy     bool
	subs     []subscription
	nextSub  int
}

type subscription struct {
	id int
	fn func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStoreTimeout bounds each record store call. A call that runs past
// it fails with ErrStorage.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Service with an empty cache. Call Refresh to load it.
func New(store storage.Storage, assets asset.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		assets:   assets,
		log:      slog.Default(),
		timeout:  DefaultStoreTimeout,
		students: make([]types.Student, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Subscriptions and reads
// ─────────────────────────────────────────────────────────────────────────────

// Subscribe registers fn to be called after every state change. The
// notification carries nothing: fn reads what it needs through State.
// Callbacks run on the goroutine that made the change, in registration
// order, with no lock held. The returned func unsubscribes.
func (s *Service) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// State returns a copy of the current state. Callers may keep or modify
// the returned slice freely.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	students := make([]types.Student, len(s.students))
	copy(students, s.students)
	return State{
		Students:  students,
		Loading:   s.loading,
		Query:     s.query,
		NoResults: s.query != "" && len(s.students) == 0 && !s.loading,
	}
}

// Students returns a copy of the cached list.
func (s *Service) Students() []types.Student { return s.State().Students }

// IsLoading reports whether a load, update or delete is outstanding.
func (s *Service) IsLoading() bool { return s.State().Loading }

// NoResults reports the "no results" state of the last search.
func (s *Service) NoResults() bool { return s.State().NoResults }

// Get returns one student, from the cache when present, otherwise from
// the store. A missing id comes back wrapping storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (types.Student, error) {
	s.mu.Lock()
	rec, ok := s.cached(id)
	s.mu.Unlock()
	if ok {
		return rec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, err
		}
		return types.Student{}, storageFault("could not read student", err)
	}
	return rec, nil
}

// HasPhoto reports whether the asset rec points at is still in the asset
// store. Records without a photo report false.
func (s *Service) HasPhoto(ctx context.Context, rec types.Student) (bool, error) {
	if rec.ImagePath == "" {
		return false, nil
	}
	ok, err := s.assets.Exists(ctx, rec.ImagePath)
	if err != nil {
		return false, newFault(KindAsset, "photo could not be checked", err)
	}
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loads
// ─────────────────────────────────────────────────────────────────────────────

// Refresh reloads every student from the store and replaces the cached
// list wholesale. Subscribers see two notifications: one as loading
// starts, one when it ends. On failure the previous list is kept.
func (s *Service) Refresh(ctx context.Context) error {
	return s.Search(ctx, "")
}

// Search is Refresh with a name filter (case-insensitive substring).
// A non-empty query that matches nothing leaves the service in the
// NoResults state.
func (s *Service) Search(ctx context.Context, query string) error {
	if err := s.acquire(true); err != nil {
		return err
	}

	list, err := s.searchAll(ctx, query)
	s.release(func() {
		if err == nil {
			s.students = list
			s.query = query
		}
	})
	if err != nil {
		s.log.Error("load students failed", slog.String("query", query), slog.String("error", err.Error()))
		return storageFault("could not load students", err)
	}

	s.log.Debug("students loaded", slog.String("query", query), slog.Int("count", len(list)))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────────────────

// Create validates d, persists its staged photo, then inserts the record.
//
// Nothing is written when validation fails or d has no photo. If the
// photo copy fails, no record is inserted. If the insert fails after the
// copy succeeded, the copy is removed again on a best-effort basis.
//
// On success the new record is appended to the cached list (when it
// matches the active search, if any) and subscribers are notified once.
func (s *Service) Create(ctx context.Context, d types.Draft) (types.Student, error) {
	rec, err := Validate(d)
	if err != nil {
		return types.Student{}, err
	}
	if rec.ImagePath == "" {
		return types.Student{}, newFault(KindMissingAsset, ErrMissingAsset.Message, nil)
	}

	if err := s.acquire(false); err != nil {
		return types.Student{}, err
	}

	ref, err := s.assets.Persist(ctx, rec.ImagePath)
	if err != nil {
		s.release(nil)
		s.log.Error("persist photo failed", slog.String("path", rec.ImagePath), slog.String("error", err.Error()))
		return types.Student{}, newFault(KindAsset, ErrAsset.Message, err)
	}
	rec.ImagePath = ref

	id, err := s.insert(ctx, rec)
	if err != nil {
		s.release(nil)
		s.discardAsset(ref)
		s.log.Error("insert student failed", slog.String("error", err.Error()))
		return types.Student{}, storageFault("could not save student", err)
	}
	rec.ID = id

	s.release(func() {
		if storage.MatchName(rec.Name, s.query) {
			s.students = append(s.students, rec)
		}
	})

	s.log.Info("student created", slog.Int64("id", id))
	return rec, nil
}

// Update validates d and replaces every field of the student with id.
//
// The photo changes only when d.ImagePath is set and differs from the
// record's current reference; the new file is persisted first and the
// old asset is left where it is. If the row then fails to change, the
// new copy is removed again.
//
// When no row has that id the call succeeds with zero rows affected and
// nothing changes: "not found" and "nothing to change" are the same
// answer. After a real change the whole list is reloaded from the store,
// so the cache always mirrors it exactly.
func (s *Service) Update(ctx context.Context, id int64, d types.Draft) (int64, error) {
	rec, err := Validate(d)
	if err != nil {
		return 0, err
	}
	rec.ID = id

	if err := s.acquire(true); err != nil {
		return 0, err
	}

	current, err := s.current(ctx, id)
	if err != nil {
		s.release(nil)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Info("update matched no student", slog.Int64("id", id))
			return 0, nil
		}
		return 0, storageFault("could not read student", err)
	}

	var newRef string
	rec.ImagePath = current.ImagePath
	if d.ImagePath != "" && d.ImagePath != current.ImagePath {
		newRef, err = s.assets.Persist(ctx, d.ImagePath)
		if err != nil {
			s.release(nil)
			s.log.Error("persist photo failed", slog.String("path", d.ImagePath), slog.String("error", err.Error()))
			return 0, newFault(KindAsset, ErrAsset.Message, err)
		}
		rec.ImagePath = newRef
	}

	n, err := s.update(ctx, rec)
	if err != nil {
		s.release(nil)
		if newRef != "" {
			s.discardAsset(newRef)
		}
		s.log.Error("update student failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return 0, storageFault("could not update student", err)
	}
	if n == 0 {
		s.release(nil)
		if newRef != "" {
			s.discardAsset(newRef)
		}
		s.log.Info("update matched no student", slog.Int64("id", id))
		return 0, nil
	}

	list, err := s.searchAll(ctx, "")
	s.release(func() {
		if err == nil {
			s.students = list
			s.query = ""
		}
	})
	if err != nil {
		s.log.Error("reload after update failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return n, storageFault("student was updated but the list could not be reloaded", err)
	}

	s.log.Info("student updated", slog.Int64("id", id))
	return n, nil
}

// Delete removes the student with id. On success the element is dropped
// from the cached list in place; the rest keep their order. The loading
// flag is raised for the call and always lowered again, with exactly one
// notification each way, whether the delete succeeded, matched nothing or
// failed. The photo asset is not removed.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	if err := s.acquire(true); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	n, err := s.store.Delete(ctx, id)
	cancel()

	s.release(func() {
		if err == nil && n > 0 {
			s.students = without(s.students, id)
		}
	})
	if err != nil {
		s.log.Error("delete student failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return 0, storageFault("could not delete student", err)
	}

	s.log.Info("student deleted", slog.Int64("id", id), slog.Int64("rows", n))
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

// acquire marks a call in flight, raising the loading flag (and
// notifying) when loading is true. It fails with ErrBusy if another call
// already holds the service.
func (s *Service) acquire(loading bool) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return newFault(KindBusy, ErrBusy.Message, nil)
	}
	s.busy = true
	s.loading = loading
	s.mu.Unlock()

	if loading {
		s.notify()
	}
	return nil
}

// release applies mutate (if any) to the cache, lowers the loading flag,
// frees the service, and notifies if anything visible changed. All of it
// happens under one lock, so no reader sees a half-applied change.
func (s *Service) release(mutate func()) {
	s.mu.Lock()
	if mutate != nil {
		mutate()
	}
	changed := mutate != nil || s.loading
	s.loading = false
	s.busy = false
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Service) notify() {
	s.mu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// cached looks id up in the cache. Caller holds s.mu.
func (s *Service) cached(id int64) (types.Student, bool) {
	for _, rec := range s.students {
		if rec.ID == id {
			return rec, true
		}
	}
	return types.Student{}, false
}

// current returns the stored record for id, from the cache if possible.
func (s *Service) current(ctx context.Context, id int64) (types.Student, error) {
	s.mu.Lock()
	rec, ok := s.cached(id)
	s.mu.Unlock()
	if ok {
		return rec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.GetByID(ctx, id)
}

func (s *Service) searchAll(ctx context.Context, query string) ([]types.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.SearchAll(ctx, query)
}

func (s *Service) insert(ctx context.Context, rec types.Student) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Insert(ctx, rec)
}

func (s *Service) update(ctx context.Context, rec types.Student) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Update(ctx, rec)
}

// discardAsset removes an asset copied for a write that then failed.
// Failure to remove only leaves an orphan behind, so it is logged, not
// returned.
func (s *Service) discardAsset(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.assets.Remove(ctx, ref); err != nil {
		s.log.Warn("orphaned photo left behind", slog.String("ref", ref), slog.String("error", err.Error()))
	}
}

// without returns list minus the element with id, order preserved.
func without(list []types.Student, id int64) []types.Student {
	out := make([]types.Student, 0, len(list))
	for _, rec := range list {
		if rec.ID != id {
			out = append(out, rec)
		}
	}
	return out
}

func storageFault(msg string, err error) *Fault {
	if errors.Is(err, context.DeadlineExceeded) {
		msg += " (record store timed out)"
	}
	return newFault(KindStorage, msg, err)
}
