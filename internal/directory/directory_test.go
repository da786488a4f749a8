package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aanand-mishra/student-directory/internal/asset"
	"github.com/aanand-mishra/student-directory/internal/storage"
	"github.com/aanand-mishra/student-directory/internal/storage/memory"
	"github.com/aanand-mishra/student-directory/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errDisk = errors.New("disk I/O error")

// faultyStore delegates to a real store unless an error is set for the
// operation.
type faultyStore struct {
	storage.Storage
	insertErr, updateErr, deleteErr, searchErr error
}

func (f *faultyStore) Insert(ctx context.Context, s types.Student) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	return f.Storage.Insert(ctx, s)
}

func (f *faultyStore) Update(ctx context.Context, s types.Student) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	return f.Storage.Update(ctx, s)
}

func (f *faultyStore) Delete(ctx context.Context, id int64) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.Storage.Delete(ctx, id)
}

func (f *faultyStore) SearchAll(ctx context.Context, q string) ([]types.Student, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Storage.SearchAll(ctx, q)
}

// blockingStore parks SearchAll until release is closed or ctx ends.
type blockingStore struct {
	storage.Storage
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) SearchAll(ctx context.Context, q string) ([]types.Student, error) {
	close(b.entered)
	select {
	case <-b.release:
		return b.Storage.SearchAll(ctx, q)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// failingAssets refuses every copy.
type failingAssets struct{ asset.Store }

func (failingAssets) Persist(context.Context, string) (string, error) {
	return "", errors.New("no space left on device")
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	assets   *asset.FS
	photoDir string
	photo    string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, wrap func(storage.Storage) storage.Storage) *fixture {
	t.Helper()
	photoDir := filepath.Join(t.TempDir(), "photos")
	assets, err := asset.NewFS(photoDir)
	require.NoError(t, err)

	photo := filepath.Join(t.TempDir(), "pick.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))

	store := memory.New()
	var s storage.Storage = store
	if wrap != nil {
		s = wrap(store)
	}
	return &fixture{
		svc:      New(s, assets, WithLogger(quietLogger())),
		store:    store,
		assets:   assets,
		photoDir: photoDir,
		photo:    photo,
	}
}

func (f *fixture) draft(name string) types.Draft {
	return types.Draft{Name: name, Place: "Pune", Contact: "9876543210", ImagePath: f.photo}
}

func (f *fixture) mustCreate(t *testing.T, name string) types.Student {
	t.Helper()
	rec, err := f.svc.Create(context.Background(), f.draft(name))
	require.NoError(t, err)
	return rec
}

func names(list []types.Student) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.Name)
	}
	return out
}

// observe records the loading flag and list length at every notification.
type observation struct {
	loading bool
	count   int
}

func observe(svc *Service) (*[]observation, func()) {
	var seen []observation
	unsub := svc.Subscribe(func() {
		st := svc.State()
		seen = append(seen, observation{loading: st.Loading, count: len(st.Students)})
	})
	return &seen, unsub
}

func TestCreateThenRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.draft("Asha Rao"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Refresh(ctx))

	list := f.svc.Students()
	require.Len(t, list, 1)
	assert.Equal(t, rec, list[0])
	assert.Equal(t, "Asha Rao", list[0].Name)
	assert.Equal(t, "Pune", list[0].Place)
	assert.EqualValues(t, 9876543210, list[0].Contact)

	// The record points at the persisted copy, not the picked file.
	assert.NotEqual(t, f.photo, list[0].ImagePath)
	ok, err := f.assets.Exists(ctx, list[0].ImagePath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreate_AppendsAndNotifiesOnce(t *testing.T) {
	f := newFixture(t, nil)
	seen, unsub := observe(f.svc)
	defer unsub()

	f.mustCreate(t, "Asha Rao")

	assert.Equal(t, []observation{{loading: false, count: 1}}, *seen)
}

func TestCreate_InvalidContact(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")
	before := f.svc.Students()

	d := f.draft("Ravi Kumar")
	d.Contact = "12345"
	_, err := f.svc.Create(ctx, d)
	require.ErrorIs(t, err, ErrValidation)

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.UserMessage(), "contact must be exactly 10 digits")

	assert.Equal(t, before, f.svc.Students())
	all, err := f.store.SearchAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	d.Contact = "9876543210"
	_, err = f.svc.Create(ctx, d)
	assert.NoError(t, err)
}

func TestCreate_MissingAsset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d := f.draft("Asha Rao")
	d.ImagePath = ""
	_, err := f.svc.Create(ctx, d)
	require.ErrorIs(t, err, ErrMissingAsset)

	all, err := f.store.SearchAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_AssetFailureInsertsNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	svc := New(f.store, failingAssets{f.assets}, WithLogger(quietLogger()))

	_, err := svc.Create(ctx, f.draft("Asha Rao"))
	require.ErrorIs(t, err, ErrAsset)

	all, err := f.store.SearchAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, svc.Students())
}

func TestCreate_InsertFailureRemovesCopiedAsset(t *testing.T) {
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		return &faultyStore{Storage: s, insertErr: errDisk}
	})

	_, err := f.svc.Create(context.Background(), f.draft("Asha Rao"))
	require.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errDisk)

	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "copied photo should have been cleaned up")
	assert.Empty(t, f.svc.Students())
	assert.False(t, f.svc.IsLoading())
}

func TestCreate_NonImageIsRejectedBeforeCopy(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"notes.txt", "passwd"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			src := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(src, []byte("secret"), 0o644))

			d := f.draft("Asha Rao")
			d.ImagePath = src
			_, err := f.svc.Create(ctx, d)
			require.ErrorIs(t, err, ErrValidation)

			all, err := f.store.SearchAll(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, all)

			entries, err := os.ReadDir(f.photoDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing should be copied into the photo store")
		})
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")
	ravi := f.mustCreate(t, "Ravi Kumar")
	f.mustCreate(t, "Meera Nair")

	t.Run("existing id removes exactly that student", func(t *testing.T) {
		seen, unsub := observe(f.svc)
		defer unsub()

		n, err := f.svc.Delete(ctx, ravi.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		assert.Equal(t, []string{"Asha Rao", "Meera Nair"}, names(f.svc.Students()))
		assert.Equal(t, []observation{{true, 3}, {false, 2}}, *seen)
	})

	t.Run("missing id changes nothing", func(t *testing.T) {
		n, err := f.svc.Delete(ctx, ravi.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
		assert.Equal(t, []string{"Asha Rao", "Meera Nair"}, names(f.svc.Students()))
	})
}

func TestDelete_FaultLowersLoading(t *testing.T) {
	fs := &faultyStore{}
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		fs.Storage = s
		return fs
	})
	asha := f.mustCreate(t, "Asha Rao")
	fs.deleteErr = errDisk

	seen, unsub := observe(f.svc)
	defer unsub()

	_, err := f.svc.Delete(context.Background(), asha.ID)
	require.ErrorIs(t, err, ErrStorage)

	assert.Equal(t, []observation{{true, 1}, {false, 1}}, *seen)
	assert.False(t, f.svc.IsLoading())
	assert.Equal(t, []string{"Asha Rao"}, names(f.svc.Students()))
}

func TestRefresh_NotifiesStartAndEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.store.Insert(ctx, types.Student{Name: "Asha Rao", Place: "Pune", Contact: 9876543210, ImagePath: "a.jpg"})
	require.NoError(t, err)

	seen, unsub := observe(f.svc)
	defer unsub()

	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, []observation{{true, 0}, {false, 1}}, *seen)
}

func TestRefresh_FaultKeepsListAndLowersLoading(t *testing.T) {
	fs := &faultyStore{}
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		fs.Storage = s
		return fs
	})
	f.mustCreate(t, "Asha Rao")
	fs.searchErr = errDisk

	seen, unsub := observe(f.svc)
	defer unsub()

	err := f.svc.Refresh(context.Background())
	require.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, []observation{{true, 1}, {false, 1}}, *seen)
	assert.Equal(t, []string{"Asha Rao"}, names(f.svc.Students()))
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")
	f.mustCreate(t, "Ravi Kumar")

	require.NoError(t, f.svc.Refresh(ctx))
	full := f.svc.Students()

	all, err := f.store.SearchAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, all, full)

	require.NoError(t, f.svc.Search(ctx, "ravi"))
	assert.Equal(t, []string{"Ravi Kumar"}, names(f.svc.Students()))
	assert.False(t, f.svc.NoResults())

	require.NoError(t, f.svc.Search(ctx, "xyz-no-match"))
	st := f.svc.State()
	assert.Empty(t, st.Students)
	assert.True(t, st.NoResults)
	assert.Equal(t, "xyz-no-match", st.Query)

	require.NoError(t, f.svc.Refresh(ctx))
	assert.False(t, f.svc.NoResults())
	assert.Equal(t, full, f.svc.Students())
}

func TestCreate_DuringSearchOnlyAppendsMatches(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")
	require.NoError(t, f.svc.Search(ctx, "asha"))

	f.mustCreate(t, "Ravi Kumar")
	assert.Equal(t, []string{"Asha Rao"}, names(f.svc.Students()))

	f.mustCreate(t, "Asha Menon")
	assert.Equal(t, []string{"Asha Rao", "Asha Menon"}, names(f.svc.Students()))
}

func TestUpdate_FullCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec := f.mustCreate(t, "Asha Rao")

	n, err := f.svc.Update(ctx, rec.ID, types.Draft{
		Name:      "Asha R",
		Place:     "Pune",
		Contact:   "9876543210",
		ImagePath: rec.ImagePath,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, f.svc.Refresh(ctx))
	list := f.svc.Students()
	require.Len(t, list, 1)
	assert.Equal(t, "Asha R", list[0].Name)
	assert.Equal(t, rec.ImagePath, list[0].ImagePath, "unchanged photo is not copied again")
}

func TestUpdate_ReloadsAndNotifiesTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	seen, unsub := observe(f.svc)
	defer unsub()

	d := types.DraftOf(rec)
	d.Place = "Mumbai"
	_, err := f.svc.Update(ctx, rec.ID, d)
	require.NoError(t, err)

	assert.Equal(t, []observation{{true, 1}, {false, 1}}, *seen)
	assert.Equal(t, "Mumbai", f.svc.Students()[0].Place)
}

func TestUpdate_NewPhotoIsPersisted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	newPhoto := filepath.Join(t.TempDir(), "new.png")
	require.NoError(t, os.WriteFile(newPhoto, []byte("png"), 0o644))

	d := types.DraftOf(rec)
	d.ImagePath = newPhoto
	_, err := f.svc.Update(ctx, rec.ID, d)
	require.NoError(t, err)

	got := f.svc.Students()[0]
	assert.NotEqual(t, rec.ImagePath, got.ImagePath)
	assert.NotEqual(t, newPhoto, got.ImagePath)
	assert.Equal(t, ".png", filepath.Ext(got.ImagePath))

	// The old photo is left orphaned, not removed.
	ok, err := f.assets.Exists(ctx, rec.ImagePath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdate_NonImageIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	d := types.DraftOf(rec)
	d.Name = "Asha R"
	d.ImagePath = "/etc/passwd"
	_, err := f.svc.Update(ctx, rec.ID, d)
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, rec, f.svc.Students()[0])
	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// vanishingStore finds the record but reports that the update changed no
// row, as when it is deleted between the read and the write.
type vanishingStore struct{ storage.Storage }

func (vanishingStore) Update(context.Context, types.Student) (int64, error) { return 0, nil }

func TestUpdate_ZeroRowsRemovesNewPhoto(t *testing.T) {
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		return vanishingStore{s}
	})
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	newPhoto := filepath.Join(t.TempDir(), "new.png")
	require.NoError(t, os.WriteFile(newPhoto, []byte("png"), 0o644))

	d := types.DraftOf(rec)
	d.ImagePath = newPhoto
	n, err := f.svc.Update(ctx, rec.ID, d)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the original photo should remain")
	assert.Equal(t, filepath.Base(rec.ImagePath), entries[0].Name())
	assert.False(t, f.svc.IsLoading())
}

func TestHasPhoto(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	ok, err := f.svc.HasPhoto(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.Remove(rec.ImagePath))
	ok, err = f.svc.HasPhoto(ctx, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.HasPhoto(ctx, types.Student{ID: 9})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_MissingIDIsSilentNoOp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")
	before := f.svc.Students()

	n, err := f.svc.Update(ctx, 999, f.draft("Ravi Kumar"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.Equal(t, before, f.svc.Students())
	assert.False(t, f.svc.IsLoading())
}

func TestUpdate_ValidationFault(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.mustCreate(t, "Asha Rao")

	d := types.DraftOf(rec)
	d.Name = "A1"
	_, err := f.svc.Update(context.Background(), rec.ID, d)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Asha Rao", f.svc.Students()[0].Name)
}

func TestUpdate_StorageFaultKeepsRow(t *testing.T) {
	fs := &faultyStore{}
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		fs.Storage = s
		return fs
	})
	rec := f.mustCreate(t, "Asha Rao")
	fs.updateErr = errDisk

	d := types.DraftOf(rec)
	d.Name = "Asha R"
	_, err := f.svc.Update(context.Background(), rec.ID, d)
	require.ErrorIs(t, err, ErrStorage)

	got, err := f.store.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.Name)
	assert.False(t, f.svc.IsLoading())
}

func TestBusy_RejectsOverlappingCalls(t *testing.T) {
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		bs.Storage = s
		return bs
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.svc.Refresh(ctx) }()
	<-bs.entered

	assert.True(t, f.svc.IsLoading())

	_, err := f.svc.Create(ctx, f.draft("Asha Rao"))
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.svc.Delete(ctx, 1)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, f.svc.Search(ctx, "a"), ErrBusy)

	close(bs.release)
	require.NoError(t, <-done)
	assert.False(t, f.svc.IsLoading())

	// Free again once the refresh is over.
	f.mustCreate(t, "Asha Rao")
}

func TestStoreTimeoutIsStorageFault(t *testing.T) {
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, func(s storage.Storage) storage.Storage {
		bs.Storage = s
		return bs
	})
	svc := New(bs, f.assets, WithLogger(quietLogger()), WithStoreTimeout(20*time.Millisecond))

	err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, svc.IsLoading())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	unsub := f.svc.Subscribe(func() { calls++ })

	f.mustCreate(t, "Asha Rao")
	assert.Equal(t, 1, calls)

	unsub()
	unsub()
	f.mustCreate(t, "Ravi Kumar")
	assert.Equal(t, 1, calls)
}

func TestSubscriber_CanMutateFromCallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mustCreate(t, "Asha Rao")

	// A subscriber reacting to the end of a delete may start a refresh:
	// the service is already free when it is told.
	var refreshErr error
	refreshed := false
	unsub := f.svc.Subscribe(func() {
		if !refreshed && !f.svc.IsLoading() {
			refreshed = true
			refreshErr = f.svc.Refresh(ctx)
		}
	})
	defer unsub()

	_, err := f.svc.Delete(ctx, 999)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.NoError(t, refreshErr)
}

func TestGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.mustCreate(t, "Asha Rao")

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Not cached yet, but stored.
	id, err := f.store.Insert(ctx, types.Student{Name: "Ravi Kumar", Place: "Goa", Contact: 9123456789, ImagePath: "r.jpg"})
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", got.Name)

	_, err = f.svc.Get(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
