package directory

import (
	"context"

	"github.com/aanand-mishra/student-directory/internal/types"
)

// Picker acquires a photo, e.g. imagesource.Source.AcquireFromCamera.
// ok == false means the user backed out.
type Picker func(ctx context.Context) (path string, ok bool, err error)

// Commit describes a successful Editor.Commit.
type Commit struct {
	// ID of the created or edited student.
	ID int64
	// RowsAffected is 1 for a create or an effective update, and 0 when
	// the edited student no longer exists (nothing was changed).
	RowsAffected int64
	// Created is set when the commit inserted a new student.
	Created bool
}

// Editor owns one draft at a time: the form being filled in to create a
// student or to edit an existing one. It lives outside the Service and
// hands the draft to it by value on commit, so the Service never holds
// UI state. An Editor is meant for a single owner and is not safe for
// concurrent use.
type Editor struct {
	dir     *Service
	draft   types.Draft
	editing int64 // 0 while composing a new student
}

// NewEditor returns an Editor with an empty draft.
func NewEditor(dir *Service) *Editor {
	return &Editor{dir: dir}
}

// BeginCreate starts composing a new student from an empty draft.
func (e *Editor) BeginCreate() {
	e.draft = types.Draft{}
	e.editing = 0
}

// BeginEdit copies rec into the draft, staging its current photo.
func (e *Editor) BeginEdit(rec types.Student) {
	e.draft = types.DraftOf(rec)
	e.editing = rec.ID
}

// Draft returns a copy of the draft.
func (e *Editor) Draft() types.Draft { return e.draft }

// Editing returns the id of the student being edited, if any.
func (e *Editor) Editing() (int64, bool) { return e.editing, e.editing != 0 }

// SetFields replaces the draft's text fields, keeping the staged photo.
func (e *Editor) SetFields(name, place, contact string) {
	e.draft.Name = name
	e.draft.Place = place
	e.draft.Contact = contact
}

// StageAsset stages path as the draft's photo. An empty path is a
// cancelled acquisition and leaves the draft untouched.
func (e *Editor) StageAsset(path string) {
	if path == "" {
		return
	}
	e.draft.ImagePath = path
}

// Acquire runs pick and stages what it returns. A cancelled pick leaves
// the draft untouched and is not an error; a failed pick is an asset
// fault.
func (e *Editor) Acquire(ctx context.Context, pick Picker) error {
	path, ok, err := pick(ctx)
	if err != nil {
		return newFault(KindAsset, "photo could not be acquired", err)
	}
	if ok {
		e.StageAsset(path)
	}
	return nil
}

// Cancel abandons the draft.
func (e *Editor) Cancel() {
	e.BeginCreate()
}

// Commit creates or updates a student from the draft. The draft is
// cleared on success; on failure it is kept so the user can correct it
// and commit again.
func (e *Editor) Commit(ctx context.Context) (Commit, error) {
	if e.editing != 0 {
		id := e.editing
		n, err := e.dir.Update(ctx, id, e.draft)
		if err != nil {
			return Commit{}, err
		}
		e.Cancel()
		return Commit{ID: id, RowsAffected: n}, nil
	}

	rec, err := e.dir.Create(ctx, e.draft)
	if err != nil {
		return Commit{}, err
	}
	e.Cancel()
	return Commit{ID: rec.ID, RowsAffected: 1, Created: true}, nil
}
