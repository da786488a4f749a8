// Package types holds the shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// storage, the directory service, and the HTTP handlers can all import
// types without depending on each other.
package types

import "fmt"

// Student is one row of the directory: a persisted student record.
//
// ImagePath is a REFERENCE to a photo asset that lives outside the
// record store (a file path or an object-store key). The record owns the
// reference, the asset store owns the bytes.
//
// ID is assigned by the store on insert and never changes afterwards.
type Student struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Place     string `json:"place"`
	Contact   int64  `json:"contact"`
	ImagePath string `json:"image_path"`
}

// Draft is the transient form buffer used while composing a create or
// edit request. Every field is kept as the text the user typed; the
// directory service converts and validates it in one place before any
// store call.
//
// The validate:"..." tags are checked by go-playground/validator.
// "alphaspace", "contact" and "photo" are custom tags registered by the
// directory package.
type Draft struct {
	Name    string `json:"name"    validate:"required,min=3,alphaspace"`
	Place   string `json:"place"   validate:"required,min=2"`
	Contact string `json:"contact" validate:"required,contact"`

	// ImagePath is the staged photo: the path returned by an image
	// source, or the record's current asset while editing. "photo" only
	// admits image file types.
	ImagePath string `json:"image_path,omitempty" validate:"omitempty,photo"`
}

// IsZero reports whether the draft is in its empty (cleared) state.
func (d Draft) IsZero() bool {
	return d == Draft{}
}

// DraftOf copies a persisted record into a fresh draft, staging its
// current asset as the displayed photo.
func DraftOf(s Student) Draft {
	return Draft{
		Name:      s.Name,
		Place:     s.Place,
		Contact:   FormatContact(s.Contact),
		ImagePath: s.ImagePath,
	}
}

// FormatContact renders a stored contact number as its ten-digit text
// form, e.g. 9876543210 → "9876543210". Zero renders as "".
func FormatContact(c int64) string {
	if c <= 0 {
		return ""
	}
	return fmt.Sprintf("%010d", c)
}
