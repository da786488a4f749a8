package directory

import "strings"

// Kind classifies a Fault.
type Kind int

const (
	// KindValidation: bad input; nothing was attempted.
	KindValidation Kind = iota + 1
	// KindMissingAsset: create was called without a staged photo.
	KindMissingAsset
	// KindAsset: the photo could not be acquired or copied.
	KindAsset
	// KindStorage: the record store failed or timed out.
	KindStorage
	// KindBusy: another mutating call or load is still in flight.
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMissingAsset:
		return "missing_asset"
	case KindAsset:
		return "asset"
	case KindStorage:
		return "storage"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A *Fault matches the sentinel of its Kind:
//
//	if errors.Is(err, directory.ErrValidation) { ... }
var (
	ErrValidation   = &Fault{Kind: KindValidation, Message: "invalid student details"}
	ErrMissingAsset = &Fault{Kind: KindMissingAsset, Message: "a photo is required"}
	ErrAsset        = &Fault{Kind: KindAsset, Message: "photo could not be saved"}
	ErrStorage      = &Fault{Kind: KindStorage, Message: "student records could not be accessed"}
	ErrBusy         = &Fault{Kind: KindBusy, Message: "another change is still in progress, try again"}
)

// Fault is every error the directory service reports. Message is always
// fit to show a user; Err keeps the underlying cause for logs.
type Fault struct {
	Kind    Kind
	Message string

	// Reasons lists each failed field rule (validation faults only).
	Reasons []string

	Err error
}

func (f *Fault) Error() string {
	msg := f.Message
	if len(f.Reasons) > 0 {
		msg += ": " + strings.Join(f.Reasons, ", ")
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches any Fault of the same Kind.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// UserMessage is the text to show a user: the message and, for
// validation faults, each reason. The wrapped cause is left out.
func (f *Fault) UserMessage() string {
	if len(f.Reasons) == 0 {
		return f.Message
	}
	return f.Message + ": " + strings.Join(f.Reasons, ", ")
}

func newFault(kind Kind, msg string, err error) *Fault {
	return &Fault{Kind: kind, Message: msg, Err: err}
}
