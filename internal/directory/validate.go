package directory

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/student-directory/internal/imagesource"
	"github.com/aanand-mishra/student-directory/internal/types"
)

// contactDigits is the exact length of a contact number.
const contactDigits = 10

// validate is built once: validator.Validate caches struct metadata and
// is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json name ("contact", not "Contact").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "alphaspace", func(fl validator.FieldLevel) bool {
		return isAlphaSpace(fl.Field().String())
	})
	mustRegister(v, "contact", func(fl validator.FieldLevel) bool {
		_, ok := parseContact(fl.Field().String())
		return ok
	})
	mustRegister(v, "photo", func(fl validator.FieldLevel) bool {
		return imagesource.IsImage(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// isAlphaSpace: letters and whitespace only, at least one letter.
func isAlphaSpace(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return letters > 0
}

// parseContact accepts exactly ten decimal digits with a value above zero.
func parseContact(s string) (int64, bool) {
	if len(s) != contactDigits {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Validate is the only place student fields are checked. It trims the
// draft's text fields, applies every rule, and returns the record the
// draft describes (without id). A staged ImagePath must name an image
// file; whether a photo is required at all is up to the caller.
func Validate(d types.Draft) (types.Student, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Place = strings.TrimSpace(d.Place)
	d.Contact = strings.TrimSpace(d.Contact)

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return types.Student{}, newFault(KindValidation, ErrValidation.Message, err)
		}
		return types.Student{}, &Fault{
			Kind:    KindValidation,
			Message: ErrValidation.Message,
			Reasons: reasons(verrs),
		}
	}

	contact, _ := parseContact(d.Contact)
	return types.Student{
		Name:      d.Name,
		Place:     d.Place,
		Contact:   contact,
		ImagePath: d.ImagePath,
	}, nil
}

// reasons turns each failed rule into a plain English sentence.
func reasons(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", e.Field()))
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param()))
		case "alphaspace":
			out = append(out, fmt.Sprintf("%s may contain only letters and spaces", e.Field()))
		case "contact":
			out = append(out, fmt.Sprintf("%s must be exactly %d digits", e.Field(), contactDigits))
		case "photo":
			out = append(out, fmt.Sprintf("%s must be an image file (jpg, png, gif, webp or heic)", e.Field()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return out
}
