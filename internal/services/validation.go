package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

// whitespace is the ECMAScript \s class. RE2's \s is ASCII only and lacks \v.
const whitespace = `\t\n\v\f\r \x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	emailPattern    = regexp.MustCompile(`^[^` + whitespace + `@]+@[^` + whitespace + `@]+\.[^` + whitespace + `@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,16}$`)
)

// ValidEmail reports whether s has the shape local@domain.tld.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// ValidUsername reports whether s is 3 to 16 letters, digits, '_' or '-'.
func ValidUsername(s string) bool { return usernamePattern.MatchString(s) }

// ValidPassword reports whether s has at least 8 characters including an
// upper case letter, a lower case letter and a digit. Length is counted in
// UTF-16 code units and line terminators are rejected, as browsers do.
func ValidPassword(s string) bool {
	var units int
	var upper, lower, digit bool
	for _, r := range s {
		units += utf16.RuneLen(r)
		switch {
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			return false
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return units >= 8 && upper && lower && digit
}

// NewValidator returns a validator with the account field rules registered.
// Field errors are reported under their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	rules := map[string]func(string) bool{
		"emailshape": ValidEmail,
		"password":   ValidPassword,
		"username":   ValidUsername,
	}
	for tag, check := range rules {
		// Registration only fails on an empty tag name or nil func.
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		})
	}
	return v
}

var tagMessages = map[string]string{
	"required":   "is required",
	"emailshape": "must be a valid email address",
	"password":   "must be at least 8 characters with an upper case letter, a lower case letter and a digit",
	"username":   "must be 3 to 16 letters, digits, underscores or hyphens",
	"max":        "is too long",
	"gte":        "must not be negative",
}

// validationError turns a validator failure into an ErrValidation with
// one message per field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on the '%s' tag", fe.Tag())
		}
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
