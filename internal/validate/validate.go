// Package validate holds the field-level input rules shared by the auth,
// profile and trading handlers. Each check returns an *Error carrying the
// flash message shown to the user.
package validate

import (
	"regexp"
	"strconv"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]{5,20}$`)
	emailRe    = regexp.MustCompile(`^[a-z0-9]+[._]?[a-z0-9]+@\w+\.\w{2,3}$`)
	passwordRe = regexp.MustCompile(`^.{5,20}$`)
	// 1..10000 with no leading zero. Quantities arrive as form strings and
	// are only parsed after they match.
	quantityRe = regexp.MustCompile(`^([1-9][0-9]{0,3}|10000)$`)
)

// Error is a failed field check. Message is user-facing flash text.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// Username accepts 5-20 letters and digits, nothing else.
func Username(name string) error {
	if !usernameRe.MatchString(name) {
		return &Error{
			Field:   "username",
			Message: "Username is not valid. Use between 5-20 characters and only letters and numbers.",
		}
	}
	return nil
}

// Email accepts a simple local@domain.tld shape, lower-case only.
func Email(email string) error {
	if !emailRe.MatchString(email) {
		return &Error{
			Field:   "email",
			Message: "Please fill in a valid email address.",
		}
	}
	return nil
}

// Password accepts any 5-20 characters.
func Password(password string) error {
	if !passwordRe.MatchString(password) {
		return &Error{
			Field:   "password",
			Message: "Password is not valid. Use between 5-20 characters.",
		}
	}
	return nil
}

// Quantity parses a share count in 1..10000. The string form is validated
// first so inputs like "007" or "1e2" are rejected outright.
func Quantity(raw string) (int, error) {
	if !quantityRe.MatchString(raw) {
		return 0, &Error{
			Field:   "quantity",
			Message: "Please enter an amount between 1 and 10000.",
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &Error{Field: "quantity", Message: "Please enter an amount between 1 and 10000."}
	}
	return n, nil
}
