package account

import "errors"

// Domain errors. The web layer maps each to a flash message and a redirect;
// anything not in this taxonomy renders the generic error page.
var (
	// ErrUsernameTaken and ErrEmailTaken are conflicts with an existing
	// account, compared case-insensitively.
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")

	// ErrBadCredentials deliberately covers both an unknown email and a
	// wrong password so the response does not leak which one failed.
	ErrBadCredentials = errors.New("incorrect email and/or password")

	// ErrNotFound is a missing user record.
	ErrNotFound = errors.New("user not found")
)
