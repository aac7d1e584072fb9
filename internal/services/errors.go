// Package services defines the business logic for managing and importing
// contacts. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler layer.
package services

import "errors"

var (
	// ErrEmptyName is returned when a contact is created or edited with a
	// name that is empty after trimming whitespace.
	ErrEmptyName = errors.New("contact name is empty")

	// ErrInvalidEmail is returned when a non-empty e-mail address does not
	// contain an '@' character.
	ErrInvalidEmail = errors.New("email must contain '@'")

	// ErrInvalidFavorite is returned when a favorite value is outside the
	// allowed set {0, 1}.
	ErrInvalidFavorite = errors.New("favorite value must be 0 or 1")

	// ErrContactNotFound indicates that the requested contact does not exist.
	// Plain edits and deletes of a missing id are silent no-ops and never
	// return this; it is only produced by operations that must read the
	// current row first (favorite toggling).
	ErrContactNotFound = errors.New("contact not found")

	// ErrImportFetch is returned when the remote contact list cannot be
	// fetched or decoded. Nothing has been inserted when this is returned.
	ErrImportFetch = errors.New("import source unavailable")
)
