// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation engine and handlers to distinguish between different
// failure scenarios without inspecting SQL errors directly.
package repository

import "errors"

// ErrVenueNotFound is returned when a venue cannot be found.
var ErrVenueNotFound = errors.New("venue not found")

// ErrBookingNotFound is returned when a booking cannot be found.
var ErrBookingNotFound = errors.New("booking not found")

// ErrVenueExists is returned when creating a venue whose normalized
// name is already taken. Handlers should translate this into 409.
var ErrVenueExists = errors.New("venue name already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update finds the row in an
// unexpected state, such as confirming a booking that a concurrent
// request already cancelled. Handlers should translate this into 409.
var ErrConflict = errors.New("conflict")
