package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: referenced room, booking or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange: end_date is not strictly after start_date. Rejected
	// before any storage round-trip.
	ErrInvalidRange = errors.New("end_date must be after start_date")
	// ErrForbidden: the acting user's role or ownership does not cover the
	// requested operation.
	ErrForbidden = errors.New("forbidden")
	// ErrStorageUnavailable: transient storage failure (lost connection,
	// deadlock victim). Safe to retry the whole transaction.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnauthorized: missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ConflictError rejects a booking interval that overlaps existing bookings
// for the same room. Conflicts carries the overlapping entries so the caller
// can offer alternatives.
type ConflictError struct {
	RoomID    int64
	Conflicts []BookingRef
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %d: %d conflicting booking(s)", e.RoomID, len(e.Conflicts))
}

// AsConflict unwraps err into a *ConflictError if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
