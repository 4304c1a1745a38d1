package domain

import "time"

// Booking occupies a room over the half-open interval [StartDate, EndDate):
// the checkout day is free for a new check-in.
type Booking struct {
	ID        int64
	RoomID    int64
	StartDate time.Time // date only, midnight UTC
	EndDate   time.Time // exclusive
	GuestName string
	Notes     string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Nights returns the length of stay. Zero for malformed intervals.
func (b Booking) Nights() int {
	n := int(b.EndDate.Sub(b.StartDate).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Strict inequalities on both sides: a stay ending on day D and a stay
// starting on day D do not conflict (same-day turnover).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Day truncates t to midnight UTC. All booking dates are stored this way.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type BookingsQuery struct {
	RoomID int64 // 0 = all rooms
	// Keep only bookings overlapping [From, To); zero values disable the bound.
	From  time.Time
	To    time.Time
	Limit int
	Skip  int
}

// Availability is the outcome of a conflict check for one room and interval.
type Availability struct {
	RoomID    int64
	StartDate time.Time
	EndDate   time.Time
	Available bool
	Conflicts []BookingRef
}

// BookingRef is the slice of a booking exposed in conflict reports.
type BookingRef struct {
	ID        int64
	StartDate time.Time
	EndDate   time.Time
	GuestName string
}

func (b Booking) Ref() BookingRef {
	return BookingRef{ID: b.ID, StartDate: b.StartDate, EndDate: b.EndDate, GuestName: b.GuestName}
}
