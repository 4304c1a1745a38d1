package domain

import (
	"context"
	"time"
)

type RoomRepository interface {
	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context, roomType string) ([]Room, error)
	// OccupiedRoomIDs returns ids of rooms with a booking covering day
	// (start <= day < end).
	OccupiedRoomIDs(ctx context.Context, day time.Time) (map[int64]bool, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListBookings(ctx context.Context, q BookingsQuery) ([]Booking, error)

	// FindOverlapping is the pure read behind availability checks: bookings
	// for roomID whose interval overlaps [start,end), minus excludeID (0 = none).
	FindOverlapping(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]BookingRef, error)

	// InsertBooking re-runs the overlap check and the insert inside one
	// transaction holding a row lock on the room, so two concurrent creates
	// for the same room cannot both pass. Returns *ConflictError on clash,
	// ErrNotFound when the room is missing.
	InsertBooking(ctx context.Context, b Booking) (Booking, error)

	// UpdateBooking applies field changes under the same room lock; when
	// recheckDates is set the overlap check runs first, excluding b.ID.
	UpdateBooking(ctx context.Context, b Booking, recheckDates bool) (Booking, error)

	DeleteBooking(ctx context.Context, id int64) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// UpdateUser persists role/activation changes.
	UpdateUser(ctx context.Context, u User) error
	// RecordLogin refreshes profile fields from Telegram and bumps last_login.
	RecordLogin(ctx context.Context, id int64, firstName, lastName, username string) error
}

type HistoryRepository interface {
	LogAction(ctx context.Context, e HistoryEntry) error
	ListHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Notifier delivers booking events to the operators' chat. Best-effort:
// callers log failures and move on.
type Notifier interface {
	BookingCreated(ctx context.Context, b Booking, room Room, actor User) error
	BookingCancelled(ctx context.Context, b Booking, room Room, actor User) error
	DailyReport(ctx context.Context, r DailyReport) error
}

// DailyReport is the morning summary pushed by the scheduler.
type DailyReport struct {
	Date            time.Time
	TotalRooms      int
	OccupiedRooms   int
	OccupancyRate   float64
	ArrivalsToday   []Booking
	DeparturesToday []Booking
	RevenueToday    int64
}
