package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"resortadmin/internal/adapters/observability"
	"resortadmin/internal/domain"
)

type BookingService struct {
	rooms    domain.RoomRepository
	bookings domain.BookingRepository
	history  domain.HistoryRepository
	notifier domain.Notifier // nil disables notifications
	cache    domain.Cache    // nil disables occupancy invalidation
	retries  int
}

func NewBookingService(
	rooms domain.RoomRepository,
	bookings domain.BookingRepository,
	history domain.HistoryRepository,
	notifier domain.Notifier,
	cache domain.Cache,
	retries int,
) *BookingService {
	if retries < 0 {
		retries = 0
	}
	return &BookingService{
		rooms:    rooms,
		bookings: bookings,
		history:  history,
		notifier: notifier,
		cache:    cache,
		retries:  retries,
	}
}

type CreateBookingInput struct {
	RoomID    int64
	StartDate time.Time
	EndDate   time.Time
	GuestName string
	Notes     string
}

// UpdateBookingInput carries only the fields the caller wants to change.
type UpdateBookingInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	GuestName *string
	Notes     *string
}

// CheckAvailability decides whether [start,end) can be booked for roomID.
// Pure read; the authoritative re-check happens inside the insert/update
// transaction.
func (s *BookingService) CheckAvailability(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) (domain.Availability, error) {
	start, end = domain.Day(start), domain.Day(end)
	if !end.After(start) {
		return domain.Availability{}, domain.ErrInvalidRange
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return domain.Availability{}, err
	}
	conflicts, err := s.bookings.FindOverlapping(ctx, roomID, start, end, excludeID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{
		RoomID:    roomID,
		StartDate: start,
		EndDate:   end,
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

func (s *BookingService) Create(ctx context.Context, actor domain.User, in CreateBookingInput) (domain.Booking, error) {
	if !actor.Role.Allows(domain.PermCreateBooking) {
		return domain.Booking{}, domain.ErrForbidden
	}
	start, end := domain.Day(in.StartDate), domain.Day(in.EndDate)
	if !end.After(start) {
		observability.ObserveBooking("invalid")
		return domain.Booking{}, domain.ErrInvalidRange
	}
	room, err := s.rooms.GetRoom(ctx, in.RoomID)
	if err != nil {
		return domain.Booking{}, err
	}

	now := time.Now().UTC()
	b := domain.Booking{
		RoomID:    in.RoomID,
		StartDate: start,
		EndDate:   end,
		GuestName: in.GuestName,
		Notes:     in.Notes,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created domain.Booking
	err = runTx(ctx, s.retries, func() error {
		var txErr error
		created, txErr = s.bookings.InsertBooking(ctx, b)
		return txErr
	})
	if err != nil {
		if _, ok := domain.AsConflict(err); ok {
			observability.ObserveBooking("conflict")
		}
		return domain.Booking{}, err
	}
	observability.ObserveBooking("created")

	s.invalidateOccupancy(ctx)
	s.logAction(ctx, actor.ID, created.ID, "create", nil,
		fmt.Sprintf("booked room %s: %s to %s", room.Number,
			created.StartDate.Format("2006-01-02"), created.EndDate.Format("2006-01-02")))
	if s.notifier != nil {
		if nerr := s.notifier.BookingCreated(ctx, created, room, actor); nerr != nil {
			log.Warn().Err(nerr).Int64("booking_id", created.ID).Msg("booking notification failed")
		}
	}
	return created, nil
}

func (s *BookingService) Update(ctx context.Context, actor domain.User, id int64, in UpdateBookingInput) (domain.Booking, error) {
	existing, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !canEdit(actor, existing) {
		return domain.Booking{}, domain.ErrForbidden
	}

	updated := existing
	if in.StartDate != nil {
		updated.StartDate = domain.Day(*in.StartDate)
	}
	if in.EndDate != nil {
		updated.EndDate = domain.Day(*in.EndDate)
	}
	if in.GuestName != nil {
		updated.GuestName = *in.GuestName
	}
	if in.Notes != nil {
		updated.Notes = *in.Notes
	}
	datesChanged := !updated.StartDate.Equal(existing.StartDate) || !updated.EndDate.Equal(existing.EndDate)
	if datesChanged && !updated.EndDate.After(updated.StartDate) {
		observability.ObserveBooking("invalid")
		return domain.Booking{}, domain.ErrInvalidRange
	}
	updated.UpdatedAt = time.Now().UTC()

	// The overlap re-check runs only when dates moved; the booking's own id
	// is excluded inside the repository so it never conflicts with itself.
	var result domain.Booking
	err = runTx(ctx, s.retries, func() error {
		var txErr error
		result, txErr = s.bookings.UpdateBooking(ctx, updated, datesChanged)
		return txErr
	})
	if err != nil {
		if _, ok := domain.AsConflict(err); ok {
			observability.ObserveBooking("conflict")
		}
		return domain.Booking{}, err
	}
	observability.ObserveBooking("updated")

	s.invalidateOccupancy(ctx)
	s.logAction(ctx, actor.ID, id, "update", bookingChanges(existing, result),
		fmt.Sprintf("updated booking %d (room %d)", id, result.RoomID))
	return result, nil
}

func (s *BookingService) Delete(ctx context.Context, actor domain.User, id int64) error {
	existing, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !canDelete(actor, existing) {
		return domain.ErrForbidden
	}

	err = runTx(ctx, s.retries, func() error {
		return s.bookings.DeleteBooking(ctx, id)
	})
	if err != nil {
		return err
	}
	observability.ObserveBooking("deleted")

	s.invalidateOccupancy(ctx)
	s.logAction(ctx, actor.ID, id, "delete",
		nil, fmt.Sprintf("deleted booking %d (room %d, %s to %s)", id, existing.RoomID,
			existing.StartDate.Format("2006-01-02"), existing.EndDate.Format("2006-01-02")))
	if s.notifier != nil {
		room, rerr := s.rooms.GetRoom(ctx, existing.RoomID)
		if rerr == nil {
			if nerr := s.notifier.BookingCancelled(ctx, existing, room, actor); nerr != nil {
				log.Warn().Err(nerr).Int64("booking_id", id).Msg("cancellation notification failed")
			}
		}
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (domain.Booking, error) {
	return s.bookings.GetBooking(ctx, id)
}

func (s *BookingService) List(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	return s.bookings.ListBookings(ctx, q)
}

// canEdit: the creator (operator and up) or any manager-tier role.
func canEdit(actor domain.User, b domain.Booking) bool {
	if actor.ID == b.CreatedBy && actor.Role.Allows(domain.PermEditOwnBooking) {
		return true
	}
	return actor.Role.Allows(domain.PermEditAnyBooking)
}

// canDelete: the creator (operator and up) or admin-tier for others' bookings.
func canDelete(actor domain.User, b domain.Booking) bool {
	if actor.ID == b.CreatedBy && actor.Role.Allows(domain.PermEditOwnBooking) {
		return true
	}
	return actor.Role.Allows(domain.PermDeleteAnyBooking)
}

func (s *BookingService) invalidateOccupancy(ctx context.Context) {
	if s.cache == nil {
		return
	}
	key := "occupancy:" + domain.Day(time.Now().UTC()).Format("2006-01-02")
	if err := s.cache.Del(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("occupancy cache invalidation failed")
	}
}

func (s *BookingService) logAction(ctx context.Context, userID, bookingID int64, action string, changes []byte, desc string) {
	if s.history == nil {
		return
	}
	err := s.history.LogAction(ctx, domain.HistoryEntry{
		UserID:      userID,
		EntityType:  "booking",
		EntityID:    bookingID,
		Action:      action,
		ChangesJSON: changes,
		Description: desc,
	})
	if err != nil {
		log.Warn().Err(err).Int64("booking_id", bookingID).Str("action", action).Msg("history log failed")
	}
}

func bookingChanges(before, after domain.Booking) []byte {
	diff := map[string]any{
		"old": bookingFields(before),
		"new": bookingFields(after),
	}
	b, err := json.Marshal(diff)
	if err != nil {
		return nil
	}
	return b
}

func bookingFields(b domain.Booking) map[string]any {
	return map[string]any{
		"start_date": b.StartDate.Format("2006-01-02"),
		"end_date":   b.EndDate.Format("2006-01-02"),
		"guest_name": b.GuestName,
		"notes":      b.Notes,
	}
}
