package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"resortadmin/internal/app"
	"resortadmin/internal/domain"
)

// ---- fakes ----

// memStore enforces the same contract as the MySQL repository: the overlap
// check and the write happen under one lock, so concurrent inserts for the
// same room serialize.
type memStore struct {
	mu       sync.Mutex
	rooms    map[int64]domain.Room
	bookings map[int64]domain.Booking
	nextID   int64
	history  []domain.HistoryEntry

	lastRecheck bool
	// failures injected before the next n write transactions succeed
	transientFailures int
}

func newMemStore(rooms ...domain.Room) *memStore {
	m := &memStore{rooms: map[int64]domain.Room{}, bookings: map[int64]domain.Booking{}, nextID: 1}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memStore) GetRoom(_ context.Context, id int64) (domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListRooms(_ context.Context, roomType string) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Room
	for _, r := range m.rooms {
		if roomType == "" || r.Type == roomType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) OccupiedRoomIDs(_ context.Context, day time.Time) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[int64]bool{}
	for _, b := range m.bookings {
		if !b.StartDate.After(day) && b.EndDate.After(day) {
			set[b.RoomID] = true
		}
	}
	return set, nil
}

func (m *memStore) GetBooking(_ context.Context, id int64) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ListBookings(_ context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if q.RoomID != 0 && b.RoomID != q.RoomID {
			continue
		}
		if !q.From.IsZero() && !b.EndDate.After(q.From) {
			continue
		}
		if !q.To.IsZero() && !b.StartDate.Before(q.To) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) FindOverlapping(_ context.Context, roomID int64, start, end time.Time, excludeID int64) ([]domain.BookingRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOverlappingLocked(roomID, start, end, excludeID), nil
}

func (m *memStore) findOverlappingLocked(roomID int64, start, end time.Time, excludeID int64) []domain.BookingRef {
	var out []domain.BookingRef
	for _, b := range m.bookings {
		if b.RoomID != roomID || b.ID == excludeID {
			continue
		}
		if domain.Overlaps(start, end, b.StartDate, b.EndDate) {
			out = append(out, b.Ref())
		}
	}
	return out
}

func (m *memStore) InsertBooking(_ context.Context, b domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transientFailures > 0 {
		m.transientFailures--
		return domain.Booking{}, domain.ErrStorageUnavailable
	}
	if _, ok := m.rooms[b.RoomID]; !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	if conflicts := m.findOverlappingLocked(b.RoomID, b.StartDate, b.EndDate, 0); len(conflicts) > 0 {
		return domain.Booking{}, &domain.ConflictError{RoomID: b.RoomID, Conflicts: conflicts}
	}
	b.ID = m.nextID
	m.nextID++
	m.bookings[b.ID] = b
	return b, nil
}

func (m *memStore) UpdateBooking(_ context.Context, b domain.Booking, recheckDates bool) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRecheck = recheckDates
	if _, ok := m.bookings[b.ID]; !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	if recheckDates {
		if conflicts := m.findOverlappingLocked(b.RoomID, b.StartDate, b.EndDate, b.ID); len(conflicts) > 0 {
			return domain.Booking{}, &domain.ConflictError{RoomID: b.RoomID, Conflicts: conflicts}
		}
	}
	m.bookings[b.ID] = b
	return b, nil
}

func (m *memStore) DeleteBooking(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *memStore) LogAction(_ context.Context, e domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.HistoryEntry(nil), m.history...)
	return out, nil
}

// ---- helpers ----

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dp(s string) *time.Time { t := d(s); return &t }

var (
	room1 = domain.Room{ID: 1, Number: "101", Type: domain.RoomStandard2, Capacity: 2, NightlyPrice: 500000}
	room2 = domain.Room{ID: 2, Number: "102", Type: domain.RoomStandard2, Capacity: 2, NightlyPrice: 500000}

	operator  = domain.User{ID: 10, Role: domain.RoleOperator, IsActive: true}
	operator2 = domain.User{ID: 11, Role: domain.RoleOperator, IsActive: true}
	manager   = domain.User{ID: 20, Role: domain.RoleManager, IsActive: true}
	admin     = domain.User{ID: 30, Role: domain.RoleAdmin, IsActive: true}
	viewer    = domain.User{ID: 40, Role: domain.RoleUser, IsActive: true}
)

func newSvc(store *memStore) *app.BookingService {
	return app.NewBookingService(store, store, store, nil, nil, 2)
}

func mustCreate(t *testing.T, svc *app.BookingService, actor domain.User, roomID int64, start, end string) domain.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), actor, app.CreateBookingInput{
		RoomID: roomID, StartDate: d(start), EndDate: d(end),
	})
	if err != nil {
		t.Fatalf("create %s-%s on room %d: %v", start, end, roomID, err)
	}
	return b
}

// ---- tests ----

func TestCreate_SameDayTurnover(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	// checkout on the 5th, new check-in on the 5th: must not conflict
	mustCreate(t, svc, operator, 1, "2024-01-05", "2024-01-10")
}

func TestCreate_OverlapRejected(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")

	_, err := svc.Create(context.Background(), operator, app.CreateBookingInput{
		RoomID: 1, StartDate: d("2024-01-03"), EndDate: d("2024-01-06"),
	})
	ce, ok := domain.AsConflict(err)
	if !ok {
		t.Fatalf("want ConflictError, got %v", err)
	}
	if len(ce.Conflicts) != 1 || ce.Conflicts[0].ID != a.ID {
		t.Fatalf("conflict should list booking %d, got %+v", a.ID, ce.Conflicts)
	}
}

func TestCreate_InvalidRange(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	for _, c := range [][2]string{
		{"2024-01-05", "2024-01-05"},
		{"2024-01-06", "2024-01-05"},
	} {
		_, err := svc.Create(context.Background(), operator, app.CreateBookingInput{
			RoomID: 1, StartDate: d(c[0]), EndDate: d(c[1]),
		})
		if !errors.Is(err, domain.ErrInvalidRange) {
			t.Fatalf("%v: want ErrInvalidRange, got %v", c, err)
		}
	}
	if len(store.bookings) != 0 {
		t.Fatal("invalid range must be rejected before storage is touched")
	}
}

func TestCreate_RoomNotFound(t *testing.T) {
	svc := newSvc(newMemStore(room1))
	_, err := svc.Create(context.Background(), operator, app.CreateBookingInput{
		RoomID: 99, StartDate: d("2024-01-01"), EndDate: d("2024-01-02"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreate_RoomIsolation(t *testing.T) {
	store := newMemStore(room1, room2)
	svc := newSvc(store)

	mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	// identical dates on another room must not be blocked
	mustCreate(t, svc, operator, 2, "2024-01-01", "2024-01-05")
}

func TestCreate_ForbiddenForViewer(t *testing.T) {
	svc := newSvc(newMemStore(room1))
	_, err := svc.Create(context.Background(), viewer, app.CreateBookingInput{
		RoomID: 1, StartDate: d("2024-01-01"), EndDate: d("2024-01-02"),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestCreate_RetriesTransientFailures(t *testing.T) {
	store := newMemStore(room1)
	store.transientFailures = 2
	svc := newSvc(store) // retries=2 → third attempt succeeds

	mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
}

func TestCreate_RetriesExhausted(t *testing.T) {
	store := newMemStore(room1)
	store.transientFailures = 10
	svc := newSvc(store)

	_, err := svc.Create(context.Background(), operator, app.CreateBookingInput{
		RoomID: 1, StartDate: d("2024-01-01"), EndDate: d("2024-01-05"),
	})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestUpdate_ExcludesSelf(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")

	// extending over its own old interval must not self-conflict
	got, err := svc.Update(context.Background(), operator, a.ID, app.UpdateBookingInput{
		EndDate: dp("2024-01-06"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.EndDate.Equal(d("2024-01-06")) {
		t.Fatalf("end date not applied: %v", got.EndDate)
	}
	if !store.lastRecheck {
		t.Fatal("date change must trigger the overlap re-check")
	}
}

func TestUpdate_DateUnchangedSkipsCheck(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")

	guest := "Alisher Usmanov"
	if _, err := svc.Update(context.Background(), operator, a.ID, app.UpdateBookingInput{
		GuestName: &guest,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.lastRecheck {
		t.Fatal("guest-only update must skip the overlap re-check")
	}
}

func TestUpdate_ConflictWithNeighbor(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	b := mustCreate(t, svc, operator, 1, "2024-01-05", "2024-01-10")

	// moving B's start into A must conflict
	_, err := svc.Update(context.Background(), operator, b.ID, app.UpdateBookingInput{
		StartDate: dp("2024-01-04"),
	})
	if _, ok := domain.AsConflict(err); !ok {
		t.Fatalf("want ConflictError, got %v", err)
	}
}

func TestUpdate_Authorization(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	notes := "late arrival"

	// another operator: not the creator, below manager
	if _, err := svc.Update(context.Background(), operator2, a.ID, app.UpdateBookingInput{Notes: &notes}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("operator2 edit: want ErrForbidden, got %v", err)
	}
	// manager may edit anyone's booking
	if _, err := svc.Update(context.Background(), manager, a.ID, app.UpdateBookingInput{Notes: &notes}); err != nil {
		t.Fatalf("manager edit: %v", err)
	}
}

func TestDelete_Authorization(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)
	ctx := context.Background()

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")

	if err := svc.Delete(ctx, operator2, a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("operator2 delete: want ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, manager, a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("manager delete of others': want ErrForbidden, got %v", err)
	}
	// creator deletes own
	if err := svc.Delete(ctx, operator, a.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}

	b := mustCreate(t, svc, operator, 1, "2024-02-01", "2024-02-05")
	// admin deletes anyone's
	if err := svc.Delete(ctx, admin, b.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := svc.Delete(ctx, admin, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	store := newMemStore(room1, room2)
	svc := newSvc(store)
	ctx := context.Background()

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")

	av, err := svc.CheckAvailability(ctx, 1, d("2024-01-03"), d("2024-01-06"), 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if av.Available || len(av.Conflicts) != 1 || av.Conflicts[0].ID != a.ID {
		t.Fatalf("unexpected availability: %+v", av)
	}

	// idempotent read: same inputs, same answer
	av2, err := svc.CheckAvailability(ctx, 1, d("2024-01-03"), d("2024-01-06"), 0)
	if err != nil {
		t.Fatalf("check 2: %v", err)
	}
	if av2.Available != av.Available || len(av2.Conflicts) != len(av.Conflicts) {
		t.Fatalf("availability not idempotent: %+v vs %+v", av, av2)
	}

	// excluding the conflicting booking frees the interval
	av3, _ := svc.CheckAvailability(ctx, 1, d("2024-01-03"), d("2024-01-06"), a.ID)
	if !av3.Available {
		t.Fatalf("exclude %d should free the range: %+v", a.ID, av3)
	}

	// other room is unaffected
	av4, _ := svc.CheckAvailability(ctx, 2, d("2024-01-03"), d("2024-01-06"), 0)
	if !av4.Available {
		t.Fatalf("room 2 should be free: %+v", av4)
	}

	if _, err := svc.CheckAvailability(ctx, 1, d("2024-01-06"), d("2024-01-06"), 0); !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("want ErrInvalidRange, got %v", err)
	}
	if _, err := svc.CheckAvailability(ctx, 99, d("2024-01-01"), d("2024-01-02"), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConcurrentCreate_OneWins(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), operator, app.CreateBookingInput{
				RoomID: 1, StartDate: d("2024-03-01"), EndDate: d("2024-03-05"),
			})
		}(i)
	}
	wg.Wait()

	success, conflict := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		default:
			if _, ok := domain.AsConflict(err); ok {
				conflict++
			}
		}
	}
	if success != 1 {
		t.Fatalf("exactly one create must win, got %d", success)
	}
	if conflict != attempts-1 {
		t.Fatalf("losers must see Conflict, got %d of %d", conflict, attempts-1)
	}
	if len(store.bookings) != 1 {
		t.Fatalf("ledger holds %d bookings, want 1", len(store.bookings))
	}
}

func TestNoOverlapInvariantAfterMutations(t *testing.T) {
	store := newMemStore(room1, room2)
	svc := newSvc(store)
	ctx := context.Background()

	// a mixed workload: creates, a move, a delete
	mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	b2 := mustCreate(t, svc, operator, 1, "2024-01-05", "2024-01-09")
	mustCreate(t, svc, operator, 2, "2024-01-02", "2024-01-06")
	if _, err := svc.Update(ctx, operator, b2.ID, app.UpdateBookingInput{
		StartDate: dp("2024-01-06"), EndDate: dp("2024-01-12"),
	}); err != nil {
		t.Fatalf("move: %v", err)
	}
	mustCreate(t, svc, operator, 1, "2024-01-05", "2024-01-06")

	// invariant: no two bookings of the same room overlap
	var all []domain.Booking
	for _, b := range store.bookings {
		all = append(all, b)
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.RoomID == b.RoomID && domain.Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
				t.Fatalf("invariant violated: %+v overlaps %+v", a, b)
			}
		}
	}
}

func TestHistoryLoggedOnMutations(t *testing.T) {
	store := newMemStore(room1)
	svc := newSvc(store)
	ctx := context.Background()

	a := mustCreate(t, svc, operator, 1, "2024-01-01", "2024-01-05")
	guest := "G"
	if _, err := svc.Update(ctx, operator, a.ID, app.UpdateBookingInput{GuestName: &guest}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, operator, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(store.history) != 3 {
		t.Fatalf("want 3 history entries, got %d", len(store.history))
	}
	for i, action := range []string{"create", "update", "delete"} {
		if store.history[i].Action != action || store.history[i].EntityType != "booking" {
			t.Fatalf("entry %d: %+v", i, store.history[i])
		}
	}
	if store.history[1].ChangesJSON == nil {
		t.Fatal("update entry must carry a changes diff")
	}
}
