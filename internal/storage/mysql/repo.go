package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"resortadmin/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// classify maps retriable MySQL failures to ErrStorageUnavailable so the
// application layer can re-run the transaction. 1213 = deadlock victim,
// 1205 = lock wait timeout.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
		return domain.ErrStorageUnavailable
	}
	if errors.Is(err, driver.ErrBadConn) {
		return domain.ErrStorageUnavailable
	}
	return err
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func dateArg(t time.Time) string { return t.Format("2006-01-02") }

// ---- rooms ----

func (r *Repo) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	var rm domain.Room
	err := r.db.QueryRowContext(ctx, getRoomSQL, id).Scan(
		&rm.ID, &rm.Number, &rm.Type, &rm.Capacity, &rm.NightlyPrice, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrNotFound
		}
		return domain.Room{}, classify(err)
	}
	return rm, nil
}

func (r *Repo) ListRooms(ctx context.Context, roomType string) ([]domain.Room, error) {
	q := listRoomsSQL
	var args []any
	if roomType != "" {
		q += " WHERE type = ?"
		args = append(args, roomType)
	}
	q += " ORDER BY number"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Number, &rm.Type, &rm.Capacity, &rm.NightlyPrice, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (r *Repo) OccupiedRoomIDs(ctx context.Context, day time.Time) (map[int64]bool, error) {
	d := dateArg(domain.Day(day))
	rows, err := r.db.QueryContext(ctx, occupiedRoomsSQL, d, d)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	set := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

// ---- bookings ----

func (r *Repo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, classify(err)
	}
	return b, nil
}

func (r *Repo) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, room_id, start_date, end_date, guest_name, notes, created_by, created_at, updated_at
FROM bookings WHERE 1=1`)
	var args []any
	if q.RoomID != 0 {
		sb.WriteString(" AND room_id = ?")
		args = append(args, q.RoomID)
	}
	if !q.From.IsZero() {
		sb.WriteString(" AND end_date > ?")
		args = append(args, dateArg(q.From))
	}
	if !q.To.IsZero() {
		sb.WriteString(" AND start_date < ?")
		args = append(args, dateArg(q.To))
	}
	sb.WriteString(" ORDER BY start_date, id LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Skip)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) FindOverlapping(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]domain.BookingRef, error) {
	refs, err := findOverlapping(ctx, r.db, roomID, start, end, excludeID)
	return refs, classify(err)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findOverlapping(ctx context.Context, q querier, roomID int64, start, end time.Time, excludeID int64) ([]domain.BookingRef, error) {
	rows, err := q.QueryContext(ctx, findOverlappingSQL, roomID, dateArg(end), dateArg(start), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BookingRef
	for rows.Next() {
		var ref domain.BookingRef
		if err := rows.Scan(&ref.ID, &ref.StartDate, &ref.EndDate, &ref.GuestName); err != nil {
			return nil, err
		}
		ref.StartDate = domain.Day(ref.StartDate)
		ref.EndDate = domain.Day(ref.EndDate)
		out = append(out, ref)
	}
	return out, rows.Err()
}

// InsertBooking holds the room row lock while it re-checks for overlaps, so
// two concurrent creates for the same room cannot both pass the check.
func (r *Repo) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Booking{}, classify(err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, b.RoomID); err != nil {
		return domain.Booking{}, err
	}
	conflicts, err := findOverlapping(ctx, tx, b.RoomID, b.StartDate, b.EndDate, 0)
	if err != nil {
		return domain.Booking{}, classify(err)
	}
	if len(conflicts) > 0 {
		return domain.Booking{}, &domain.ConflictError{RoomID: b.RoomID, Conflicts: conflicts}
	}

	res, err := tx.ExecContext(ctx, insertBookingSQL,
		b.RoomID, dateArg(b.StartDate), dateArg(b.EndDate),
		b.GuestName, b.Notes, b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, classify(err)
	}
	b.ID = id
	return b, nil
}

func (r *Repo) UpdateBooking(ctx context.Context, b domain.Booking, recheckDates bool) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Booking{}, classify(err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, b.RoomID); err != nil {
		return domain.Booking{}, err
	}
	var exists int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM bookings WHERE id = ? FOR UPDATE", b.ID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, classify(err)
	}
	if recheckDates {
		conflicts, err := findOverlapping(ctx, tx, b.RoomID, b.StartDate, b.EndDate, b.ID)
		if err != nil {
			return domain.Booking{}, classify(err)
		}
		if len(conflicts) > 0 {
			return domain.Booking{}, &domain.ConflictError{RoomID: b.RoomID, Conflicts: conflicts}
		}
	}

	_, err = tx.ExecContext(ctx, updateBookingSQL,
		b.RoomID, dateArg(b.StartDate), dateArg(b.EndDate),
		b.GuestName, b.Notes, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return domain.Booking{}, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, classify(err)
	}
	return b, nil
}

func (r *Repo) DeleteBooking(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteBookingSQL, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func lockRoom(ctx context.Context, tx *sql.Tx, roomID int64) error {
	var id int64
	if err := tx.QueryRowContext(ctx, lockRoomSQL, roomID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return classify(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.RoomID, &b.StartDate, &b.EndDate,
		&b.GuestName, &b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.StartDate = domain.Day(b.StartDate)
	b.EndDate = domain.Day(b.EndDate)
	return b, nil
}

// ---- users ----

func (r *Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, getUserSQL, id))
}

func (r *Repo) GetUserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, getUserByTelegramSQL, telegramID))
}

func (r *Repo) scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username,
		&u.Role, &u.IsActive, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, classify(err)
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return u, nil
}

func (r *Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, listUsersSQL)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, updateUserSQL, string(u.Role), u.IsActive, u.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// distinguish a no-op update from a missing row
		if _, err := r.GetUser(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) RecordLogin(ctx context.Context, id int64, firstName, lastName, username string) error {
	_, err := r.db.ExecContext(ctx, recordLoginSQL, firstName, lastName, username, id)
	return classify(err)
}

// ---- history ----

func (r *Repo) LogAction(ctx context.Context, e domain.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.UserID, e.EntityType, e.EntityID, e.Action, valJSON(e.ChangesJSON), e.Description,
	)
	return classify(err)
}

func (r *Repo) ListHistory(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, entity_type, entity_id, action, changes, description, created_at
FROM history_logs WHERE 1=1`)
	var args []any
	if q.EntityType != "" {
		sb.WriteString(" AND entity_type = ?")
		args = append(args, q.EntityType)
	}
	if q.EntityID != 0 {
		sb.WriteString(" AND entity_id = ?")
		args = append(args, q.EntityID)
	}
	if q.UserID != 0 {
		sb.WriteString(" AND user_id = ?")
		args = append(args, q.UserID)
	}
	if !q.Since.IsZero() {
		sb.WriteString(" AND created_at >= ?")
		args = append(args, q.Since)
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ?")
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var changes sql.RawBytes
		if err := rows.Scan(&e.ID, &e.UserID, &e.EntityType, &e.EntityID, &e.Action, &changes, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			e.ChangesJSON = append([]byte(nil), changes...)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
