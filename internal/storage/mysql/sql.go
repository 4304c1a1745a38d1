package mysql

const getRoomSQL = `
SELECT id, number, type, capacity, nightly_price, created_at, updated_at
FROM rooms
WHERE id = ?
`

const listRoomsSQL = `
SELECT id, number, type, capacity, nightly_price, created_at, updated_at
FROM rooms
`

const occupiedRoomsSQL = `
SELECT DISTINCT room_id
FROM bookings
WHERE start_date <= ? AND end_date > ?
`

// lockRoomSQL pins the room row for the duration of a booking write so two
// concurrent transactions on the same room serialize. InnoDB releases the
// lock at commit/rollback.
const lockRoomSQL = `
SELECT id FROM rooms WHERE id = ? FOR UPDATE
`

const findOverlappingSQL = `
SELECT id, start_date, end_date, guest_name
FROM bookings
WHERE room_id = ?
  AND start_date < ?
  AND end_date > ?
  AND id <> ?
ORDER BY start_date
`

const getBookingSQL = `
SELECT id, room_id, start_date, end_date, guest_name, notes, created_by, created_at, updated_at
FROM bookings
WHERE id = ?
`

const insertBookingSQL = `
INSERT INTO bookings
  (room_id, start_date, end_date, guest_name, notes, created_by, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

const updateBookingSQL = `
UPDATE bookings
SET room_id = ?, start_date = ?, end_date = ?, guest_name = ?, notes = ?, updated_at = ?
WHERE id = ?
`

const deleteBookingSQL = `
DELETE FROM bookings WHERE id = ?
`

const getUserSQL = `
SELECT id, telegram_id, first_name, last_name, username, role, is_active, created_at, last_login
FROM users
WHERE id = ?
`

const getUserByTelegramSQL = `
SELECT id, telegram_id, first_name, last_name, username, role, is_active, created_at, last_login
FROM users
WHERE telegram_id = ?
`

const listUsersSQL = `
SELECT id, telegram_id, first_name, last_name, username, role, is_active, created_at, last_login
FROM users
ORDER BY id
`

const updateUserSQL = `
UPDATE users
SET role = ?, is_active = ?
WHERE id = ?
`

const recordLoginSQL = `
UPDATE users
SET first_name = ?, last_name = ?, username = ?, last_login = CURRENT_TIMESTAMP
WHERE id = ?
`

const insertHistorySQL = `
INSERT INTO history_logs
  (user_id, entity_type, entity_id, action, changes, description)
VALUES
  (?, ?, ?, ?, ?, ?)
`
