package domain

import "time"

// Room categories kept as plain strings; the catalog is seeded by migration
// and administrative edits never invent new categories.
const (
	RoomStandard2  = "standard_2"
	RoomStandard4  = "standard_4"
	RoomLux2       = "lux_2"
	RoomVIPSmall4  = "vip_small_4"
	RoomVIPBig4    = "vip_big_4"
	RoomApartment4 = "apartment_4"
	RoomCottage6   = "cottage_6"
	RoomPresident8 = "president_8"
)

type Room struct {
	ID           int64
	Number       string // unique display label, e.g. "101"
	Type         string
	Capacity     int
	NightlyPrice int64 // smallest currency unit per night
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoomStatus is the read model for room listings: the static record plus
// whether the room is occupied on the requested day.
type RoomStatus struct {
	Room
	Occupied bool
}

type RoomsQuery struct {
	Type   string // empty = all types
	Status string // "", "available" or "occupied"
	On     time.Time
}
