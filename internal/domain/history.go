package domain

import "time"

// HistoryEntry is one audit-log row: who did what to which entity.
type HistoryEntry struct {
	ID          int64
	UserID      int64
	EntityType  string // "room" | "booking" | "user"
	EntityID    int64
	Action      string // "create" | "update" | "delete"
	ChangesJSON []byte // {"old":{...},"new":{...}}, optional
	Description string
	CreatedAt   time.Time
}

type HistoryQuery struct {
	EntityType string
	EntityID   int64
	UserID     int64
	Since      time.Time
	Limit      int
}
