package app

import (
	"context"
	"time"

	"resortadmin/internal/domain"
)

type RoomService struct {
	rooms    domain.RoomRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewRoomService(rooms domain.RoomRepository, cache domain.Cache, ttl time.Duration) *RoomService {
	return &RoomService{rooms: rooms, cache: cache, cacheTTL: ttl}
}

func (s *RoomService) Get(ctx context.Context, id int64) (domain.RoomStatus, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	occupied, err := s.occupiedToday(ctx)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	return domain.RoomStatus{Room: room, Occupied: occupied[id]}, nil
}

// List returns rooms with today's occupancy, optionally filtered by type
// and by status ("available"/"occupied").
func (s *RoomService) List(ctx context.Context, q domain.RoomsQuery) ([]domain.RoomStatus, error) {
	rooms, err := s.rooms.ListRooms(ctx, q.Type)
	if err != nil {
		return nil, err
	}
	occupied, err := s.occupiedToday(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RoomStatus, 0, len(rooms))
	for _, r := range rooms {
		st := domain.RoomStatus{Room: r, Occupied: occupied[r.ID]}
		switch q.Status {
		case "available":
			if st.Occupied {
				continue
			}
		case "occupied":
			if !st.Occupied {
				continue
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// occupiedToday caches the set of occupied room ids under one per-day key;
// booking mutations drop that key.
func (s *RoomService) occupiedToday(ctx context.Context) (map[int64]bool, error) {
	day := domain.Day(time.Now().UTC())
	key := "occupancy:" + day.Format("2006-01-02")

	if s.cache != nil {
		var ids []int64
		if ok, _ := s.cache.Get(ctx, key, &ids); ok {
			set := make(map[int64]bool, len(ids))
			for _, id := range ids {
				set[id] = true
			}
			return set, nil
		}
	}

	set, err := s.rooms.OccupiedRoomIDs(ctx, day)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		_ = s.cache.Set(ctx, key, ids, int(s.cacheTTL.Seconds()))
	}
	return set, nil
}
