package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"resortadmin/internal/domain"
)

type AnalyticsService struct {
	rooms    domain.RoomRepository
	bookings domain.BookingRepository
	users    domain.UserRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewAnalyticsService(
	rooms domain.RoomRepository,
	bookings domain.BookingRepository,
	users domain.UserRepository,
	cache domain.Cache,
	ttl time.Duration,
) *AnalyticsService {
	return &AnalyticsService{rooms: rooms, bookings: bookings, users: users, cache: cache, cacheTTL: ttl}
}

type DayOccupancy struct {
	Date      time.Time
	Occupied  int
	Available int
	Rate      float64 // percent
}

type OccupancyStats struct {
	Start            time.Time
	End              time.Time
	TotalRooms       int
	AverageOccupancy float64
	Daily            []DayOccupancy
}

type RoomTypeStats struct {
	RoomType     string
	TotalRooms   int
	Bookings     int
	BookedNights int
	Rate         float64
}

type TrendPoint struct {
	Month     string // "2024-03"
	Bookings  int
	AvgNights float64
}

type UserActivity struct {
	UserID       int64
	Name         string
	Role         domain.Role
	Bookings     int
	LastActivity time.Time
}

type DayRevenue struct {
	Date    time.Time
	Revenue int64
}

type RevenueForecast struct {
	Start time.Time
	End   time.Time
	Total int64
	Daily []DayRevenue
}

// window defaults to the trailing 30 days and normalizes to midnight UTC.
func window(start, end time.Time) (time.Time, time.Time) {
	today := domain.Day(time.Now().UTC())
	if end.IsZero() {
		end = today
	} else {
		end = domain.Day(end)
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	} else {
		start = domain.Day(start)
	}
	return start, end
}

// Occupancy builds the daily occupancy series over [start, end] (both days
// included in the report). A room counts as occupied on day D when a booking
// satisfies start <= D < end, the same half-open rule the checker uses, so
// checkout days are not double-counted.
func (s *AnalyticsService) Occupancy(ctx context.Context, start, end time.Time) (OccupancyStats, error) {
	start, end = window(start, end)

	key := fmt.Sprintf("analytics:occupancy:%s:%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	var cached OccupancyStats
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	rooms, err := s.rooms.ListRooms(ctx, "")
	if err != nil {
		return OccupancyStats{}, err
	}
	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{
		From: start, To: end.AddDate(0, 0, 1), Limit: 10000,
	})
	if err != nil {
		return OccupancyStats{}, err
	}

	out := OccupancyStats{Start: start, End: end, TotalRooms: len(rooms)}
	var rateSum float64
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		occupied := 0
		for _, b := range bookings {
			if !b.StartDate.After(d) && b.EndDate.After(d) {
				occupied++
			}
		}
		rate := 0.0
		if len(rooms) > 0 {
			rate = float64(occupied) / float64(len(rooms)) * 100
		}
		rateSum += rate
		out.Daily = append(out.Daily, DayOccupancy{
			Date:      d,
			Occupied:  occupied,
			Available: len(rooms) - occupied,
			Rate:      round2(rate),
		})
	}
	if n := len(out.Daily); n > 0 {
		out.AverageOccupancy = round2(rateSum / float64(n))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *AnalyticsService) RoomTypes(ctx context.Context, start, end time.Time) ([]RoomTypeStats, error) {
	start, end = window(start, end)
	endExcl := end.AddDate(0, 0, 1)

	rooms, err := s.rooms.ListRooms(ctx, "")
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{
		From: start, To: endExcl, Limit: 10000,
	})
	if err != nil {
		return nil, err
	}

	typeOf := make(map[int64]string, len(rooms))
	roomsPerType := map[string]int{}
	for _, r := range rooms {
		typeOf[r.ID] = r.Type
		roomsPerType[r.Type]++
	}

	counts := map[string]int{}
	nights := map[string]int{}
	for _, b := range bookings {
		rt, ok := typeOf[b.RoomID]
		if !ok {
			continue
		}
		counts[rt]++
		nights[rt] += clippedNights(b.StartDate, b.EndDate, start, endExcl)
	}

	windowNights := int(endExcl.Sub(start).Hours() / 24)
	var out []RoomTypeStats
	for rt, total := range roomsPerType {
		possible := total * windowNights
		rate := 0.0
		if possible > 0 {
			rate = float64(nights[rt]) / float64(possible) * 100
		}
		out = append(out, RoomTypeStats{
			RoomType:     rt,
			TotalRooms:   total,
			Bookings:     counts[rt],
			BookedNights: nights[rt],
			Rate:         round2(rate),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomType < out[j].RoomType })
	return out, nil
}

// Trends groups bookings by creation month over the trailing `months` months.
func (s *AnalyticsService) Trends(ctx context.Context, months int) ([]TrendPoint, error) {
	if months <= 0 || months > 24 {
		months = 6
	}
	since := domain.Day(time.Now().UTC()).AddDate(0, -months, 0)
	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{Limit: 10000})
	if err != nil {
		return nil, err
	}

	type agg struct {
		count  int
		nights int
	}
	byMonth := map[string]*agg{}
	for _, b := range bookings {
		if b.CreatedAt.Before(since) {
			continue
		}
		m := b.CreatedAt.Format("2006-01")
		a := byMonth[m]
		if a == nil {
			a = &agg{}
			byMonth[m] = a
		}
		a.count++
		a.nights += b.Nights()
	}

	var out []TrendPoint
	for m, a := range byMonth {
		avg := 0.0
		if a.count > 0 {
			avg = float64(a.nights) / float64(a.count)
		}
		out = append(out, TrendPoint{Month: m, Bookings: a.count, AvgNights: round1(avg)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *AnalyticsService) UserActivity(ctx context.Context) ([]UserActivity, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{Limit: 10000})
	if err != nil {
		return nil, err
	}

	counts := map[int64]int{}
	last := map[int64]time.Time{}
	for _, b := range bookings {
		counts[b.CreatedBy]++
		if b.CreatedAt.After(last[b.CreatedBy]) {
			last[b.CreatedBy] = b.CreatedAt
		}
	}

	out := make([]UserActivity, 0, len(users))
	for _, u := range users {
		activity := last[u.ID]
		if activity.IsZero() {
			activity = u.CreatedAt
		}
		out = append(out, UserActivity{
			UserID:       u.ID,
			Name:         u.FullName(),
			Role:         u.Role,
			Bookings:     counts[u.ID],
			LastActivity: activity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bookings > out[j].Bookings })
	return out, nil
}

// RevenueForecast projects revenue from confirmed bookings over the next
// daysAhead days using each room's nightly price.
func (s *AnalyticsService) RevenueForecast(ctx context.Context, daysAhead int) (RevenueForecast, error) {
	if daysAhead <= 0 || daysAhead > 365 {
		daysAhead = 30
	}
	start := domain.Day(time.Now().UTC())
	endExcl := start.AddDate(0, 0, daysAhead)

	rooms, err := s.rooms.ListRooms(ctx, "")
	if err != nil {
		return RevenueForecast{}, err
	}
	priceOf := make(map[int64]int64, len(rooms))
	for _, r := range rooms {
		priceOf[r.ID] = r.NightlyPrice
	}

	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{
		From: start, To: endExcl, Limit: 10000,
	})
	if err != nil {
		return RevenueForecast{}, err
	}

	out := RevenueForecast{Start: start, End: endExcl.AddDate(0, 0, -1)}
	perDay := map[string]int64{}
	for _, b := range bookings {
		price := priceOf[b.RoomID]
		from := maxDay(b.StartDate, start)
		to := minDay(b.EndDate, endExcl)
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			perDay[d.Format("2006-01-02")] += price
			out.Total += price
		}
	}

	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, ds := range days {
		d, _ := time.Parse("2006-01-02", ds)
		out.Daily = append(out.Daily, DayRevenue{Date: d, Revenue: perDay[ds]})
	}
	return out, nil
}

// BuildDailyReport gathers today's occupancy, arrivals, departures and
// revenue in parallel for the scheduled morning summary.
func (s *AnalyticsService) BuildDailyReport(ctx context.Context) (domain.DailyReport, error) {
	today := domain.Day(time.Now().UTC())
	tomorrow := today.AddDate(0, 0, 1)

	var (
		rooms    []domain.Room
		occupied map[int64]bool
		current  []domain.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rooms, err = s.rooms.ListRooms(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		occupied, err = s.rooms.OccupiedRoomIDs(gctx, today)
		return err
	})
	g.Go(func() error {
		var err error
		// everything touching today or tomorrow: covers arrivals and departures
		current, err = s.bookings.ListBookings(gctx, domain.BookingsQuery{
			From: today.AddDate(0, 0, -1), To: tomorrow.AddDate(0, 0, 1), Limit: 10000,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DailyReport{}, err
	}

	priceOf := make(map[int64]int64, len(rooms))
	for _, r := range rooms {
		priceOf[r.ID] = r.NightlyPrice
	}

	r := domain.DailyReport{Date: today, TotalRooms: len(rooms), OccupiedRooms: len(occupied)}
	if len(rooms) > 0 {
		r.OccupancyRate = round2(float64(len(occupied)) / float64(len(rooms)) * 100)
	}
	for _, b := range current {
		if b.StartDate.Equal(today) {
			r.ArrivalsToday = append(r.ArrivalsToday, b)
		}
		if b.EndDate.Equal(today) {
			r.DeparturesToday = append(r.DeparturesToday, b)
		}
		if !b.StartDate.After(today) && b.EndDate.After(today) {
			r.RevenueToday += priceOf[b.RoomID]
		}
	}
	return r, nil
}

func clippedNights(bStart, bEnd, winStart, winEndExcl time.Time) int {
	from := maxDay(bStart, winStart)
	to := minDay(bEnd, winEndExcl)
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

func maxDay(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDay(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func round2(f float64) float64 { return float64(int(f*100+0.5)) / 100 }
func round1(f float64) float64 { return float64(int(f*10+0.5)) / 10 }
