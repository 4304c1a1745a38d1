package app

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"resortadmin/internal/domain"
)

// ExportService renders rooms, bookings and analytics as .xlsx workbooks.
type ExportService struct {
	rooms     domain.RoomRepository
	bookings  domain.BookingRepository
	users     domain.UserRepository
	analytics *AnalyticsService
}

func NewExportService(
	rooms domain.RoomRepository,
	bookings domain.BookingRepository,
	users domain.UserRepository,
	analytics *AnalyticsService,
) *ExportService {
	return &ExportService{rooms: rooms, bookings: bookings, users: users, analytics: analytics}
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
	})
}

func (s *ExportService) Rooms(ctx context.Context) (*excelize.File, error) {
	rooms, err := s.rooms.ListRooms(ctx, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, "Rooms"); err != nil {
		return nil, err
	}
	sheet = "Rooms"

	header := []interface{}{"ID", "Number", "Type", "Capacity", "Nightly price", "Created"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if st, err := headerStyle(f); err == nil {
		_ = f.SetCellStyle(sheet, "A1", "F1", st)
	}

	for i, r := range rooms {
		row := []interface{}{
			r.ID, r.Number, r.Type, r.Capacity, r.NightlyPrice,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(sheet, "A", "F", 18)
	return f, nil
}

func (s *ExportService) Bookings(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	bookings, err := s.bookings.ListBookings(ctx, domain.BookingsQuery{From: from, To: to, Limit: 10000})
	if err != nil {
		return nil, err
	}
	rooms, err := s.rooms.ListRooms(ctx, "")
	if err != nil {
		return nil, err
	}
	numberOf := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		numberOf[r.ID] = r.Number
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	nameOf := make(map[int64]string, len(users))
	for _, u := range users {
		nameOf[u.ID] = u.FullName()
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, "Bookings"); err != nil {
		return nil, err
	}
	sheet = "Bookings"

	header := []interface{}{"ID", "Room", "Check-in", "Check-out", "Guest", "Notes", "Created", "Created by"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if st, err := headerStyle(f); err == nil {
		_ = f.SetCellStyle(sheet, "A1", "H1", st)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID,
			"№" + numberOf[b.RoomID],
			b.StartDate.Format("2006-01-02"),
			b.EndDate.Format("2006-01-02"),
			b.GuestName,
			b.Notes,
			b.CreatedAt.Format("2006-01-02 15:04"),
			nameOf[b.CreatedBy],
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(sheet, "A", "H", 16)
	return f, nil
}

// Analytics builds a three-sheet workbook: daily occupancy, room-type
// breakdown and monthly trends.
func (s *ExportService) Analytics(ctx context.Context, start, end time.Time) (*excelize.File, error) {
	occ, err := s.analytics.Occupancy(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byType, err := s.analytics.RoomTypes(ctx, start, end)
	if err != nil {
		return nil, err
	}
	trends, err := s.analytics.Trends(ctx, 6)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, "Occupancy"); err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Period", fmt.Sprintf("%s - %s", occ.Start.Format("2006-01-02"), occ.End.Format("2006-01-02"))},
		{"Average occupancy", fmt.Sprintf("%.2f%%", occ.AverageOccupancy)},
		{"Total rooms", occ.TotalRooms},
	}
	for i, row := range summary {
		r := row
		if err := f.SetSheetRow("Occupancy", fmt.Sprintf("A%d", i+1), &r); err != nil {
			return nil, err
		}
	}
	dailyHeader := []interface{}{"Date", "Occupied", "Available", "Occupancy %"}
	if err := f.SetSheetRow("Occupancy", "A5", &dailyHeader); err != nil {
		return nil, err
	}
	if st, err := headerStyle(f); err == nil {
		_ = f.SetCellStyle("Occupancy", "A5", "D5", st)
	}
	for i, d := range occ.Daily {
		row := []interface{}{d.Date.Format("2006-01-02"), d.Occupied, d.Available, d.Rate}
		if err := f.SetSheetRow("Occupancy", fmt.Sprintf("A%d", i+6), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("Room types"); err != nil {
		return nil, err
	}
	typeHeader := []interface{}{"Room type", "Total rooms", "Bookings", "Booked nights", "Occupancy %"}
	if err := f.SetSheetRow("Room types", "A1", &typeHeader); err != nil {
		return nil, err
	}
	if st, err := headerStyle(f); err == nil {
		_ = f.SetCellStyle("Room types", "A1", "E1", st)
	}
	for i, ts := range byType {
		row := []interface{}{ts.RoomType, ts.TotalRooms, ts.Bookings, ts.BookedNights, ts.Rate}
		if err := f.SetSheetRow("Room types", fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("Trends"); err != nil {
		return nil, err
	}
	trendHeader := []interface{}{"Month", "Bookings", "Avg nights"}
	if err := f.SetSheetRow("Trends", "A1", &trendHeader); err != nil {
		return nil, err
	}
	if st, err := headerStyle(f); err == nil {
		_ = f.SetCellStyle("Trends", "A1", "C1", st)
	}
	for i, tp := range trends {
		row := []interface{}{tp.Month, tp.Bookings, tp.AvgNights}
		if err := f.SetSheetRow("Trends", fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{"Occupancy", "Room types", "Trends"} {
		_ = f.SetColWidth(name, "A", "E", 18)
	}
	return f, nil
}
