package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"resortadmin/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestBookingCreated(t *testing.T) {
	fake := &fakeSender{}
	n := newWith(fake, 42)

	b := domain.Booking{ID: 1, RoomID: 3, StartDate: d(2024, 6, 1), EndDate: d(2024, 6, 5), GuestName: "Guest"}
	room := domain.Room{ID: 3, Number: "103", Type: domain.RoomStandard2}
	actor := domain.User{FirstName: "Op"}

	if err := n.BookingCreated(context.Background(), b, room, actor); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("want 1 message, got %d", len(fake.sent))
	}
	msg := fake.sent[0]
	if msg.ChatID != 42 {
		t.Fatalf("chat id: %d", msg.ChatID)
	}
	for _, want := range []string{"103", "2024-06-01", "2024-06-05", "4 night", "Guest", "Op"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestDailyReport(t *testing.T) {
	fake := &fakeSender{}
	n := newWith(fake, 42)

	r := domain.DailyReport{
		Date:          d(2024, 6, 1),
		TotalRooms:    33,
		OccupiedRooms: 11,
		OccupancyRate: 33.33,
		ArrivalsToday: []domain.Booking{{RoomID: 1, GuestName: "A"}},
		RevenueToday:  500000,
	}
	if err := n.DailyReport(context.Background(), r); err != nil {
		t.Fatalf("report: %v", err)
	}
	text := fake.sent[0].Text
	for _, want := range []string{"2024-06-01", "11/33", "500000", "Arrivals: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
