// Package telegram delivers booking events to the operators' chat through
// the Bot API. Sends are rate-limited to stay under Telegram's per-chat cap.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"resortadmin/internal/adapters/observability"
	"resortadmin/internal/domain"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot    sender
	chatID int64
	rl     *rate.Limiter
}

func New(botToken string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newWith(bot, chatID), nil
}

func newWith(bot sender, chatID int64) *Notifier {
	// Telegram allows ~20 msg/min per group chat.
	return &Notifier{bot: bot, chatID: chatID, rl: rate.NewLimiter(rate.Limit(0.3), 3)}
}

func (n *Notifier) send(ctx context.Context, kind, text string) error {
	if err := n.rl.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "HTML"
	_, err := n.bot.Send(msg)
	observability.ObserveNotification(kind, err)
	return err
}

func (n *Notifier) BookingCreated(ctx context.Context, b domain.Booking, room domain.Room, actor domain.User) error {
	text := fmt.Sprintf(
		"✅ <b>New booking</b>\nRoom %s (%s)\n%s to %s, %d night(s)\nGuest: %s\nBy: %s",
		room.Number, room.Type,
		b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02"), b.Nights(),
		orDash(b.GuestName), orDash(actor.FullName()),
	)
	return n.send(ctx, "booking_created", text)
}

func (n *Notifier) BookingCancelled(ctx context.Context, b domain.Booking, room domain.Room, actor domain.User) error {
	text := fmt.Sprintf(
		"❌ <b>Booking cancelled</b>\nRoom %s (%s)\n%s to %s\nGuest: %s\nBy: %s",
		room.Number, room.Type,
		b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02"),
		orDash(b.GuestName), orDash(actor.FullName()),
	)
	return n.send(ctx, "booking_cancelled", text)
}

func (n *Notifier) DailyReport(ctx context.Context, r domain.DailyReport) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>Daily report, %s</b>\n", r.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Occupancy: %d/%d rooms (%.1f%%)\n", r.OccupiedRooms, r.TotalRooms, r.OccupancyRate)
	fmt.Fprintf(&sb, "Revenue today: %d\n", r.RevenueToday)

	fmt.Fprintf(&sb, "\nArrivals: %d\n", len(r.ArrivalsToday))
	for _, b := range r.ArrivalsToday {
		fmt.Fprintf(&sb, "  • room %d, %s\n", b.RoomID, orDash(b.GuestName))
	}
	fmt.Fprintf(&sb, "Departures: %d\n", len(r.DeparturesToday))
	for _, b := range r.DeparturesToday {
		fmt.Fprintf(&sb, "  • room %d, %s\n", b.RoomID, orDash(b.GuestName))
	}
	return n.send(ctx, "daily_report", sb.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
