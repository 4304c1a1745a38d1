// Package ical renders a room's bookings as an iCalendar feed so front-desk
// staff can subscribe from any calendar client.
package ical

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"resortadmin/internal/domain"
)

// Feed encodes the room's bookings as all-day VEVENTs. Checkout day is the
// event's DTEND, which iCalendar also treats as exclusive, so the feed matches
// the ledger exactly.
func Feed(room domain.Room, bookings []domain.Booking) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//resortadmin//bookings//EN")

	for _, b := range bookings {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, fmt.Sprintf("booking-%d@resortadmin", b.ID))
		summary := fmt.Sprintf("Room %s booked", room.Number)
		if b.GuestName != "" {
			summary = fmt.Sprintf("Room %s: %s", room.Number, b.GuestName)
		}
		ev.Props.SetText(ical.PropSummary, summary)
		if b.Notes != "" {
			ev.Props.SetText(ical.PropDescription, b.Notes)
		}
		ev.Props.SetDate(ical.PropDateTimeStart, b.StartDate)
		ev.Props.SetDate(ical.PropDateTimeEnd, b.EndDate)
		stamp := b.UpdatedAt
		if stamp.IsZero() {
			stamp = time.Now().UTC()
		}
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		cal.Children = append(cal.Children, ev.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
