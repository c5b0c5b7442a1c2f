package booking

import (
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// Subject identifies the booking an event is about. Every booking event
// carries it so consumers can address the guest without a lookup.
type Subject struct {
	BookingID BookingID          `json:"booking_id"`
	Reference string             `json:"reference"`
	ListingID listings.ListingID `json:"listing_id"`
	GuestID   string             `json:"guest_id"`
	At        time.Time          `json:"at"`
}

func (s Subject) AggregateID() string   { return string(s.BookingID) }
func (s Subject) OccurredAt() time.Time { return s.At }

func (b *Booking) subject(now time.Time) Subject {
	return Subject{BookingID: b.ID, Reference: b.Reference, ListingID: b.ListingID, GuestID: b.GuestID, At: now}
}

type BookingRequested struct {
	Subject
	Range daterange.DateRange `json:"range"`
	Total money.Money         `json:"total"`
}

func (BookingRequested) EventName() string { return "booking.requested" }

type BookingConfirmed struct {
	Subject
	Range daterange.DateRange `json:"range"`
	Total money.Money         `json:"total"`
}

func (BookingConfirmed) EventName() string { return "booking.confirmed" }

type BookingDeclined struct {
	Subject
	Reason string `json:"reason,omitempty"`
}

func (BookingDeclined) EventName() string { return "booking.declined" }

type BookingCancelled struct {
	Subject
	Reason string      `json:"reason,omitempty"`
	Refund money.Money `json:"refund"`
}

func (BookingCancelled) EventName() string { return "booking.cancelled" }

type BookingExpired struct{ Subject }

func (BookingExpired) EventName() string { return "booking.expired" }

type CheckedIn struct{ Subject }

func (CheckedIn) EventName() string { return "booking.checked_in" }

type CheckedOut struct{ Subject }

func (CheckedOut) EventName() string { return "booking.checked_out" }

type BookingCompleted struct{ Subject }

func (BookingCompleted) EventName() string { return "booking.completed" }
