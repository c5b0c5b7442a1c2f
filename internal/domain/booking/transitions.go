package booking

import (
	"fmt"
	"time"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusDeclined, StatusCancelled, StatusExpired},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:  {StatusCheckedOut},
	StatusCheckedOut: {StatusCompleted},
	StatusDeclined:   nil,
	StatusCancelled:  nil,
	StatusCompleted:  nil,
	StatusExpired:    nil,
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the booking to status to and records the matching event.
// Cancellation with refunds goes through Cancel instead.
func (b *Booking) TransitionTo(to Status, reason string, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, b.Status, to)
	}
	now = now.UTC()
	b.Status = to
	b.UpdatedAt = now
	if to != StatusPending {
		b.ExpiresAt = nil
	}
	subj := b.subject(now)
	switch to {
	case StatusConfirmed:
		b.Record(BookingConfirmed{Subject: subj, Range: b.Range, Total: b.Price.Total})
	case StatusDeclined:
		b.Record(BookingDeclined{Subject: subj, Reason: reason})
	case StatusCancelled:
		b.CancelReason = reason
		b.Record(BookingCancelled{Subject: subj, Reason: reason})
	case StatusExpired:
		b.Record(BookingExpired{subj})
	case StatusCheckedIn:
		b.Record(CheckedIn{subj})
	case StatusCheckedOut:
		b.Record(CheckedOut{subj})
	case StatusCompleted:
		b.Record(BookingCompleted{subj})
	}
	return nil
}

// Expire moves an overdue pending booking to expired.
func (b *Booking) Expire(now time.Time) error {
	if !b.Expired(now) {
		return fmt.Errorf("%w: booking %s is not overdue", ErrInvalidStateTransition, b.ID)
	}
	return b.TransitionTo(StatusExpired, "", now)
}
