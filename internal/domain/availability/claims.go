package availability

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

var (
	ErrOverlappingRange = errors.New("availability: range overlaps with an existing claim")
	ErrClaimNotFound    = errors.New("availability: claim not found")
)

// Claim is the occupancy a booking holds on a listing's calendar. Pending
// bookings hold a claim with an expiry; it stops counting once that passes.
type Claim struct {
	BookingID string
	Range     daterange.DateRange
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the claim still occupies its range at now.
func (c Claim) Active(now time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// Calendar is the per-listing occupancy document. Claims are only ever added
// through a conditional single-document update, which is what keeps two
// overlapping bookings from both succeeding.
type Calendar struct {
	ListingID listings.ListingID
	Claims    []Claim
	Version   int64
}

func NewCalendar(id listings.ListingID) *Calendar {
	return &Calendar{ListingID: id}
}

// Conflict returns the first active claim overlapping r, ignoring the claim
// owned by skipBooking.
func (c *Calendar) Conflict(r daterange.DateRange, now time.Time, skipBooking string) (Claim, bool) {
	for _, claim := range c.Claims {
		if claim.BookingID == skipBooking {
			continue
		}
		if claim.Active(now) && claim.Range.Overlaps(r) {
			return claim, true
		}
	}
	return Claim{}, false
}

// Add appends claim when nothing active overlaps it. A claim for the same
// booking is replaced.
func (c *Calendar) Add(claim Claim, now time.Time) error {
	if _, clash := c.Conflict(claim.Range, now, claim.BookingID); clash {
		return ErrOverlappingRange
	}
	c.Remove(claim.BookingID)
	c.Claims = append(c.Claims, claim)
	return nil
}

func (c *Calendar) Remove(bookingID string) bool {
	for i, claim := range c.Claims {
		if claim.BookingID == bookingID {
			c.Claims = append(c.Claims[:i], c.Claims[i+1:]...)
			return true
		}
	}
	return false
}

// ClaimRepository owns the occupancy calendars. Every method is a single
// targeted update on one listing's document.
type ClaimRepository interface {
	Calendar(ctx context.Context, id listings.ListingID) (*Calendar, error)
	// Claim inserts the claim unless an active claim of another booking
	// overlaps it, in which case ErrOverlappingRange is returned.
	Claim(ctx context.Context, id listings.ListingID, claim Claim, now time.Time) error
	// Settle clears the expiry of a claim so it occupies its range for good.
	Settle(ctx context.Context, id listings.ListingID, bookingID string) error
	Drop(ctx context.Context, id listings.ListingID, bookingID string) error
}
