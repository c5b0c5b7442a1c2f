package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidDateRange         = fmt.Errorf("booking: %w", daterange.ErrInvalidRange)
	ErrCheckInInPast            = fmt.Errorf("booking: check-in is before today: %w", daterange.ErrInvalidRange)
	ErrDateConflict             = errors.New("booking: dates are not available")
	ErrListingUnavailable       = errors.New("booking: listing is unavailable for this request")
	ErrPetPolicyViolation       = errors.New("booking: pet policy violation")
	ErrInvalidStateTransition   = errors.New("booking: invalid state transition")
	ErrCancellationWindowClosed = errors.New("booking: cancellation window closed")
	ErrBookingNotFound          = errors.New("booking: not found")
	ErrGuestRequired            = errors.New("booking: guest id required")
	ErrAdultsRequired           = errors.New("booking: at least one adult is required")
	ErrConcurrentUpdate         = errors.New("booking: concurrent update detected")
)

type BookingID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusDeclined   Status = "declined"
	StatusCancelled  Status = "cancelled"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

// ParseStatus accepts both "checked_in" and "checked-in" spellings.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if _, ok := transitions[s]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStateTransition, raw)
}

// Occupying reports whether a booking in status s blocks its dates.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCheckedIn
}

type Type string

const (
	TypeInstant Type = "instant"
	TypeRequest Type = "request"
)

type GuestCounts struct {
	Adults   int
	Children int
	Infants  int
}

// Total counts the guests occupying capacity; infants are not counted.
func (g GuestCounts) Total() int {
	return g.Adults + g.Children
}

type Pet struct {
	Type string
	Name string
}

type PetDetails struct {
	HasPets bool
	Count   int
	Pets    []Pet
}

// Normalize derives the count and flag from the pet list when one is given.
func (p PetDetails) Normalize() PetDetails {
	out := p
	if len(p.Pets) > out.Count {
		out.Count = len(p.Pets)
	}
	if out.Count < 0 {
		out.Count = 0
	}
	out.HasPets = out.Count > 0
	return out
}

func (p PetDetails) Types() []string {
	types := make([]string, 0, len(p.Pets))
	for _, pet := range p.Pets {
		if t := strings.TrimSpace(pet.Type); t != "" {
			types = append(types, t)
		}
	}
	return types
}

type Booking struct {
	ID                 BookingID
	Reference          string
	ListingID          listings.ListingID
	HostID             listings.HostID
	GuestID            string
	Range              daterange.DateRange
	Nights             int
	Guests             GuestCounts
	TotalGuests        int
	Pets               PetDetails
	Price              pricing.PriceBreakdown
	Status             Status
	Type               Type
	Payment            Payment
	CancellationPolicy listings.CancellationPolicy
	ExpiresAt          *time.Time
	CancelReason       string
	Refund             *Refund
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID listings.HostID) ([]*Booking, error)
	// Occupying returns the bookings of a listing whose status blocks dates
	// and whose range overlaps r.
	Occupying(ctx context.Context, listingID listings.ListingID, r daterange.DateRange) ([]*Booking, error)
	ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...Status) ([]*Booking, error)
	// PendingExpiredBefore returns pending bookings whose expiry is not after now.
	PendingExpiredBefore(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// Request is the canonical booking request the engine validates.
type Request struct {
	Listing *listings.Listing
	GuestID string
	Range   daterange.DateRange
	Guests  GuestCounts
	Pets    PetDetails
}

// Check validates a request against the listing without touching storage.
// Date checks run first, then listing state and capacity, then pets.
func (r Request) Check(now time.Time) error {
	if strings.TrimSpace(r.GuestID) == "" {
		return ErrGuestRequired
	}
	if err := r.Range.Validate(); err != nil {
		return ErrInvalidDateRange
	}
	if daterange.StartOfDay(r.Range.CheckIn).Before(daterange.StartOfDay(now)) {
		return ErrCheckInInPast
	}
	if r.Guests.Adults < 1 {
		return ErrAdultsRequired
	}
	if r.Listing == nil || !r.Listing.IsActive() {
		return fmt.Errorf("%w: listing is not active", ErrListingUnavailable)
	}
	total := r.Guests.Total()
	if total > r.Listing.MaxGuests {
		return fmt.Errorf("%w: %d guests exceed capacity of %d", ErrListingUnavailable, total, r.Listing.MaxGuests)
	}
	if total < r.Listing.MinGuests {
		return fmt.Errorf("%w: listing requires at least %d guests", ErrListingUnavailable, r.Listing.MinGuests)
	}
	pets := r.Pets.Normalize()
	if pets.Count > 0 {
		if err := r.Listing.PetPolicy.Check(pets.Count, pets.Types()); err != nil {
			return fmt.Errorf("%w: %w", ErrPetPolicyViolation, err)
		}
	}
	return nil
}

type CreateParams struct {
	ID         BookingID
	Reference  string
	Request    Request
	Price      pricing.PriceBreakdown
	Now        time.Time
	PendingTTL time.Duration
}

// NewBooking creates a booking from a checked request. Instant-book listings
// start confirmed; everything else waits in pending until PendingTTL passes.
func NewBooking(p CreateParams) (*Booking, error) {
	req := p.Request
	if err := req.Check(p.Now); err != nil {
		return nil, err
	}
	if err := p.Price.Verify(); err != nil {
		return nil, err
	}
	now := p.Now.UTC()
	pets := req.Pets.Normalize()
	b := &Booking{
		ID:                 p.ID,
		Reference:          p.Reference,
		ListingID:          req.Listing.ID,
		HostID:             req.Listing.Host,
		GuestID:            req.GuestID,
		Range:              req.Range,
		Nights:             req.Range.Nights(),
		Guests:             req.Guests,
		TotalGuests:        req.Guests.Total(),
		Pets:               pets,
		Price:              p.Price,
		CancellationPolicy: req.Listing.CancellationPolicy,
		Payment:            Payment{Status: PaymentPending, Amount: p.Price.Total, Refunded: money.Zero(p.Price.Total.Currency)},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	b.Record(BookingRequested{Subject: b.subject(now), Range: b.Range, Total: b.Price.Total})
	if req.Listing.InstantBook {
		b.Type = TypeInstant
		b.Status = StatusConfirmed
		b.Record(BookingConfirmed{Subject: b.subject(now), Range: b.Range, Total: b.Price.Total})
		return b, nil
	}
	b.Type = TypeRequest
	b.Status = StatusPending
	expires := now.Add(p.PendingTTL)
	b.ExpiresAt = &expires
	return b, nil
}

// Expired reports whether a pending booking has outlived its expiry at now.
func (b *Booking) Expired(now time.Time) bool {
	return b.Status == StatusPending && b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// OccupiesAt reports whether the booking blocks its dates at now. Expired
// pending bookings never do, whether or not the sweep has run.
func (b *Booking) OccupiesAt(now time.Time) bool {
	return b.Status.Occupying() && !b.Expired(now)
}

func (b *Booking) ClaimExpiry() *time.Time {
	if b.Status != StatusPending {
		return nil
	}
	return b.ExpiresAt
}
