package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

const defaultOverrideRetries = 3

// Ledger answers and mutates the occupancy of listings. Occupancy queries are
// computed live from bookings and blocked dates; the override periods of the
// listing are a separate host-facing view kept in step on a best effort basis.
type Ledger struct {
	Listings     domainlistings.ListingRepository
	Bookings     domainbooking.Repository
	Claims       domainavailability.ClaimRepository
	BlockedDates domainavailability.BlockedDateRepository
	Logger       *slog.Logger
	Retries      int
	// Events, when set, receives availability.blocked/released events.
	Events *outbox.Publisher
}

func FromUnit(unit uow.UnitOfWork, logger *slog.Logger) *Ledger {
	return &Ledger{
		Listings:     unit.Listings(),
		Bookings:     unit.Bookings(),
		Claims:       unit.Claims(),
		BlockedDates: unit.BlockedDates(),
		Logger:       logger,
	}
}

// Conflicts lists what occupies r on a listing at now.
type Conflicts struct {
	Bookings     []*domainbooking.Booking
	BlockedDates []domainavailability.BlockedDate
}

func (c Conflicts) Empty() bool {
	return len(c.Bookings) == 0 && len(c.BlockedDates) == 0
}

// Conflicts returns the occupying bookings and active blocked dates that
// overlap r. Pending bookings past their expiry are ignored even before the
// sweep marks them expired. skipBooking excludes one booking and its mirror.
func (l *Ledger) Conflicts(ctx context.Context, listingID domainlistings.ListingID, r daterange.DateRange, now time.Time, skipBooking domainbooking.BookingID) (Conflicts, error) {
	var out Conflicts
	bookings, err := l.Bookings.Occupying(ctx, listingID, r)
	if err != nil {
		return Conflicts{}, err
	}
	for _, b := range bookings {
		if b.ID == skipBooking || !b.OccupiesAt(now) || !b.Range.Overlaps(r) {
			continue
		}
		out.Bookings = append(out.Bookings, b)
	}
	blocks, err := l.BlockedDates.ActiveOverlapping(ctx, listingID, r)
	if err != nil {
		return Conflicts{}, err
	}
	skipUID := ""
	if skipBooking != "" {
		skipUID = domainavailability.InternalUID(string(skipBooking))
	}
	for _, b := range domainavailability.Overlapping(blocks, r) {
		if b.EventUID == skipUID {
			continue
		}
		out.BlockedDates = append(out.BlockedDates, b)
	}
	return out, nil
}

func (l *Ledger) IsAvailable(ctx context.Context, listingID domainlistings.ListingID, r daterange.DateRange, now time.Time) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, domainbooking.ErrInvalidDateRange
	}
	c, err := l.Conflicts(ctx, listingID, r, now, "")
	if err != nil {
		return false, err
	}
	return c.Empty(), nil
}

// Claim takes the storage-level hold for a booking. It fails with
// ErrDateConflict when another active claim overlaps.
func (l *Ledger) Claim(ctx context.Context, b *domainbooking.Booking, now time.Time) error {
	claim := domainavailability.Claim{
		BookingID: string(b.ID),
		Range:     b.Range,
		ExpiresAt: b.ClaimExpiry(),
		CreatedAt: now.UTC(),
	}
	err := l.Claims.Claim(ctx, b.ListingID, claim, now)
	if errors.Is(err, domainavailability.ErrOverlappingRange) {
		return fmt.Errorf("%w: %w", domainbooking.ErrDateConflict, err)
	}
	return err
}

func (l *Ledger) SettleClaim(ctx context.Context, b *domainbooking.Booking) error {
	return l.Claims.Settle(ctx, b.ListingID, string(b.ID))
}

func (l *Ledger) DropClaim(ctx context.Context, b *domainbooking.Booking) error {
	err := l.Claims.Drop(ctx, b.ListingID, string(b.ID))
	if errors.Is(err, domainavailability.ErrClaimNotFound) {
		return nil
	}
	return err
}

// Block splits the listing's override periods around r and marks the middle
// unavailable. The write is a compare-and-swap on the listing version and is
// retried when a concurrent writer got there first.
func (l *Ledger) Block(ctx context.Context, listingID domainlistings.ListingID, r daterange.DateRange, now time.Time) error {
	retries := l.Retries
	if retries <= 0 {
		retries = defaultOverrideRetries
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		listing, err := l.Listings.ByID(ctx, listingID)
		if err != nil {
			return err
		}
		periods := domainlistings.SplitForBlock(listing.Overrides, r)
		err = l.Listings.SetOverrides(ctx, listingID, listing.Version, periods, now)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domainlistings.ErrConcurrentUpdate) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Release flips the unavailable override period exactly matching r back to
// available. Adjacent fragments are left as they are.
func (l *Ledger) Release(ctx context.Context, listingID domainlistings.ListingID, r daterange.DateRange, now time.Time) error {
	return l.Listings.ReleaseOverride(ctx, listingID, r, now)
}

// Mirror records the booking as an internal blocked date.
func (l *Ledger) Mirror(ctx context.Context, b *domainbooking.Booking, now time.Time) error {
	_, err := l.BlockedDates.Upsert(ctx, domainavailability.BlockedDate{
		ListingID: b.ListingID,
		Origin:    domainavailability.OriginInternal,
		EventUID:  domainavailability.InternalUID(string(b.ID)),
		Range:     b.Range,
		Summary:   "Booking " + b.Reference,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	})
	return err
}

func (l *Ledger) Unmirror(ctx context.Context, b *domainbooking.Booking, now time.Time) error {
	err := l.BlockedDates.SoftDelete(ctx, b.ListingID, domainavailability.InternalUID(string(b.ID)), now)
	if errors.Is(err, domainavailability.ErrBlockedDateNotFound) {
		return nil
	}
	return err
}

// OnConfirmed runs the best-effort side effects of a booking entering
// confirmed: settle its claim, split the override periods and mirror it.
func (l *Ledger) OnConfirmed(ctx context.Context, b *domainbooking.Booking, now time.Time) {
	l.bestEffort(b, "settle claim", l.SettleClaim(ctx, b))
	l.bestEffort(b, "block override", l.Block(ctx, b.ListingID, b.Range, now))
	l.bestEffort(b, "mirror booking", l.Mirror(ctx, b, now))
	l.publish(ctx, domainavailability.DatesBlocked{ListingID: b.ListingID, BookingID: string(b.ID), Range: b.Range, At: now.UTC()})
}

// OnReleased undoes the occupancy of a booking that left the occupying
// states. Override periods are only restored when the booking had blocked
// them, i.e. it was confirmed or checked in.
func (l *Ledger) OnReleased(ctx context.Context, b *domainbooking.Booking, wasConfirmed bool, now time.Time) {
	l.bestEffort(b, "drop claim", l.DropClaim(ctx, b))
	if wasConfirmed {
		l.bestEffort(b, "release override", l.Release(ctx, b.ListingID, b.Range, now))
	}
	l.bestEffort(b, "unmirror booking", l.Unmirror(ctx, b, now))
	l.publish(ctx, domainavailability.DatesReleased{ListingID: b.ListingID, BookingID: string(b.ID), Range: b.Range, At: now.UTC()})
}

func (l *Ledger) publish(ctx context.Context, ev events.DomainEvent) {
	if l.Events == nil {
		return
	}
	l.Events.Publish(ctx, eventBatch{ev})
}

type eventBatch []events.DomainEvent

func (b eventBatch) Drain() []events.DomainEvent { return b }

func (l *Ledger) bestEffort(b *domainbooking.Booking, step string, err error) {
	if err == nil || l.Logger == nil {
		return
	}
	l.Logger.Warn("availability sync failed", "step", step, "booking_id", b.ID, "listing_id", b.ListingID, "error", err)
}
