package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

var (
	ErrBlockedDateNotFound = errors.New("availability: blocked date not found")
	ErrEventUIDRequired    = errors.New("availability: event uid is required")
)

type Origin string

const (
	OriginInternal Origin = "internal"
	OriginExternal Origin = "external"
)

// BlockedDate is one occupied interval of a listing, either mirrored from a
// booking or imported from an external calendar.
type BlockedDate struct {
	ID         string
	ListingID  listings.ListingID
	Origin     Origin
	EventUID   string
	CalendarID string
	Range      daterange.DateRange
	Summary    string
	Deleted    bool
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InternalUID is the event uid of the blocked date mirroring a booking.
func InternalUID(bookingID string) string {
	return "booking-" + bookingID
}

// Validate checks the blocked date can be stored under its (listing, uid) key.
func (b BlockedDate) Validate() error {
	if strings.TrimSpace(b.EventUID) == "" {
		return ErrEventUIDRequired
	}
	if err := b.Range.Validate(); err != nil {
		return fmt.Errorf("availability: blocked date %s: %w", b.EventUID, err)
	}
	return nil
}

func (b BlockedDate) Active() bool {
	return !b.Deleted
}

type BlockedDateRepository interface {
	// Upsert inserts or updates the blocked date keyed by (listing, uid). An
	// upsert revives a soft-deleted entry.
	Upsert(ctx context.Context, b BlockedDate) (created bool, err error)
	Active(ctx context.Context, id listings.ListingID) ([]BlockedDate, error)
	ActiveOverlapping(ctx context.Context, id listings.ListingID, r daterange.DateRange) ([]BlockedDate, error)
	ByCalendar(ctx context.Context, calendarID string) ([]BlockedDate, error)
	SoftDelete(ctx context.Context, id listings.ListingID, uid string, now time.Time) error
	// SoftDeleteMissing removes the active entries of a calendar whose uid is
	// not in keep and returns how many it removed.
	SoftDeleteMissing(ctx context.Context, calendarID string, keep []string, now time.Time) (int, error)
}

// Overlapping filters the active blocked dates overlapping r.
func Overlapping(blocks []BlockedDate, r daterange.DateRange) []BlockedDate {
	var out []BlockedDate
	for _, b := range blocks {
		if b.Active() && b.Range.Overlaps(r) {
			out = append(out, b)
		}
	}
	return out
}
