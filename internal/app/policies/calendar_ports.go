package policies

import (
	"context"
	"errors"
	"time"

	domaincalendar "staybook/internal/domain/calendar"
)

// FeedResponse is the outcome of a conditional feed fetch. Body is empty when
// the upstream answered not modified.
type FeedResponse struct {
	Body        []byte
	NotModified bool
	Validators  domaincalendar.Validators
}

// FeedFetcher downloads external calendar feeds with a bounded timeout.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, validators domaincalendar.Validators) (FeedResponse, error)
}

// CalendarCodec reads and writes iCalendar documents.
type CalendarCodec interface {
	Parse(data []byte) ([]domaincalendar.FeedEvent, error)
	Encode(name string, events []domaincalendar.ExportEvent) ([]byte, error)
}

var ErrFeedPublishingDisabled = errors.New("calendar: feed publishing is not configured")

// FeedPublisher stores an exported listing feed and returns where it lives.
type FeedPublisher interface {
	Publish(ctx context.Context, listingID string, data []byte) (string, error)
}

var ErrLockHeld = errors.New("lock: already held")

// Locker hands out short-lived exclusive locks keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
