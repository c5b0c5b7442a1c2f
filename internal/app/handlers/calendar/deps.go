package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainlistings "staybook/internal/domain/listings"
)

const (
	addCalendarKey         = "calendar.add"
	removeCalendarKey      = "calendar.remove"
	syncCalendarKey        = "calendar.sync"
	syncListingCalendarKey = "calendar.sync_listing"
	publishListingFeedKey  = "calendar.publish_feed"
	listCalendarsKey       = "calendar.list"
	exportListingKey       = "calendar.export"

	defaultLockTTL = 2 * time.Minute
	defaultUIDHost = "staybook"
)

var ErrListingNotOwned = errors.New("calendar: listing not owned by actor")

type Deps struct {
	UoWFactory uow.UoWFactory
	Fetcher    policies.FeedFetcher
	Codec      policies.CalendarCodec
	Feeds      policies.FeedPublisher
	Locker     policies.Locker
	Publisher  outbox.Publisher
	Logger     *slog.Logger
	Now        func() time.Time
	LockTTL    time.Duration
	// UIDHost is the domain part of exported event uids.
	UIDHost     string
	IDGenerator func() string
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) newID() string {
	if d.IDGenerator != nil {
		return d.IDGenerator()
	}
	return uuid.NewString()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) uidHost() string {
	if d.UIDHost != "" {
		return d.UIDHost
	}
	return defaultUIDHost
}

func (d Deps) lockTTL() time.Duration {
	if d.LockTTL > 0 {
		return d.LockTTL
	}
	return defaultLockTTL
}

// ownedListing loads a listing the actor hosts. Admins and the system actor
// may act on any listing.
func ownedListing(ctx context.Context, unit uow.UnitOfWork, id domainlistings.ListingID, actor auth.Actor) (*domainlistings.Listing, error) {
	listing, err := unit.Listings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Is(string(listing.Host)) {
		return nil, errors.Join(auth.ErrForbidden, ErrListingNotOwned)
	}
	return listing, nil
}
