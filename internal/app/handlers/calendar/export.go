package calendar

import (
	"context"
	"fmt"
	"sort"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
)

type ExportListingICSQuery struct {
	ListingID string `validate:"required"`
}

func (q ExportListingICSQuery) Key() string { return exportListingKey }

// ExportListingICSHandler renders the occupancy of a listing as an iCalendar
// feed. Anyone holding the listing id may read it.
type ExportListingICSHandler struct {
	Deps
}

func (h *ExportListingICSHandler) Handle(ctx context.Context, q ExportListingICSQuery) (*dto.CalendarExport, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	data, err := renderFeed(execCtx, h.Deps, unit, listing)
	if err != nil {
		return nil, err
	}
	return &dto.CalendarExport{ListingID: string(listing.ID), Data: data}, nil
}

type PublishListingFeedCommand struct {
	ListingID string `validate:"required"`
}

func (c PublishListingFeedCommand) Key() string { return publishListingFeedKey }

// PublishListingFeedHandler renders the listing feed and stores it with the
// configured feed publisher.
type PublishListingFeedHandler struct {
	Deps
}

func (h *PublishListingFeedHandler) Handle(ctx context.Context, cmd PublishListingFeedCommand) (*dto.PublishedFeed, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if h.Feeds == nil {
		return nil, policies.ErrFeedPublishingDisabled
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := ownedListing(execCtx, unit, domainlistings.ListingID(cmd.ListingID), actor)
	if err != nil {
		return nil, err
	}
	data, err := renderFeed(execCtx, h.Deps, unit, listing)
	if err != nil {
		return nil, err
	}
	url, err := h.Feeds.Publish(execCtx, string(listing.ID), data)
	if err != nil {
		return nil, fmt.Errorf("calendar: publish feed for %s: %w", listing.ID, err)
	}
	h.logger().Info("listing feed published", "listing_id", listing.ID, "url", url, "bytes", len(data))
	return &dto.PublishedFeed{ListingID: string(listing.ID), URL: url}, nil
}

// renderFeed encodes confirmed and checked-in bookings as Reserved and
// active external blocks as Not available. Pending bookings and the internal
// booking mirrors are left out.
func renderFeed(ctx context.Context, d Deps, unit uow.UnitOfWork, listing *domainlistings.Listing) ([]byte, error) {
	now := d.now()
	bookings, err := unit.Bookings().ListByListing(ctx, listing.ID, domainbooking.StatusConfirmed, domainbooking.StatusCheckedIn)
	if err != nil {
		return nil, err
	}
	blocks, err := unit.BlockedDates().Active(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	events := make([]domaincalendar.ExportEvent, 0, len(bookings)+len(blocks))
	for _, b := range bookings {
		events = append(events, domaincalendar.ExportEvent{
			UID:     fmt.Sprintf("booking-%s@%s", b.ID, d.uidHost()),
			Summary: domaincalendar.ReservedSummary,
			Start:   b.Range.CheckIn,
			End:     b.Range.CheckOut,
			Stamp:   now,
		})
	}
	for _, blk := range blocks {
		if blk.Origin != domainavailability.OriginExternal {
			continue
		}
		events = append(events, domaincalendar.ExportEvent{
			UID:     fmt.Sprintf("ext-%s@%s", blk.EventUID, d.uidHost()),
			Summary: domaincalendar.NotAvailableSummary,
			Start:   blk.Range.CheckIn,
			End:     blk.Range.CheckOut,
			Stamp:   now,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return d.Codec.Encode(listing.Title, events)
}

var (
	_ queries.Handler[ExportListingICSQuery, *dto.CalendarExport]     = (*ExportListingICSHandler)(nil)
	_ commands.Handler[PublishListingFeedCommand, *dto.PublishedFeed] = (*PublishListingFeedHandler)(nil)
)
