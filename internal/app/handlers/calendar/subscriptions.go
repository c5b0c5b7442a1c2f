package calendar

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
)

type AddCalendarCommand struct {
	ListingID string `validate:"required"`
	URL       string `validate:"required"`
	Name      string `validate:"max=120"`
}

func (c AddCalendarCommand) Key() string { return addCalendarKey }

type AddCalendarHandler struct {
	Deps
}

func (h *AddCalendarHandler) Handle(ctx context.Context, cmd AddCalendarCommand) (*dto.ListingCalendar, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	listing, err := ownedListing(execCtx, unit, domainlistings.ListingID(cmd.ListingID), actor)
	if err != nil {
		return nil, err
	}
	cal, err := domaincalendar.NewListingCalendar(domaincalendar.CalendarID(h.newID()), listing.ID, cmd.URL, cmd.Name, actor.ID, h.now())
	if err != nil {
		return nil, err
	}
	if err := unit.Calendars().Save(execCtx, cal); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("calendar subscribed", "calendar_id", cal.ID, "listing_id", cal.ListingID)
	out := dto.MapListingCalendar(cal)
	return &out, nil
}

type RemoveCalendarCommand struct {
	CalendarID string `validate:"required"`
}

func (c RemoveCalendarCommand) Key() string { return removeCalendarKey }

// RemoveCalendarHandler drops a subscription together with the blocked dates
// it imported.
type RemoveCalendarHandler struct {
	Deps
}

func (h *RemoveCalendarHandler) Handle(ctx context.Context, cmd RemoveCalendarCommand) (*dto.SyncResult, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cal, err := unit.Calendars().ByID(execCtx, domaincalendar.CalendarID(cmd.CalendarID))
	if err != nil {
		return nil, err
	}
	if _, err := ownedListing(execCtx, unit, cal.ListingID, actor); err != nil {
		return nil, err
	}
	removed, err := unit.BlockedDates().SoftDeleteMissing(execCtx, string(cal.ID), nil, h.now())
	if err != nil {
		return nil, err
	}
	if err := unit.Calendars().Delete(execCtx, cal.ID); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("calendar removed", "calendar_id", cal.ID, "listing_id", cal.ListingID, "removed", removed)
	return &dto.SyncResult{CalendarID: string(cal.ID), Removed: removed}, nil
}

type ListCalendarsQuery struct {
	ListingID string `validate:"required"`
}

func (q ListCalendarsQuery) Key() string { return listCalendarsKey }

type ListCalendarsHandler struct {
	Deps
}

func (h *ListCalendarsHandler) Handle(ctx context.Context, q ListCalendarsQuery) (dto.ListingCalendarCollection, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return dto.ListingCalendarCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCalendarCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := ownedListing(execCtx, unit, domainlistings.ListingID(q.ListingID), actor)
	if err != nil {
		return dto.ListingCalendarCollection{}, err
	}
	cals, err := unit.Calendars().ByListing(execCtx, listing.ID)
	if err != nil {
		return dto.ListingCalendarCollection{}, err
	}
	out := dto.ListingCalendarCollection{Items: make([]dto.ListingCalendar, 0, len(cals))}
	for _, c := range cals {
		out.Items = append(out.Items, dto.MapListingCalendar(c))
	}
	return out, nil
}

var (
	_ commands.Handler[AddCalendarCommand, *dto.ListingCalendar]         = (*AddCalendarHandler)(nil)
	_ commands.Handler[RemoveCalendarCommand, *dto.SyncResult]           = (*RemoveCalendarHandler)(nil)
	_ queries.Handler[ListCalendarsQuery, dto.ListingCalendarCollection] = (*ListCalendarsHandler)(nil)
)
