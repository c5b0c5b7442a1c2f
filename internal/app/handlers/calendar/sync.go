package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
)

// noTx runs imports without a transaction: events upserted before a failure
// stay imported.
type noTx struct{}

func (noTx) TxOptions() uow.TxOptions { return uow.TxOptions{NoTransaction: true} }

type SyncCalendarCommand struct {
	noTx
	CalendarID string `validate:"required"`
}

func (c SyncCalendarCommand) Key() string { return syncCalendarKey }

type SyncCalendarHandler struct {
	Deps
}

// Handle imports one subscription. Failures are recorded on the subscription
// and returned.
func (h *SyncCalendarHandler) Handle(ctx context.Context, cmd SyncCalendarCommand) (*dto.SyncResult, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, cmd.TxOptions())
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
	outcome, syncErr := syncLocked(execCtx, h.Deps, unit, cal)
	if err := commit(); err != nil {
		return nil, err
	}
	if syncErr != nil {
		return nil, syncErr
	}
	res := dto.MapSyncOutcome(outcome)
	return &res, nil
}

type SyncListingCalendarsCommand struct {
	noTx
	ListingID string `validate:"required"`
}

func (c SyncListingCalendarsCommand) Key() string { return syncListingCalendarKey }

// SyncListingCalendarsHandler imports every subscription of a listing. A
// failing subscription does not stop the others; its error is reported in
// its result.
type SyncListingCalendarsHandler struct {
	Deps
}

func (h *SyncListingCalendarsHandler) Handle(ctx context.Context, cmd SyncListingCalendarsCommand) (*dto.SyncAllResult, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, cmd.TxOptions())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	listing, err := ownedListing(execCtx, unit, domainlistings.ListingID(cmd.ListingID), actor)
	if err != nil {
		return nil, err
	}
	cals, err := unit.Calendars().ByListing(execCtx, listing.ID)
	if err != nil {
		return nil, err
	}
	out := &dto.SyncAllResult{ListingID: string(listing.ID), Results: make([]dto.SyncResult, 0, len(cals))}
	for _, cal := range cals {
		outcome, syncErr := syncLocked(execCtx, h.Deps, unit, cal)
		res := dto.MapSyncOutcome(outcome)
		res.CalendarID = string(cal.ID)
		if syncErr != nil {
			res.Error = syncErr.Error()
		}
		out.Results = append(out.Results, res)
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// syncLocked holds the per-subscription lock for the duration of one import.
func syncLocked(ctx context.Context, d Deps, unit uow.UnitOfWork, cal *domaincalendar.ListingCalendar) (domaincalendar.SyncOutcome, error) {
	if d.Locker != nil {
		release, err := d.Locker.Acquire(ctx, "calendar-sync:"+string(cal.ID), d.lockTTL())
		if errors.Is(err, policies.ErrLockHeld) {
			return domaincalendar.SyncOutcome{CalendarID: cal.ID}, domaincalendar.ErrSyncInProgress
		}
		if err != nil {
			return domaincalendar.SyncOutcome{CalendarID: cal.ID}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				d.logger().Warn("calendar lock not released", "calendar_id", cal.ID, "error", err)
			}
		}()
	}
	return importCalendar(ctx, d, unit, cal)
}

// importCalendar fetches the feed with the stored validators, upserts every
// complete event as an external blocked date and soft-deletes the entries
// the feed no longer lists.
func importCalendar(ctx context.Context, d Deps, unit uow.UnitOfWork, cal *domaincalendar.ListingCalendar) (domaincalendar.SyncOutcome, error) {
	now := d.now()
	out := domaincalendar.SyncOutcome{CalendarID: cal.ID}

	resp, err := d.Fetcher.Fetch(ctx, cal.URL, cal.Validators)
	if err != nil {
		if !errors.Is(err, domaincalendar.ErrUpstreamFetchFailed) {
			err = fmt.Errorf("%w: %w", domaincalendar.ErrUpstreamFetchFailed, err)
		}
		return out, fail(ctx, d, unit, cal, out, err, now)
	}
	if resp.NotModified {
		out.NotModified = true
		return out, succeed(ctx, d, unit, cal, out, resp.Validators, now)
	}
	events, err := d.Codec.Parse(resp.Body)
	if err != nil {
		if !errors.Is(err, domaincalendar.ErrUpstreamParseFailed) {
			err = fmt.Errorf("%w: %w", domaincalendar.ErrUpstreamParseFailed, err)
		}
		return out, fail(ctx, d, unit, cal, out, err, now)
	}

	keep := make([]string, 0, len(events))
	for _, ev := range events {
		if !ev.Complete() {
			out.Skipped++
			continue
		}
		uid := ev.StableUID()
		_, err := unit.BlockedDates().Upsert(ctx, domainavailability.BlockedDate{
			ListingID:  cal.ListingID,
			Origin:     domainavailability.OriginExternal,
			EventUID:   uid,
			CalendarID: string(cal.ID),
			Range:      ev.Range(),
			Summary:    ev.Summary,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return out, fail(ctx, d, unit, cal, out, err, now)
		}
		out.Imported++
		keep = append(keep, uid)
	}
	removed, err := unit.BlockedDates().SoftDeleteMissing(ctx, string(cal.ID), keep, now)
	if err != nil {
		return out, fail(ctx, d, unit, cal, out, err, now)
	}
	out.Removed = removed
	return out, succeed(ctx, d, unit, cal, out, resp.Validators, now)
}

func succeed(ctx context.Context, d Deps, unit uow.UnitOfWork, cal *domaincalendar.ListingCalendar, out domaincalendar.SyncOutcome, validators domaincalendar.Validators, now time.Time) error {
	cal.RecordSuccess(out, validators, now)
	if err := unit.Calendars().Save(ctx, cal); err != nil {
		return err
	}
	d.Publisher.Publish(ctx, cal)
	d.logger().Info("calendar synced",
		"calendar_id", cal.ID,
		"listing_id", cal.ListingID,
		"imported", out.Imported,
		"removed", out.Removed,
		"skipped", out.Skipped,
		"not_modified", out.NotModified,
	)
	return nil
}

// fail records cause on the subscription and returns it. Blocked dates
// upserted before the failure are kept.
func fail(ctx context.Context, d Deps, unit uow.UnitOfWork, cal *domaincalendar.ListingCalendar, out domaincalendar.SyncOutcome, cause error, now time.Time) error {
	cal.RecordFailure(cause, out.Imported, now)
	if err := unit.Calendars().Save(ctx, cal); err != nil {
		d.logger().Warn("calendar sync state not saved", "calendar_id", cal.ID, "error", err)
	}
	d.Publisher.Publish(ctx, cal)
	d.logger().Error("calendar sync failed", "calendar_id", cal.ID, "listing_id", cal.ListingID, "imported", out.Imported, "error", cause)
	return cause
}

var (
	_ commands.Handler[SyncCalendarCommand, *dto.SyncResult]            = (*SyncCalendarHandler)(nil)
	_ commands.Handler[SyncListingCalendarsCommand, *dto.SyncAllResult] = (*SyncListingCalendarsHandler)(nil)
	_ middleware.TxConfigurer                                           = SyncCalendarCommand{}
	_ middleware.TxConfigurer                                           = SyncListingCalendarsCommand{}
)
