package availability

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	availabilitysvc "staybook/internal/app/services/availability"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

const (
	getOccupancyKey = "availability.occupancy"

	defaultWindow = 90 * 24 * time.Hour
	maxWindow     = 366 * 24 * time.Hour
)

// GetOccupancyQuery asks which parts of [From, To) are taken. A zero From
// means today and a zero To means From plus 90 days.
type GetOccupancyQuery struct {
	ListingID string `validate:"required"`
	From      time.Time
	To        time.Time
}

func (q GetOccupancyQuery) Key() string { return getOccupancyKey }

type GetOccupancyHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *GetOccupancyHandler) Handle(ctx context.Context, q GetOccupancyQuery) (dto.Occupancy, error) {
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	window, err := occupancyWindow(q.From, q.To, now)
	if err != nil {
		return dto.Occupancy{}, err
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Occupancy{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := unit.Listings().ByID(execCtx, listingID); err != nil {
		return dto.Occupancy{}, err
	}
	conflicts, err := availabilitysvc.FromUnit(unit, h.Logger).Conflicts(execCtx, listingID, window, now, "")
	if err != nil {
		return dto.Occupancy{}, err
	}

	out := dto.Occupancy{ListingID: q.ListingID, From: window.CheckIn, To: window.CheckOut, Ranges: []dto.OccupiedRange{}}
	for _, b := range conflicts.Bookings {
		out.Ranges = append(out.Ranges, dto.OccupiedRange{
			CheckIn:   b.Range.CheckIn,
			CheckOut:  b.Range.CheckOut,
			Source:    "booking",
			Tentative: b.Status == domainbooking.StatusPending,
		})
	}
	for _, blk := range conflicts.BlockedDates {
		// Internal blocks mirror bookings already listed above.
		if blk.Origin == domainavailability.OriginInternal {
			continue
		}
		out.Ranges = append(out.Ranges, dto.OccupiedRange{
			CheckIn:  blk.Range.CheckIn,
			CheckOut: blk.Range.CheckOut,
			Source:   string(blk.Origin),
		})
	}
	sort.Slice(out.Ranges, func(i, j int) bool {
		return out.Ranges[i].CheckIn.Before(out.Ranges[j].CheckIn)
	})
	return out, nil
}

func occupancyWindow(from, to, now time.Time) (daterange.DateRange, error) {
	if from.IsZero() {
		from = daterange.StartOfDay(now)
	}
	if to.IsZero() {
		to = from.Add(defaultWindow)
	}
	window := daterange.DateRange{CheckIn: from.UTC(), CheckOut: to.UTC()}
	if err := window.Validate(); err != nil {
		return daterange.DateRange{}, domainbooking.ErrInvalidDateRange
	}
	if window.CheckOut.Sub(window.CheckIn) > maxWindow {
		window.CheckOut = window.CheckIn.Add(maxWindow)
	}
	return window, nil
}

var _ queries.Handler[GetOccupancyQuery, dto.Occupancy] = (*GetOccupancyHandler)(nil)
