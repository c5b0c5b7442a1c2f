package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	pricingsvc "staybook/internal/app/services/pricing"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	Deps
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return dto.Booking{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := loadForActor(execCtx, unit.Bookings(), q.BookingID, actor)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, h.now()), nil
}

// ListBookingsQuery lists the bookings of the actor. As selects the side:
// "guest" (default) lists trips, "host" lists bookings on the actor's
// listings. Admins may list another user with UserID.
type ListBookingsQuery struct {
	As     string `validate:"omitempty,oneof=guest host"`
	UserID string
	Status string
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

type ListBookingsHandler struct {
	Deps
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	userID := actor.ID
	if id := strings.TrimSpace(q.UserID); id != "" && id != actor.ID {
		if !actor.IsAdmin() {
			return dto.BookingCollection{}, auth.ErrForbidden
		}
		userID = id
	}
	var status domainbooking.Status
	if strings.TrimSpace(q.Status) != "" {
		if status, err = domainbooking.ParseStatus(q.Status); err != nil {
			return dto.BookingCollection{}, err
		}
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	var bookings []*domainbooking.Booking
	if strings.EqualFold(q.As, string(auth.RoleHost)) {
		bookings, err = unit.Bookings().ListByHost(execCtx, domainlistings.HostID(userID))
	} else {
		bookings, err = unit.Bookings().ListByGuest(execCtx, userID)
	}
	if err != nil {
		return dto.BookingCollection{}, err
	}

	now := h.now()
	items := make([]dto.Booking, 0, len(bookings))
	for _, b := range bookings {
		item := dto.MapBooking(b, now)
		if status != "" && item.Status != string(status) {
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CheckIn.Equal(items[j].CheckIn) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].CheckIn.After(items[j].CheckIn)
	})
	return dto.BookingCollection{Items: items}, nil
}

type CheckAvailabilityQuery struct {
	ListingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	Deps
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr := daterange.DateRange{CheckIn: q.CheckIn, CheckOut: q.CheckOut}
	if err := dr.Validate(); err != nil {
		return dto.Availability{}, domainbooking.ErrInvalidDateRange
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := unit.Listings().ByID(execCtx, listingID); err != nil {
		return dto.Availability{}, err
	}
	conflicts, err := h.ledger(unit).Conflicts(execCtx, listingID, dr, h.now(), "")
	if err != nil {
		return dto.Availability{}, err
	}
	out := dto.Availability{
		ListingID: q.ListingID,
		CheckIn:   dr.CheckIn,
		CheckOut:  dr.CheckOut,
		Available: conflicts.Empty(),
		Conflicts: make([]dto.AvailabilityConflict, 0, len(conflicts.Bookings)+len(conflicts.BlockedDates)),
	}
	for _, b := range conflicts.Bookings {
		out.Conflicts = append(out.Conflicts, dto.AvailabilityConflict{Kind: "booking", Ref: b.Reference, CheckIn: b.Range.CheckIn, CheckOut: b.Range.CheckOut})
	}
	for _, block := range conflicts.BlockedDates {
		out.Conflicts = append(out.Conflicts, dto.MapBlockedConflict(block))
	}
	return out, nil
}

type CalculatePriceQuery struct {
	ListingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
	Guests    int       `validate:"gte=0"`
	Pets      int       `validate:"gte=0"`
}

func (q CalculatePriceQuery) Key() string { return calculatePriceKey }

type CalculatePriceHandler struct {
	Deps
}

func (h *CalculatePriceHandler) Handle(ctx context.Context, q CalculatePriceQuery) (dto.PriceQuote, error) {
	dr := daterange.DateRange{CheckIn: q.CheckIn, CheckOut: q.CheckOut}
	if err := dr.Validate(); err != nil {
		return dto.PriceQuote{}, domainbooking.ErrInvalidDateRange
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PriceQuote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.PriceQuote{}, err
	}
	if q.Guests > listing.MaxGuests {
		return dto.PriceQuote{}, fmt.Errorf("%w: %d guests exceed capacity of %d", domainbooking.ErrListingUnavailable, q.Guests, listing.MaxGuests)
	}
	breakdown, err := pricingsvc.Resolver{Configs: unit.PricingConfigs()}.Quote(execCtx, listing, dr, q.Guests, q.Pets)
	if err != nil {
		return dto.PriceQuote{}, err
	}
	return dto.PriceQuote{
		ListingID: q.ListingID,
		CheckIn:   dr.CheckIn,
		CheckOut:  dr.CheckOut,
		Guests:    q.Guests,
		Pets:      q.Pets,
		Breakdown: dto.MapPriceBreakdown(breakdown),
	}, nil
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]             = (*GetBookingHandler)(nil)
	_ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
	_ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[CalculatePriceQuery, dto.PriceQuote]      = (*CalculatePriceHandler)(nil)
)
