package availability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	availabilityhandlers "staybook/internal/app/handlers/availability"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/infra/storage/memory"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	l, err := domainlistings.NewListing("lst-1", "host-1", domainlistings.Details{
		Title:              "Cabin",
		Currency:           "USD",
		NightlyPrice:       90,
		MinGuests:          1,
		MaxGuests:          4,
		CancellationPolicy: domainlistings.PolicyModerate,
	}, now)
	if err != nil {
		t.Fatalf("new listing: %v", err)
	}
	if err := store.Listings.Save(ctx, l); err != nil {
		t.Fatalf("save listing: %v", err)
	}
	expired := now.Add(-time.Hour)
	for _, b := range []*domainbooking.Booking{
		{ID: "bk-1", ListingID: "lst-1", HostID: "host-1", Status: domainbooking.StatusConfirmed, Range: daterange.DateRange{CheckIn: day(5), CheckOut: day(7)}},
		{ID: "bk-2", ListingID: "lst-1", HostID: "host-1", Status: domainbooking.StatusPending, Range: daterange.DateRange{CheckIn: day(10), CheckOut: day(12)}},
		{ID: "bk-3", ListingID: "lst-1", HostID: "host-1", Status: domainbooking.StatusPending, ExpiresAt: &expired, Range: daterange.DateRange{CheckIn: day(14), CheckOut: day(15)}},
	} {
		if err := store.Bookings.Save(ctx, b); err != nil {
			t.Fatalf("save booking: %v", err)
		}
	}
	for _, blk := range []domainavailability.BlockedDate{
		{ListingID: "lst-1", Origin: domainavailability.OriginExternal, EventUID: "ext-a", CalendarID: "cal-1", Range: daterange.DateRange{CheckIn: day(2), CheckOut: day(4)}},
		{ListingID: "lst-1", Origin: domainavailability.OriginInternal, EventUID: domainavailability.InternalUID("bk-1"), Range: daterange.DateRange{CheckIn: day(5), CheckOut: day(7)}},
	} {
		if _, err := store.BlockedDates.Upsert(ctx, blk); err != nil {
			t.Fatalf("upsert block: %v", err)
		}
	}
	return store
}

func TestGetOccupancy(t *testing.T) {
	h := &availabilityhandlers.GetOccupancyHandler{
		UoWFactory: memory.Factory{Store: seed(t)},
		Now:        func() time.Time { return now },
	}
	out, err := h.Handle(context.Background(), availabilityhandlers.GetOccupancyQuery{ListingID: "lst-1", From: day(1), To: day(30)})
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if len(out.Ranges) != 3 {
		t.Fatalf("ranges = %+v", out.Ranges)
	}
	want := []struct {
		start     time.Time
		source    string
		tentative bool
	}{
		{day(2), "external", false},
		{day(5), "booking", false},
		{day(10), "booking", true},
	}
	for i, w := range want {
		got := out.Ranges[i]
		if !got.CheckIn.Equal(w.start) || got.Source != w.source || got.Tentative != w.tentative {
			t.Errorf("range %d = %+v", i, got)
		}
	}
}

func TestGetOccupancyWindow(t *testing.T) {
	h := &availabilityhandlers.GetOccupancyHandler{
		UoWFactory: memory.Factory{Store: seed(t)},
		Now:        func() time.Time { return now },
	}
	out, err := h.Handle(context.Background(), availabilityhandlers.GetOccupancyQuery{ListingID: "lst-1"})
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if !out.From.Equal(day(1)) || !out.To.Equal(day(1).Add(90*24*time.Hour)) {
		t.Fatalf("window = %s..%s", out.From, out.To)
	}

	_, err = h.Handle(context.Background(), availabilityhandlers.GetOccupancyQuery{ListingID: "lst-1", From: day(9), To: day(3)})
	if !errors.Is(err, domainbooking.ErrInvalidDateRange) {
		t.Fatalf("inverted window err = %v", err)
	}
	_, err = h.Handle(context.Background(), availabilityhandlers.GetOccupancyQuery{ListingID: "missing"})
	if !errors.Is(err, domainlistings.ErrListingNotFound) {
		t.Fatalf("missing listing err = %v", err)
	}
}
