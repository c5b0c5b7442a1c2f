package availability

import (
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/shared/daterange"
)

func march(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func between(from, to int) daterange.DateRange {
	return daterange.DateRange{CheckIn: march(from), CheckOut: march(to)}
}

func TestCalendarAddRejectsOverlap(t *testing.T) {
	cal := NewCalendar("lst")
	now := march(1)
	if err := cal.Add(Claim{BookingID: "a", Range: between(5, 10)}, now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := cal.Add(Claim{BookingID: "b", Range: between(9, 12)}, now); !errors.Is(err, ErrOverlappingRange) {
		t.Fatalf("overlap err = %v", err)
	}
	if err := cal.Add(Claim{BookingID: "c", Range: between(10, 12)}, now); err != nil {
		t.Fatalf("touching claim rejected: %v", err)
	}
	if len(cal.Claims) != 2 {
		t.Fatalf("claims = %d", len(cal.Claims))
	}
}

func TestCalendarIgnoresExpiredClaims(t *testing.T) {
	cal := NewCalendar("lst")
	expires := march(2)
	if err := cal.Add(Claim{BookingID: "a", Range: between(5, 10), ExpiresAt: &expires}, march(1)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, clash := cal.Conflict(between(6, 7), march(1), ""); !clash {
		t.Fatal("pending claim should occupy before expiry")
	}
	if _, clash := cal.Conflict(between(6, 7), march(3), ""); clash {
		t.Fatal("expired claim still occupies")
	}
	if err := cal.Add(Claim{BookingID: "b", Range: between(6, 7)}, march(3)); err != nil {
		t.Fatalf("claim over expired: %v", err)
	}
}

func TestCalendarReplacesOwnClaim(t *testing.T) {
	cal := NewCalendar("lst")
	if err := cal.Add(Claim{BookingID: "a", Range: between(5, 10)}, march(1)); err != nil {
		t.Fatal(err)
	}
	if err := cal.Add(Claim{BookingID: "a", Range: between(6, 11)}, march(1)); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if len(cal.Claims) != 1 || !cal.Claims[0].Range.Equal(between(6, 11)) {
		t.Fatalf("claims = %+v", cal.Claims)
	}
	if !cal.Remove("a") || cal.Remove("a") {
		t.Fatal("remove should succeed once")
	}
}

func TestOverlappingSkipsDeleted(t *testing.T) {
	blocks := []BlockedDate{
		{EventUID: "x", Range: between(1, 4)},
		{EventUID: "y", Range: between(3, 6), Deleted: true},
		{EventUID: "z", Range: between(4, 8)},
	}
	got := Overlapping(blocks, between(3, 5))
	if len(got) != 2 || got[0].EventUID != "x" || got[1].EventUID != "z" {
		t.Fatalf("overlapping = %+v", got)
	}
}
