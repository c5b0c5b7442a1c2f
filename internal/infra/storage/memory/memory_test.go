package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"staybook/internal/app/middleware"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/shared/daterange"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func nights(from, to int) daterange.DateRange {
	return daterange.DateRange{
		CheckIn:  time.Date(2024, 6, from, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2024, 6, to, 0, 0, 0, 0, time.UTC),
	}
}

func TestConcurrentClaimsAdmitOneWinner(t *testing.T) {
	repo := NewClaimRepository()
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		won    int
		losses int
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Claim(ctx, "lst-1", domainavailability.Claim{BookingID: fmt.Sprintf("bk-%d", i), Range: nights(10, 14)}, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, domainavailability.ErrOverlappingRange):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 || losses != 15 {
		t.Fatalf("won = %d, losses = %d", won, losses)
	}
	cal, _ := repo.Calendar(ctx, "lst-1")
	if len(cal.Claims) != 1 || cal.Version != 1 {
		t.Fatalf("calendar = %+v", cal)
	}
}

func TestExpiredClaimFreesRange(t *testing.T) {
	repo := NewClaimRepository()
	ctx := context.Background()
	expires := now.Add(time.Hour)
	if err := repo.Claim(ctx, "lst-1", domainavailability.Claim{BookingID: "bk-1", Range: nights(10, 12), ExpiresAt: &expires}, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Claim(ctx, "lst-1", domainavailability.Claim{BookingID: "bk-2", Range: nights(11, 13)}, now); !errors.Is(err, domainavailability.ErrOverlappingRange) {
		t.Fatalf("expected overlap while pending, got %v", err)
	}
	if err := repo.Claim(ctx, "lst-1", domainavailability.Claim{BookingID: "bk-2", Range: nights(11, 13)}, expires.Add(time.Second)); err != nil {
		t.Fatalf("expired claim still blocks: %v", err)
	}
	// Back-to-back stays share the checkout day.
	if err := repo.Claim(ctx, "lst-1", domainavailability.Claim{BookingID: "bk-3", Range: nights(13, 15)}, now); err != nil {
		t.Fatalf("adjacent claim rejected: %v", err)
	}
	if err := repo.Drop(ctx, "lst-1", "missing"); !errors.Is(err, domainavailability.ErrClaimNotFound) {
		t.Fatalf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestBlockedDateUpsertAndReconcile(t *testing.T) {
	repo := NewBlockedDateRepository()
	ctx := context.Background()
	block := func(uid string, r daterange.DateRange) domainavailability.BlockedDate {
		return domainavailability.BlockedDate{ListingID: "lst-1", Origin: domainavailability.OriginExternal, EventUID: uid, CalendarID: "cal-1", Range: r, UpdatedAt: now}
	}

	for range 2 {
		if _, err := repo.Upsert(ctx, block("ev-a", nights(1, 3))); err != nil {
			t.Fatal(err)
		}
	}
	created, err := repo.Upsert(ctx, block("ev-b", nights(5, 6)))
	if err != nil || !created {
		t.Fatalf("created = %v, err = %v", created, err)
	}
	active, _ := repo.Active(ctx, "lst-1")
	if len(active) != 2 {
		t.Fatalf("re-import duplicated entries: %+v", active)
	}

	removed, err := repo.SoftDeleteMissing(ctx, "cal-1", []string{"ev-a"}, now)
	if err != nil || removed != 1 {
		t.Fatalf("removed = %d, err = %v", removed, err)
	}
	overlapping, _ := repo.ActiveOverlapping(ctx, "lst-1", nights(4, 7))
	if len(overlapping) != 0 {
		t.Fatalf("soft-deleted block still active: %+v", overlapping)
	}
	all, _ := repo.ByCalendar(ctx, "cal-1")
	if len(all) != 2 {
		t.Fatalf("ByCalendar = %+v", all)
	}

	if _, err := repo.Upsert(ctx, block("", nights(1, 2))); !errors.Is(err, domainavailability.ErrEventUIDRequired) {
		t.Fatalf("expected ErrEventUIDRequired, got %v", err)
	}
}

func TestIdempotencyStoreKeepsFirstRecord(t *testing.T) {
	clock := now
	store := NewIdempotencyStore(time.Hour)
	store.Now = func() time.Time { return clock }
	ctx := context.Background()

	_ = store.Save(ctx, recordAt("k", "first", now))
	_ = store.Save(ctx, recordAt("k", "second", now))
	rec, ok, _ := store.Get(ctx, "k")
	if !ok || string(rec.Payload) != "first" {
		t.Fatalf("rec = %+v ok = %v", rec, ok)
	}

	clock = now.Add(2 * time.Hour)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expired record returned")
	}
	_ = store.Save(ctx, recordAt("k", "third", clock))
	if rec, _, _ := store.Get(ctx, "k"); string(rec.Payload) != "third" {
		t.Fatalf("expired record not replaced: %+v", rec)
	}
}

func recordAt(key, payload string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(payload), OccurredAt: at}
}
