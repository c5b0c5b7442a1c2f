package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"https://example.com/feed.ics", "https://example.com/feed.ics", nil},
		{" webcal://example.com/a.ics ", "https://example.com/a.ics", nil},
		{"ftp://example.com/a.ics", "", ErrInvalidURL},
		{"/relative.ics", "", ErrInvalidURL},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestRecordOutcome(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cal, err := NewListingCalendar("cal-1", "lst-1", "https://example.com/a.ics", "Airbnb", "host-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if cal.LastSyncStatus != SyncNever {
		t.Fatalf("status = %s", cal.LastSyncStatus)
	}

	cal.RecordSuccess(SyncOutcome{Imported: 3, Removed: 1}, Validators{ETag: `"v1"`}, now)
	cal.RecordFailure(ErrUpstreamFetchFailed, 2, now.Add(time.Hour))
	if cal.LastSyncStatus != SyncError || cal.LastError == "" {
		t.Fatalf("status %s error %q", cal.LastSyncStatus, cal.LastError)
	}
	cal.RecordSuccess(SyncOutcome{NotModified: true}, Validators{}, now.Add(2*time.Hour))
	if cal.Validators.ETag != `"v1"` {
		t.Fatalf("validators dropped on 304: %+v", cal.Validators)
	}
	if cal.ImportedTotal != 5 || cal.RemovedTotal != 1 || cal.LastError != "" {
		t.Fatalf("totals %d/%d err %q", cal.ImportedTotal, cal.RemovedTotal, cal.LastError)
	}
	if got := len(cal.PendingEvents()); got != 3 {
		t.Fatalf("events = %d", got)
	}
}

func TestStableUID(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := FeedEvent{Summary: "Blocked", Start: start, End: start.AddDate(0, 0, 2)}
	b := a
	if a.StableUID() != b.StableUID() {
		t.Fatal("synthesized uid is not stable")
	}
	b.End = b.End.AddDate(0, 0, 1)
	if a.StableUID() == b.StableUID() {
		t.Fatal("different intervals share a uid")
	}
	if (FeedEvent{UID: " abc "}).StableUID() != "abc" {
		t.Fatal("explicit uid not kept")
	}
	if (FeedEvent{Start: start}).Complete() {
		t.Fatal("event without end counted as complete")
	}
}
