package dto

import (
	"time"

	domainavailability "staybook/internal/domain/availability"
	domaincalendar "staybook/internal/domain/calendar"
)

type ListingCalendar struct {
	ID             string     `json:"id"`
	ListingID      string     `json:"listing_id"`
	URL            string     `json:"url"`
	Name           string     `json:"name,omitempty"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus string     `json:"last_sync_status"`
	LastError      string     `json:"last_error,omitempty"`
	ImportedTotal  int        `json:"imported_total"`
	RemovedTotal   int        `json:"removed_total"`
	CreatedAt      time.Time  `json:"created_at"`
}

func MapListingCalendar(c *domaincalendar.ListingCalendar) ListingCalendar {
	return ListingCalendar{
		ID:             string(c.ID),
		ListingID:      string(c.ListingID),
		URL:            c.URL,
		Name:           c.Name,
		LastSyncAt:     c.LastSyncAt,
		LastSyncStatus: string(c.LastSyncStatus),
		LastError:      c.LastError,
		ImportedTotal:  c.ImportedTotal,
		RemovedTotal:   c.RemovedTotal,
		CreatedAt:      c.CreatedAt,
	}
}

type ListingCalendarCollection struct {
	Items []ListingCalendar `json:"items"`
}

type SyncResult struct {
	CalendarID  string `json:"calendar_id"`
	Imported    int    `json:"imported"`
	Removed     int    `json:"removed"`
	Skipped     int    `json:"skipped"`
	NotModified bool   `json:"not_modified"`
	Error       string `json:"error,omitempty"`
}

func MapSyncOutcome(out domaincalendar.SyncOutcome) SyncResult {
	return SyncResult{
		CalendarID:  string(out.CalendarID),
		Imported:    out.Imported,
		Removed:     out.Removed,
		Skipped:     out.Skipped,
		NotModified: out.NotModified,
	}
}

type SyncAllResult struct {
	ListingID string       `json:"listing_id"`
	Results   []SyncResult `json:"results"`
}

type BlockedDate struct {
	ID         string    `json:"id"`
	Origin     string    `json:"origin"`
	EventUID   string    `json:"event_uid"`
	CalendarID string    `json:"calendar_id,omitempty"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Summary    string    `json:"summary,omitempty"`
}

func MapBlockedDate(b domainavailability.BlockedDate) BlockedDate {
	return BlockedDate{
		ID:         b.ID,
		Origin:     string(b.Origin),
		EventUID:   b.EventUID,
		CalendarID: b.CalendarID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		Summary:    b.Summary,
	}
}

type CalendarExport struct {
	ListingID string `json:"listing_id"`
	Data      []byte `json:"-"`
}

type PublishedFeed struct {
	ListingID string `json:"listing_id"`
	URL       string `json:"url"`
}
