package calendar

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/events"
)

var (
	ErrCalendarNotFound    = errors.New("calendar: not found")
	ErrCalendarExists      = errors.New("calendar: listing already subscribes to this url")
	ErrInvalidURL          = errors.New("calendar: url must be an absolute http(s) or webcal url")
	ErrUpstreamFetchFailed = errors.New("calendar: upstream fetch failed")
	ErrUpstreamParseFailed = errors.New("calendar: upstream parse failed")
	ErrSyncInProgress      = errors.New("calendar: sync already in progress")
	ErrConcurrentUpdate    = errors.New("calendar: concurrent update detected")
)

type CalendarID string

type SyncStatus string

const (
	SyncNever   SyncStatus = "never"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// Validators are the cache validators of the last fetched feed.
type Validators struct {
	ETag         string
	LastModified string
}

// ListingCalendar is one external calendar subscription of a listing.
type ListingCalendar struct {
	ID             CalendarID
	ListingID      listings.ListingID
	URL            string
	Name           string
	Validators     Validators
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus
	LastError      string
	ImportedTotal  int
	RemovedTotal   int
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id CalendarID) (*ListingCalendar, error)
	ByListing(ctx context.Context, listingID listings.ListingID) ([]*ListingCalendar, error)
	// Save keeps (listing, url) unique and returns ErrCalendarExists otherwise.
	Save(ctx context.Context, cal *ListingCalendar) error
	Delete(ctx context.Context, id CalendarID) error
}

// NormalizeURL checks the subscription url and rewrites webcal to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "webcal", "webcals":
		u.Scheme = "https"
	default:
		return "", ErrInvalidURL
	}
	return u.String(), nil
}

func NewListingCalendar(id CalendarID, listingID listings.ListingID, rawURL, name, createdBy string, now time.Time) (*ListingCalendar, error) {
	if strings.TrimSpace(string(listingID)) == "" {
		return nil, listings.ErrListingIDRequired
	}
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &ListingCalendar{
		ID:             id,
		ListingID:      listingID,
		URL:            normalized,
		Name:           strings.TrimSpace(name),
		LastSyncStatus: SyncNever,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// RecordSuccess stores the outcome of a completed import.
func (c *ListingCalendar) RecordSuccess(out SyncOutcome, validators Validators, now time.Time) {
	now = now.UTC()
	c.LastSyncAt = &now
	c.LastSyncStatus = SyncSuccess
	c.LastError = ""
	if !out.NotModified {
		c.Validators = validators
	}
	c.ImportedTotal += out.Imported
	c.RemovedTotal += out.Removed
	c.UpdatedAt = now
	c.Record(CalendarSynced{CalendarID: c.ID, ListingID: c.ListingID, Imported: out.Imported, Removed: out.Removed, NotModified: out.NotModified, At: now})
}

// RecordFailure stores the error of a failed import. Counters keep whatever
// partial progress was made.
func (c *ListingCalendar) RecordFailure(cause error, imported int, now time.Time) {
	now = now.UTC()
	c.LastSyncAt = &now
	c.LastSyncStatus = SyncError
	if cause != nil {
		c.LastError = cause.Error()
	}
	c.ImportedTotal += imported
	c.UpdatedAt = now
	c.Record(CalendarSyncFailed{CalendarID: c.ID, ListingID: c.ListingID, Reason: c.LastError, At: now})
}

// SyncOutcome summarizes one import run.
type SyncOutcome struct {
	CalendarID  CalendarID
	Imported    int
	Removed     int
	Skipped     int
	NotModified bool
}
