package calendar

import (
	"time"

	"staybook/internal/domain/listings"
)

type CalendarSynced struct {
	CalendarID  CalendarID         `json:"calendar_id"`
	ListingID   listings.ListingID `json:"listing_id"`
	Imported    int                `json:"imported"`
	Removed     int                `json:"removed"`
	NotModified bool               `json:"not_modified,omitempty"`
	At          time.Time          `json:"at"`
}

func (e CalendarSynced) EventName() string     { return "calendar.synced" }
func (e CalendarSynced) AggregateID() string   { return string(e.CalendarID) }
func (e CalendarSynced) OccurredAt() time.Time { return e.At }

type CalendarSyncFailed struct {
	CalendarID CalendarID         `json:"calendar_id"`
	ListingID  listings.ListingID `json:"listing_id"`
	Reason     string             `json:"reason,omitempty"`
	At         time.Time          `json:"at"`
}

func (e CalendarSyncFailed) EventName() string     { return "calendar.sync_failed" }
func (e CalendarSyncFailed) AggregateID() string   { return string(e.CalendarID) }
func (e CalendarSyncFailed) OccurredAt() time.Time { return e.At }
