package availability

import (
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

type DatesBlocked struct {
	ListingID listings.ListingID  `json:"listing_id"`
	BookingID string              `json:"booking_id"`
	Range     daterange.DateRange `json:"range"`
	At        time.Time           `json:"at"`
}

func (e DatesBlocked) EventName() string     { return "availability.blocked" }
func (e DatesBlocked) AggregateID() string   { return string(e.ListingID) }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesReleased struct {
	ListingID listings.ListingID  `json:"listing_id"`
	BookingID string              `json:"booking_id"`
	Range     daterange.DateRange `json:"range"`
	At        time.Time           `json:"at"`
}

func (e DatesReleased) EventName() string     { return "availability.released" }
func (e DatesReleased) AggregateID() string   { return string(e.ListingID) }
func (e DatesReleased) OccurredAt() time.Time { return e.At }
