package listings

import (
	"time"

	"staybook/internal/domain/shared/daterange"
)

type ListingCreated struct {
	ListingID ListingID `json:"listing_id"`
	HostID    HostID    `json:"host_id"`
	At        time.Time `json:"at"`
}

func (e ListingCreated) EventName() string     { return "listing.created" }
func (e ListingCreated) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreated) OccurredAt() time.Time { return e.At }

type ListingUpdated struct {
	ListingID ListingID `json:"listing_id"`
	At        time.Time `json:"at"`
}

func (e ListingUpdated) EventName() string     { return "listing.updated" }
func (e ListingUpdated) AggregateID() string   { return string(e.ListingID) }
func (e ListingUpdated) OccurredAt() time.Time { return e.At }

// ListingStateChanged covers activation and suspension.
type ListingStateChanged struct {
	ListingID ListingID    `json:"listing_id"`
	State     ListingState `json:"state"`
	Reason    string       `json:"reason,omitempty"`
	At        time.Time    `json:"at"`
}

func (e ListingStateChanged) EventName() string     { return "listing.state_changed" }
func (e ListingStateChanged) AggregateID() string   { return string(e.ListingID) }
func (e ListingStateChanged) OccurredAt() time.Time { return e.At }

// OverrideBlocked is emitted when a booking range is carved out of the
// listing's override periods.
type OverrideBlocked struct {
	ListingID ListingID           `json:"listing_id"`
	Range     daterange.DateRange `json:"range"`
	At        time.Time           `json:"at"`
}

func (e OverrideBlocked) EventName() string     { return "listing.override_blocked" }
func (e OverrideBlocked) AggregateID() string   { return string(e.ListingID) }
func (e OverrideBlocked) OccurredAt() time.Time { return e.At }
