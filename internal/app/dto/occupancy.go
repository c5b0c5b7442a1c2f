package dto

import "time"

// OccupiedRange is one busy interval of a listing as shown to the public.
// Booking ids and guest data are never exposed.
type OccupiedRange struct {
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Source    string    `json:"source"`
	Tentative bool      `json:"tentative,omitempty"`
}

type Occupancy struct {
	ListingID string          `json:"listing_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Ranges    []OccupiedRange `json:"ranges"`
}
