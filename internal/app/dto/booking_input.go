package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidBookingInput = errors.New("booking input: invalid")

// BookingRequestInput is the wire shape of a booking request. Several fields
// have legacy aliases; Normalize folds them into one canonical request.
type BookingRequestInput struct {
	ListingID     string        `json:"listing_id"`
	ListingAlias  string        `json:"listingId"`
	CheckIn       string        `json:"check_in"`
	CheckInAlt    string        `json:"checkIn"`
	CheckInDate   string        `json:"checkInDate"`
	CheckOut      string        `json:"check_out"`
	CheckOutAlt   string        `json:"checkOut"`
	CheckOutDate  string        `json:"checkOutDate"`
	Guests        *GuestCounts  `json:"guests"`
	Adults        int           `json:"adults"`
	Children      int           `json:"children"`
	Infants       int           `json:"infants"`
	GuestCount    int           `json:"guest_count"`
	Pets          []Pet         `json:"pets"`
	PetDetails    *PetDetailsIn `json:"petDetails"`
	PetCount      int           `json:"pet_count"`
	PaymentMethod string        `json:"payment_method"`
}

type PetDetailsIn struct {
	HasPets bool  `json:"hasPets"`
	Count   int   `json:"count"`
	Pets    []Pet `json:"pets"`
}

// BookingRequest is the canonical request the booking engine sees.
type BookingRequest struct {
	ListingID     string
	CheckIn       time.Time
	CheckOut      time.Time
	Guests        GuestCounts
	Pets          PetDetails
	PaymentMethod string
}

func (in BookingRequestInput) Normalize() (BookingRequest, error) {
	out := BookingRequest{
		ListingID:     firstNonEmpty(in.ListingID, in.ListingAlias),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
	}
	var err error
	if out.CheckIn, err = ParseDate(firstNonEmpty(in.CheckIn, in.CheckInAlt, in.CheckInDate)); err != nil {
		return BookingRequest{}, fmt.Errorf("%w: check_in: %v", ErrInvalidBookingInput, err)
	}
	if out.CheckOut, err = ParseDate(firstNonEmpty(in.CheckOut, in.CheckOutAlt, in.CheckOutDate)); err != nil {
		return BookingRequest{}, fmt.Errorf("%w: check_out: %v", ErrInvalidBookingInput, err)
	}

	switch {
	case in.Guests != nil:
		out.Guests = *in.Guests
	case in.Adults > 0 || in.Children > 0 || in.Infants > 0:
		out.Guests = GuestCounts{Adults: in.Adults, Children: in.Children, Infants: in.Infants}
	default:
		out.Guests = GuestCounts{Adults: in.GuestCount}
	}

	switch {
	case len(in.Pets) > 0:
		out.Pets = PetDetails{HasPets: true, Count: len(in.Pets), Pets: in.Pets}
	case in.PetDetails != nil:
		count := in.PetDetails.Count
		if len(in.PetDetails.Pets) > count {
			count = len(in.PetDetails.Pets)
		}
		if in.PetDetails.HasPets && count == 0 {
			count = 1
		}
		out.Pets = PetDetails{HasPets: count > 0, Count: count, Pets: in.PetDetails.Pets}
	case in.PetCount > 0:
		out.Pets = PetDetails{HasPets: true, Count: in.PetCount}
	}
	if strings.TrimSpace(out.ListingID) == "" {
		return BookingRequest{}, fmt.Errorf("%w: listing_id is required", ErrInvalidBookingInput)
	}
	return out, nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC
// midnight).
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported date %q", raw)
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
