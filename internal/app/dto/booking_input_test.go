package dto

import (
	"errors"
	"testing"
	"time"
)

func TestBookingRequestInputNormalize(t *testing.T) {
	march10 := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	march13 := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		in     BookingRequestInput
		guests GuestCounts
		pets   int
	}{
		{
			name:   "canonical fields",
			in:     BookingRequestInput{ListingID: "l1", CheckIn: "2024-03-10", CheckOut: "2024-03-13", Guests: &GuestCounts{Adults: 2, Infants: 1}},
			guests: GuestCounts{Adults: 2, Infants: 1},
		},
		{
			name:   "legacy aliases",
			in:     BookingRequestInput{ListingAlias: "l1", CheckInDate: "2024-03-10T00:00:00Z", CheckOutAlt: "2024-03-13", Adults: 1, Children: 2, PetDetails: &PetDetailsIn{HasPets: true}},
			guests: GuestCounts{Adults: 1, Children: 2},
			pets:   1,
		},
		{
			name:   "pet list wins",
			in:     BookingRequestInput{ListingID: "l1", CheckInAlt: "2024-03-10", CheckOutDate: "2024-03-13", GuestCount: 3, Pets: []Pet{{Type: "dog"}, {Type: "cat"}}, PetCount: 5},
			guests: GuestCounts{Adults: 3},
			pets:   2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got.ListingID != "l1" || !got.CheckIn.Equal(march10) || !got.CheckOut.Equal(march13) {
				t.Fatalf("got %+v", got)
			}
			if got.Guests != tc.guests {
				t.Fatalf("guests = %+v, want %+v", got.Guests, tc.guests)
			}
			if got.Pets.Count != tc.pets || got.Pets.HasPets != (tc.pets > 0) {
				t.Fatalf("pets = %+v", got.Pets)
			}
		})
	}
}

func TestBookingRequestInputRejects(t *testing.T) {
	for name, in := range map[string]BookingRequestInput{
		"missing listing": {CheckIn: "2024-03-10", CheckOut: "2024-03-12"},
		"bad date":        {ListingID: "l", CheckIn: "10/03/2024", CheckOut: "2024-03-12"},
		"missing date":    {ListingID: "l", CheckIn: "2024-03-10"},
	} {
		if _, err := in.Normalize(); !errors.Is(err, ErrInvalidBookingInput) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}
