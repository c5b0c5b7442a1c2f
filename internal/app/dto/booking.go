package dto

import (
	"time"

	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainpricing "staybook/internal/domain/pricing"
)

type PriceBreakdown struct {
	Currency    string `json:"currency"`
	Nights      int    `json:"nights"`
	BaseNightly int64  `json:"base_nightly"`
	Subtotal    int64  `json:"subtotal"`
	CleaningFee int64  `json:"cleaning_fee"`
	ServiceFee  int64  `json:"service_fee"`
	PetFee      int64  `json:"pet_fee"`
	PetDeposit  int64  `json:"pet_deposit"`
	Taxes       int64  `json:"taxes"`
	Total       int64  `json:"total"`
}

func MapPriceBreakdown(p domainpricing.PriceBreakdown) PriceBreakdown {
	return PriceBreakdown{
		Currency:    p.Total.Currency,
		Nights:      p.Nights,
		BaseNightly: p.BaseNightly.Amount,
		Subtotal:    p.Subtotal.Amount,
		CleaningFee: p.CleaningFee.Amount,
		ServiceFee:  p.ServiceFee.Amount,
		PetFee:      p.PetFee.Amount,
		PetDeposit:  p.PetDeposit.Amount,
		Taxes:       p.Taxes.Amount,
		Total:       p.Total.Amount,
	}
}

type GuestCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

type Pet struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type PetDetails struct {
	HasPets bool  `json:"has_pets"`
	Count   int   `json:"count"`
	Pets    []Pet `json:"pets,omitempty"`
}

type Payment struct {
	IntentID string   `json:"intent_id,omitempty"`
	Status   string   `json:"status"`
	Amount   MoneyDTO `json:"amount"`
	Refunded MoneyDTO `json:"refunded"`
}

type Refund struct {
	Percent    int      `json:"percent"`
	DaysBefore float64  `json:"days_before"`
	Amount     MoneyDTO `json:"amount"`
	PetDeposit MoneyDTO `json:"pet_deposit"`
	Total      MoneyDTO `json:"total"`
}

func MapRefund(r domainbooking.Refund) Refund {
	return Refund{
		Percent:    r.Percent,
		DaysBefore: r.DaysBefore,
		Amount:     MapMoney(r.Amount),
		PetDeposit: MapMoney(r.PetDeposit),
		Total:      MapMoney(r.Total),
	}
}

type Booking struct {
	ID                 string         `json:"id"`
	Reference          string         `json:"reference"`
	ListingID          string         `json:"listing_id"`
	HostID             string         `json:"host_id"`
	GuestID            string         `json:"guest_id"`
	CheckIn            time.Time      `json:"check_in"`
	CheckOut           time.Time      `json:"check_out"`
	Nights             int            `json:"nights"`
	Guests             GuestCounts    `json:"guests"`
	TotalGuests        int            `json:"total_guests"`
	Pets               PetDetails     `json:"pets"`
	Price              PriceBreakdown `json:"price"`
	Status             string         `json:"status"`
	Type               string         `json:"type"`
	Payment            Payment        `json:"payment"`
	CancellationPolicy string         `json:"cancellation_policy"`
	ExpiresAt          *time.Time     `json:"expires_at,omitempty"`
	CancelReason       string         `json:"cancel_reason,omitempty"`
	Refund             *Refund        `json:"refund,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// MapBooking renders a booking as seen at now: a pending booking past its
// expiry is reported as expired even if the sweep has not run yet.
func MapBooking(b *domainbooking.Booking, now time.Time) Booking {
	out := Booking{
		ID:          string(b.ID),
		Reference:   b.Reference,
		ListingID:   string(b.ListingID),
		HostID:      string(b.HostID),
		GuestID:     b.GuestID,
		CheckIn:     b.Range.CheckIn,
		CheckOut:    b.Range.CheckOut,
		Nights:      b.Nights,
		Guests:      GuestCounts{Adults: b.Guests.Adults, Children: b.Guests.Children, Infants: b.Guests.Infants},
		TotalGuests: b.TotalGuests,
		Pets:        PetDetails{HasPets: b.Pets.HasPets, Count: b.Pets.Count},
		Price:       MapPriceBreakdown(b.Price),
		Status:      string(b.Status),
		Type:        string(b.Type),
		Payment: Payment{
			IntentID: b.Payment.IntentID,
			Status:   string(b.Payment.Status),
			Amount:   MapMoney(b.Payment.Amount),
			Refunded: MapMoney(b.Payment.Refunded),
		},
		CancellationPolicy: string(b.CancellationPolicy),
		ExpiresAt:          b.ExpiresAt,
		CancelReason:       b.CancelReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	for _, p := range b.Pets.Pets {
		out.Pets.Pets = append(out.Pets.Pets, Pet{Type: p.Type, Name: p.Name})
	}
	if b.Expired(now) {
		out.Status = string(domainbooking.StatusExpired)
	}
	if b.Refund != nil {
		r := MapRefund(*b.Refund)
		out.Refund = &r
	}
	return out
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type CancelBookingResult struct {
	Booking Booking `json:"booking"`
	Refund  Refund  `json:"refund"`
}

type AvailabilityConflict struct {
	Kind     string    `json:"kind"`
	Ref      string    `json:"ref"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

type Availability struct {
	ListingID string                 `json:"listing_id"`
	CheckIn   time.Time              `json:"check_in"`
	CheckOut  time.Time              `json:"check_out"`
	Available bool                   `json:"available"`
	Conflicts []AvailabilityConflict `json:"conflicts"`
}

func MapBlockedConflict(b domainavailability.BlockedDate) AvailabilityConflict {
	return AvailabilityConflict{Kind: string(b.Origin), Ref: b.EventUID, CheckIn: b.Range.CheckIn, CheckOut: b.Range.CheckOut}
}

type ExpireResult struct {
	Expired int      `json:"expired"`
	IDs     []string `json:"ids"`
}
