package dto

import (
	"strings"
	"time"

	domainlistings "staybook/internal/domain/listings"
)

type Address struct {
	Line1   string `json:"line1"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type PetPolicy struct {
	Allowed       bool     `json:"allowed"`
	AllowedTypes  []string `json:"allowed_types,omitempty"`
	MaxPets       int      `json:"max_pets"`
	FeePerNight   int64    `json:"fee_per_night" validate:"gte=0"`
	DepositPerPet int64    `json:"deposit_per_pet" validate:"gte=0"`
}

type OverridePeriod struct {
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	Available    bool      `json:"available"`
	SpecialPrice *int64    `json:"special_price,omitempty"`
}

// ListingInput is the create/update payload of a listing.
type ListingInput struct {
	Title              string    `json:"title" validate:"required"`
	Description        string    `json:"description"`
	Address            Address   `json:"address"`
	Currency           string    `json:"currency" validate:"omitempty,len=3"`
	NightlyPrice       int64     `json:"nightly_price" validate:"gt=0"`
	MinGuests          int       `json:"min_guests" validate:"gte=0"`
	MaxGuests          int       `json:"max_guests" validate:"gte=1"`
	PetPolicy          PetPolicy `json:"pet_policy"`
	CancellationPolicy string    `json:"cancellation_policy"`
	InstantBook        bool      `json:"instant_book"`
}

// ToDetails converts the payload; fallbackCurrency applies when none was sent.
func (in ListingInput) ToDetails(fallbackCurrency string) (domainlistings.Details, error) {
	policy, err := domainlistings.ParseCancellationPolicy(in.CancellationPolicy)
	if err != nil {
		return domainlistings.Details{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = fallbackCurrency
	}
	return domainlistings.Details{
		Title:        in.Title,
		Description:  in.Description,
		Address:      domainlistings.Address{Line1: in.Address.Line1, City: in.Address.City, Country: in.Address.Country},
		Currency:     currency,
		NightlyPrice: in.NightlyPrice,
		MinGuests:    in.MinGuests,
		MaxGuests:    in.MaxGuests,
		PetPolicy: domainlistings.PetPolicy{
			Allowed:       in.PetPolicy.Allowed,
			AllowedTypes:  in.PetPolicy.AllowedTypes,
			MaxPets:       in.PetPolicy.MaxPets,
			FeePerNight:   in.PetPolicy.FeePerNight,
			DepositPerPet: in.PetPolicy.DepositPerPet,
		},
		CancellationPolicy: policy,
		InstantBook:        in.InstantBook,
	}, nil
}

type Listing struct {
	ID                 string           `json:"id"`
	HostID             string           `json:"host_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Address            Address          `json:"address"`
	NightlyPrice       MoneyDTO         `json:"nightly_price"`
	MinGuests          int              `json:"min_guests"`
	MaxGuests          int              `json:"max_guests"`
	PetPolicy          PetPolicy        `json:"pet_policy"`
	CancellationPolicy string           `json:"cancellation_policy"`
	InstantBook        bool             `json:"instant_book"`
	Overrides          []OverridePeriod `json:"overrides"`
	State              string           `json:"state"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func MapListing(l *domainlistings.Listing) Listing {
	out := Listing{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		Description: l.Description,
		Address:     Address{Line1: l.Address.Line1, City: l.Address.City, Country: l.Address.Country},
		NightlyPrice: MoneyDTO{
			Amount:   l.NightlyPrice,
			Currency: l.Currency,
		},
		MinGuests: l.MinGuests,
		MaxGuests: l.MaxGuests,
		PetPolicy: PetPolicy{
			Allowed:       l.PetPolicy.Allowed,
			AllowedTypes:  l.PetPolicy.AllowedTypes,
			MaxPets:       l.PetPolicy.MaxPets,
			FeePerNight:   l.PetPolicy.FeePerNight,
			DepositPerPet: l.PetPolicy.DepositPerPet,
		},
		CancellationPolicy: string(l.CancellationPolicy),
		InstantBook:        l.InstantBook,
		Overrides:          make([]OverridePeriod, 0, len(l.Overrides)),
		State:              string(l.State),
		Version:            l.Version,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
	for _, p := range l.Overrides {
		out.Overrides = append(out.Overrides, OverridePeriod{
			CheckIn:      p.Range.CheckIn,
			CheckOut:     p.Range.CheckOut,
			Available:    p.Available,
			SpecialPrice: p.SpecialPrice,
		})
	}
	return out
}

type ListingCollection struct {
	Items []Listing `json:"items"`
}
