package dto

import (
	"time"

	domainpricing "staybook/internal/domain/pricing"
)

type RateFee struct {
	Mode   string  `json:"mode" validate:"omitempty,oneof=percentage fixed"`
	Value  float64 `json:"value" validate:"gte=0"`
	IsFree bool    `json:"is_free"`
}

type FlatFee struct {
	Amount int64 `json:"amount" validate:"gte=0"`
	IsFree bool  `json:"is_free"`
}

// PricingConfig is both the request and response shape of a scoped fee
// schedule. Absent categories inherit from the less specific scope.
type PricingConfig struct {
	Scope            string     `json:"scope"`
	ScopeID          string     `json:"scope_id,omitempty"`
	Enabled          *bool      `json:"enabled,omitempty"`
	ServiceFee       *RateFee   `json:"service_fee,omitempty"`
	Tax              *RateFee   `json:"tax,omitempty"`
	CleaningFee      *FlatFee   `json:"cleaning_fee,omitempty"`
	PetFeePerNight   *FlatFee   `json:"pet_fee_per_night,omitempty"`
	PetDepositPerPet *FlatFee   `json:"pet_deposit_per_pet,omitempty"`
	UpdatedBy        string     `json:"updated_by,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func MapPricingConfig(cfg *domainpricing.Config) PricingConfig {
	out := PricingConfig{
		Scope:     string(cfg.Scope),
		ScopeID:   cfg.ScopeID,
		Enabled:   cfg.Enabled,
		UpdatedBy: cfg.UpdatedBy,
	}
	if !cfg.UpdatedAt.IsZero() {
		at := cfg.UpdatedAt
		out.UpdatedAt = &at
	}
	out.ServiceFee = mapRateFee(cfg.ServiceFee)
	out.Tax = mapRateFee(cfg.Tax)
	out.CleaningFee = mapFlatFee(cfg.CleaningFee)
	out.PetFeePerNight = mapFlatFee(cfg.PetFeePerNight)
	out.PetDepositPerPet = mapFlatFee(cfg.PetDepositPerPet)
	return out
}

// ToDomain converts the payload into a config for scope/scopeID.
func (p PricingConfig) ToDomain(scope domainpricing.Scope, scopeID string) *domainpricing.Config {
	cfg := &domainpricing.Config{
		Scope:   scope,
		ScopeID: scopeID,
		Enabled: p.Enabled,
	}
	if p.ServiceFee != nil {
		cfg.ServiceFee = &domainpricing.RateFee{Mode: domainpricing.Mode(p.ServiceFee.Mode), Value: p.ServiceFee.Value, IsFree: p.ServiceFee.IsFree}
	}
	if p.Tax != nil {
		cfg.Tax = &domainpricing.RateFee{Mode: domainpricing.Mode(p.Tax.Mode), Value: p.Tax.Value, IsFree: p.Tax.IsFree}
	}
	cfg.CleaningFee = toFlatFee(p.CleaningFee)
	cfg.PetFeePerNight = toFlatFee(p.PetFeePerNight)
	cfg.PetDepositPerPet = toFlatFee(p.PetDepositPerPet)
	return cfg
}

type EffectivePricing struct {
	ListingID        string            `json:"listing_id"`
	Enabled          bool              `json:"enabled"`
	ServiceFee       RateFee           `json:"service_fee"`
	Tax              RateFee           `json:"tax"`
	CleaningFee      FlatFee           `json:"cleaning_fee"`
	PetFeePerNight   FlatFee           `json:"pet_fee_per_night"`
	PetDepositPerPet FlatFee           `json:"pet_deposit_per_pet"`
	Sources          map[string]string `json:"sources"`
}

func MapEffectivePricing(listingID string, eff domainpricing.Effective) EffectivePricing {
	out := EffectivePricing{
		ListingID:        listingID,
		Enabled:          eff.Enabled,
		ServiceFee:       *mapRateFee(&eff.ServiceFee),
		Tax:              *mapRateFee(&eff.Tax),
		CleaningFee:      *mapFlatFee(&eff.CleaningFee),
		PetFeePerNight:   *mapFlatFee(&eff.PetFeePerNight),
		PetDepositPerPet: *mapFlatFee(&eff.PetDepositPerPet),
		Sources:          make(map[string]string, len(eff.Sources)),
	}
	for category, scope := range eff.Sources {
		out.Sources[string(category)] = string(scope)
	}
	return out
}

type PriceQuote struct {
	ListingID string         `json:"listing_id"`
	CheckIn   time.Time      `json:"check_in"`
	CheckOut  time.Time      `json:"check_out"`
	Guests    int            `json:"guests"`
	Pets      int            `json:"pets"`
	Breakdown PriceBreakdown `json:"breakdown"`
}

func mapRateFee(f *domainpricing.RateFee) *RateFee {
	if f == nil {
		return nil
	}
	return &RateFee{Mode: string(f.Mode), Value: f.Value, IsFree: f.IsFree}
}

func mapFlatFee(f *domainpricing.FlatFee) *FlatFee {
	if f == nil {
		return nil
	}
	return &FlatFee{Amount: f.Amount, IsFree: f.IsFree}
}

func toFlatFee(f *FlatFee) *domainpricing.FlatFee {
	if f == nil {
		return nil
	}
	return &domainpricing.FlatFee{Amount: f.Amount, IsFree: f.IsFree}
}
