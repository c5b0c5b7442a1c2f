package pricing

import (
	"errors"
	"fmt"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidDateRange  = fmt.Errorf("pricing: %w", daterange.ErrInvalidRange)
	ErrListingRequired   = errors.New("pricing: listing is required")
	ErrTotalMismatch     = errors.New("pricing: total does not equal the sum of components")
	ErrNegativeComponent = errors.New("pricing: components cannot be negative")
)

// PriceBreakdown is the cost snapshot stored on a booking. It is computed once
// at creation and never recomputed.
type PriceBreakdown struct {
	Nights      int
	BaseNightly money.Money
	Subtotal    money.Money
	CleaningFee money.Money
	ServiceFee  money.Money
	PetFee      money.Money
	PetDeposit  money.Money
	Taxes       money.Money
	Total       money.Money
}

func (p PriceBreakdown) components() []money.Money {
	return []money.Money{p.Subtotal, p.CleaningFee, p.ServiceFee, p.PetFee, p.PetDeposit, p.Taxes}
}

// Verify checks that total is exactly the sum of the line items.
func (p PriceBreakdown) Verify() error {
	for _, c := range p.components() {
		if c.Amount < 0 {
			return ErrNegativeComponent
		}
	}
	sum, err := money.Sum(p.components()...)
	if err != nil {
		return err
	}
	if sum != p.Total {
		return ErrTotalMismatch
	}
	return nil
}

// Refundable is the total minus the pet deposit, i.e. the part subject to the
// cancellation policy.
func (p PriceBreakdown) Refundable() money.Money {
	out, err := p.Total.Sub(p.PetDeposit)
	if err != nil {
		return p.Total
	}
	return out
}

type QuoteInput struct {
	Listing *listings.Listing
	Range   daterange.DateRange
	Guests  int
	Pets    int
	Config  Effective
}

// Calculate computes a deterministic breakdown. Every fee is rounded to whole
// units as it is computed; the pet deposit is refundable and stays out of the
// tax base.
func Calculate(in QuoteInput) (PriceBreakdown, error) {
	if in.Listing == nil {
		return PriceBreakdown{}, ErrListingRequired
	}
	if err := in.Range.Validate(); err != nil {
		return PriceBreakdown{}, ErrInvalidDateRange
	}
	l := in.Listing
	currency := l.Currency
	cfg := in.Config
	if cfg.Sources == nil {
		cfg = Defaults()
	}

	nights := in.Range.Nights()
	if nights < 1 {
		return PriceBreakdown{}, ErrInvalidDateRange
	}

	base := money.Money{Amount: l.NightlyPrice, Currency: currency}
	subtotal := base.Multiply(int64(nights))
	if l.HasSpecialPricing() {
		subtotal = money.Zero(currency)
		for i := 0; i < nights; i++ {
			subtotal.Amount += l.NightlyPriceOn(in.Range.Night(i)).Amount
		}
	}

	cleaning := money.Money{Amount: cfg.CleaningFee.Value(), Currency: currency}
	service := cfg.ServiceFee.Apply(subtotal)

	petFee := money.Zero(currency)
	petDeposit := money.Zero(currency)
	if in.Pets > 0 && l.PetPolicy.Allowed {
		perNight := l.PetPolicy.FeePerNight
		if cfg.isSet(CategoryPetFee) {
			perNight = cfg.PetFeePerNight.Value()
		}
		perPet := l.PetPolicy.DepositPerPet
		if cfg.isSet(CategoryPetDeposit) {
			perPet = cfg.PetDepositPerPet.Value()
		}
		petFee.Amount = perNight * int64(in.Pets) * int64(nights)
		petDeposit.Amount = perPet * int64(in.Pets)
	}

	taxBase, err := money.Sum(subtotal, cleaning, service, petFee)
	if err != nil {
		return PriceBreakdown{}, err
	}
	taxes := cfg.Tax.Apply(taxBase)

	out := PriceBreakdown{
		Nights:      nights,
		BaseNightly: base,
		Subtotal:    subtotal,
		CleaningFee: cleaning,
		ServiceFee:  service,
		PetFee:      petFee,
		PetDeposit:  petDeposit,
		Taxes:       taxes,
	}
	total, err := money.Sum(out.components()...)
	if err != nil {
		return PriceBreakdown{}, err
	}
	out.Total = total
	return out, nil
}
