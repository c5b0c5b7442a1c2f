package pricing

import (
	"context"
	"errors"

	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
)

// Resolver loads the three pricing scopes of a listing and merges them.
type Resolver struct {
	Configs domainpricing.ConfigRepository
}

// Layers returns the global, host and listing configs; missing ones are nil.
func (r Resolver) Layers(ctx context.Context, listing *domainlistings.Listing) ([]*domainpricing.Config, error) {
	scopes := []struct {
		scope domainpricing.Scope
		id    string
	}{
		{domainpricing.ScopeGlobal, ""},
		{domainpricing.ScopeHost, string(listing.Host)},
		{domainpricing.ScopeListing, string(listing.ID)},
	}
	layers := make([]*domainpricing.Config, 0, len(scopes))
	for _, s := range scopes {
		cfg, err := r.Configs.Get(ctx, s.scope, s.id)
		if err != nil && !errors.Is(err, domainpricing.ErrConfigNotFound) {
			return nil, err
		}
		layers = append(layers, cfg)
	}
	return layers, nil
}

func (r Resolver) Resolve(ctx context.Context, listing *domainlistings.Listing) (domainpricing.Effective, error) {
	layers, err := r.Layers(ctx, listing)
	if err != nil {
		return domainpricing.Effective{}, err
	}
	return domainpricing.Merge(layers...), nil
}

// Quote resolves the effective config and prices the stay.
func (r Resolver) Quote(ctx context.Context, listing *domainlistings.Listing, dr daterange.DateRange, guests, pets int) (domainpricing.PriceBreakdown, error) {
	eff, err := r.Resolve(ctx, listing)
	if err != nil {
		return domainpricing.PriceBreakdown{}, err
	}
	return domainpricing.Calculate(domainpricing.QuoteInput{
		Listing: listing,
		Range:   dr,
		Guests:  guests,
		Pets:    pets,
		Config:  eff,
	})
}
