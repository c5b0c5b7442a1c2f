package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"staybook/internal/app/dto"
	pricinghandlers "staybook/internal/app/handlers/pricing"
	"staybook/internal/app/services/auth"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/infra/storage/memory"
)

func setup(t *testing.T) (*memory.Store, pricinghandlers.Deps) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	l, err := domainlistings.NewListing("l1", "host-1", domainlistings.Details{
		Title: "Loft", Currency: "USD", NightlyPrice: 100, MaxGuests: 2, CancellationPolicy: domainlistings.PolicyFlexible,
	}, now)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if err := store.Listings.Save(context.Background(), l); err != nil {
		t.Fatalf("save: %v", err)
	}
	return store, pricinghandlers.Deps{UoWFactory: memory.Factory{Store: store}, Now: func() time.Time { return now }}
}

func actor(id string, role auth.Role) context.Context {
	return auth.ContextWithActor(context.Background(), auth.Actor{ID: id, Role: role})
}

func TestUpsertPricingConfigAuthorization(t *testing.T) {
	_, deps := setup(t)
	h := &pricinghandlers.UpsertPricingConfigHandler{Deps: deps}
	cfg := dto.PricingConfig{CleaningFee: &dto.FlatFee{Amount: 25}}

	cases := []struct {
		name    string
		ctx     context.Context
		scope   string
		scopeID string
		err     error
	}{
		{"admin global", actor("ops", auth.RoleAdmin), "global", "", nil},
		{"host global", actor("host-1", auth.RoleHost), "global", "", auth.ErrForbidden},
		{"own host scope", actor("host-1", auth.RoleHost), "host", "host-1", nil},
		{"foreign host scope", actor("host-2", auth.RoleHost), "host", "host-1", auth.ErrForbidden},
		{"own listing", actor("host-1", auth.RoleHost), "listing", "l1", nil},
		{"foreign listing", actor("host-2", auth.RoleHost), "listing", "l1", auth.ErrForbidden},
		{"missing listing", actor("ops", auth.RoleAdmin), "listing", "nope", domainlistings.ErrListingNotFound},
		{"anonymous", context.Background(), "host", "host-1", auth.ErrUnauthorized},
		{"bad scope", actor("ops", auth.RoleAdmin), "region", "", domainpricing.ErrInvalidScope},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Handle(tc.ctx, pricinghandlers.UpsertPricingConfigCommand{Scope: tc.scope, ScopeID: tc.scopeID, Config: cfg})
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestEffectivePricingMergesScopes(t *testing.T) {
	_, deps := setup(t)
	upsert := &pricinghandlers.UpsertPricingConfigHandler{Deps: deps}
	admin := actor("ops", auth.RoleAdmin)

	steps := []pricinghandlers.UpsertPricingConfigCommand{
		{Scope: "global", Config: dto.PricingConfig{
			ServiceFee:  &dto.RateFee{Mode: "percentage", Value: 10},
			Tax:         &dto.RateFee{Mode: "percentage", Value: 5},
			CleaningFee: &dto.FlatFee{Amount: 20},
		}},
		{Scope: "host", ScopeID: "host-1", Config: dto.PricingConfig{ServiceFee: &dto.RateFee{Mode: "fixed", Value: 15}}},
		{Scope: "listing", ScopeID: "l1", Config: dto.PricingConfig{CleaningFee: &dto.FlatFee{IsFree: true}}},
	}
	for _, cmd := range steps {
		if _, err := upsert.Handle(admin, cmd); err != nil {
			t.Fatalf("upsert %s: %v", cmd.Scope, err)
		}
	}

	get := &pricinghandlers.GetEffectivePricingHandler{Deps: deps}
	eff, err := get.Handle(context.Background(), pricinghandlers.GetEffectivePricingQuery{ListingID: "l1"})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.ServiceFee.Mode != "fixed" || eff.ServiceFee.Value != 15 {
		t.Fatalf("service fee = %+v", eff.ServiceFee)
	}
	if eff.Tax.Value != 5 || !eff.CleaningFee.IsFree {
		t.Fatalf("effective = %+v", eff)
	}
	want := map[string]string{"service_fee": "host", "tax": "global", "cleaning_fee": "listing"}
	for category, scope := range want {
		if eff.Sources[category] != scope {
			t.Fatalf("source of %s = %q, want %q", category, eff.Sources[category], scope)
		}
	}
}

func TestGetPricingConfigNotFound(t *testing.T) {
	_, deps := setup(t)
	h := &pricinghandlers.GetPricingConfigHandler{Deps: deps}
	_, err := h.Handle(actor("host-1", auth.RoleHost), pricinghandlers.GetPricingConfigQuery{Scope: "listing", ScopeID: "l1"})
	if !errors.Is(err, domainpricing.ErrConfigNotFound) {
		t.Fatalf("err = %v", err)
	}
}
