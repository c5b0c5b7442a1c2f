package listings_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"staybook/internal/app/dto"
	listinghandlers "staybook/internal/app/handlers/listings"
	"staybook/internal/app/outbox"
	"staybook/internal/app/services/auth"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/infra/storage/memory"
)

var t0 = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

func newDeps() (listinghandlers.Deps, *memory.Store, *memory.Outbox) {
	store := memory.NewStore()
	box := memory.NewOutbox()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return listinghandlers.Deps{
		UoWFactory:  memory.Factory{Store: store},
		Publisher:   outbox.Publisher{Outbox: box, Logger: logger},
		Logger:      logger,
		Now:         func() time.Time { return t0 },
		IDGenerator: func() string { return "lst-1" },
	}, store, box
}

func as(id string, role auth.Role) context.Context {
	return auth.ContextWithActor(context.Background(), auth.Actor{ID: id, Role: role})
}

func input() dto.ListingInput {
	return dto.ListingInput{
		Title:              "Loft",
		Currency:           "EUR",
		NightlyPrice:       90,
		MaxGuests:          2,
		CancellationPolicy: "super-strict",
	}
}

func TestListingLifecycle(t *testing.T) {
	deps, _, box := newDeps()
	host := as("host-1", auth.RoleHost)

	created, err := (&listinghandlers.CreateListingHandler{Deps: deps}).Handle(host, listinghandlers.CreateListingCommand{Payload: input()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.HostID != "host-1" || created.State != string(domainlistings.ListingDraft) || created.CancellationPolicy != string(domainlistings.PolicySuperStrict) {
		t.Fatalf("unexpected listing %+v", created)
	}

	get := &listinghandlers.GetListingHandler{Deps: deps}
	if _, err := get.Handle(as("guest-1", auth.RoleGuest), listinghandlers.GetListingQuery{ListingID: "lst-1"}); !errors.Is(err, domainlistings.ErrListingNotFound) {
		t.Fatalf("draft listing visible to guest: %v", err)
	}
	if _, err := get.Handle(host, listinghandlers.GetListingQuery{ListingID: "lst-1"}); err != nil {
		t.Fatalf("host cannot read own draft: %v", err)
	}

	state := &listinghandlers.ChangeListingStateHandler{Deps: deps}
	activated, err := state.Handle(host, listinghandlers.ChangeListingStateCommand{ListingID: "lst-1", Activate: true})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.State != string(domainlistings.ListingActive) || activated.Version != 2 {
		t.Fatalf("unexpected activated listing %+v", activated)
	}
	if _, err := get.Handle(context.Background(), listinghandlers.GetListingQuery{ListingID: "lst-1"}); err != nil {
		t.Fatalf("active listing hidden from anonymous reader: %v", err)
	}

	if _, err := state.Handle(as("host-2", auth.RoleHost), listinghandlers.ChangeListingStateCommand{ListingID: "lst-1"}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another host, got %v", err)
	}
	suspended, err := state.Handle(as("admin-1", auth.RoleAdmin), listinghandlers.ChangeListingStateCommand{ListingID: "lst-1", Reason: "review"})
	if err != nil || suspended.State != string(domainlistings.ListingSuspended) {
		t.Fatalf("admin suspend: %+v %v", suspended, err)
	}

	names := box.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 events, got %v", names)
	}
}

func TestCreateOnBehalfRequiresAdmin(t *testing.T) {
	deps, _, _ := newDeps()
	h := &listinghandlers.CreateListingHandler{Deps: deps}

	if _, err := h.Handle(as("host-1", auth.RoleHost), listinghandlers.CreateListingCommand{HostID: "host-2", Payload: input()}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	out, err := h.Handle(as("admin-1", auth.RoleAdmin), listinghandlers.CreateListingCommand{HostID: "host-2", Payload: input()})
	if err != nil || out.HostID != "host-2" {
		t.Fatalf("admin create: %+v %v", out, err)
	}

	bad := input()
	bad.CancellationPolicy = "lenient"
	if _, err := h.Handle(as("host-1", auth.RoleHost), listinghandlers.CreateListingCommand{Payload: bad}); !errors.Is(err, domainlistings.ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestReplaceOverrides(t *testing.T) {
	deps, store, _ := newDeps()
	host := as("host-1", auth.RoleHost)
	if _, err := (&listinghandlers.CreateListingHandler{Deps: deps}).Handle(host, listinghandlers.CreateListingCommand{Payload: input()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := &listinghandlers.ReplaceOverridesHandler{Deps: deps}
	price := int64(140)

	out, err := h.Handle(host, listinghandlers.ReplaceOverridesCommand{ListingID: "lst-1", Periods: []listinghandlers.OverridePeriodInput{
		{CheckIn: "2024-07-10", CheckOut: "2024-07-12", Available: true, SpecialPrice: &price},
		{CheckIn: "2024-06-01", CheckOut: "2024-06-03"},
	}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(out.Overrides) != 2 || !out.Overrides[0].CheckIn.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("overrides not sorted: %+v", out.Overrides)
	}

	_, err = h.Handle(host, listinghandlers.ReplaceOverridesCommand{ListingID: "lst-1", Periods: []listinghandlers.OverridePeriodInput{
		{CheckIn: "2024-06-01", CheckOut: "2024-06-05"},
		{CheckIn: "2024-06-04", CheckOut: "2024-06-08"},
	}})
	if !errors.Is(err, domainlistings.ErrOverridesOverlap) {
		t.Fatalf("expected ErrOverridesOverlap, got %v", err)
	}
	stored, _ := store.Listings.ByID(context.Background(), "lst-1")
	if len(stored.Overrides) != 2 {
		t.Fatalf("rejected replace changed overrides: %+v", stored.Overrides)
	}
}

func TestListHostListings(t *testing.T) {
	deps, _, _ := newDeps()
	ids := []string{"lst-a", "lst-b"}
	deps.IDGenerator = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	create := &listinghandlers.CreateListingHandler{Deps: deps}
	for range 2 {
		if _, err := create.Handle(as("host-1", auth.RoleHost), listinghandlers.CreateListingCommand{Payload: input()}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	h := &listinghandlers.ListHostListingsHandler{Deps: deps}
	out, err := h.Handle(as("host-1", auth.RoleHost), listinghandlers.ListHostListingsQuery{})
	if err != nil || len(out.Items) != 2 {
		t.Fatalf("list: %+v %v", out, err)
	}
	if _, err := h.Handle(as("host-2", auth.RoleHost), listinghandlers.ListHostListingsQuery{HostID: "host-1"}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCurrencyDefaults(t *testing.T) {
	deps, _, _ := newDeps()
	deps.DefaultCurrency = "GBP"
	host := as("host-1", auth.RoleHost)

	in := input()
	in.Currency = ""
	created, err := (&listinghandlers.CreateListingHandler{Deps: deps}).Handle(host, listinghandlers.CreateListingCommand{Payload: in})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.NightlyPrice.Currency != "GBP" {
		t.Fatalf("expected default currency GBP, got %+v", created.NightlyPrice)
	}

	in.Title = "Loft with view"
	updated, err := (&listinghandlers.UpdateListingHandler{Deps: deps}).Handle(host, listinghandlers.UpdateListingCommand{ListingID: "lst-1", Payload: in})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Loft with view" || updated.NightlyPrice.Currency != "GBP" {
		t.Fatalf("update lost currency: %+v", updated)
	}
}
