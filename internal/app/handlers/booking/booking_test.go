package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

var (
	t0       = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	checkIn  = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakePayments struct {
	mu         sync.Mutex
	confirmErr error
	refundErr  error
	refunds    []money.Money
}

func (p *fakePayments) CreateIntent(ctx context.Context, bookingID string, amount money.Money) (policies.PaymentIntent, error) {
	return policies.PaymentIntent{ID: "pi_" + bookingID, Status: "requires_confirmation", Amount: amount}, nil
}

func (p *fakePayments) Confirm(ctx context.Context, intentID string) (policies.PaymentIntent, error) {
	if p.confirmErr != nil {
		return policies.PaymentIntent{}, p.confirmErr
	}
	return policies.PaymentIntent{ID: intentID, Status: "succeeded"}, nil
}

func (p *fakePayments) Refund(ctx context.Context, intentID string, amount money.Money) (string, error) {
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, amount)
	return "re_" + intentID, nil
}

type fixture struct {
	store    *memory.Store
	outbox   *memory.Outbox
	clock    *clock
	payments *fakePayments
	deps     bookinghandlers.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		outbox:   memory.NewOutbox(),
		clock:    &clock{now: t0},
		payments: &fakePayments{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.deps = bookinghandlers.Deps{
		UoWFactory: memory.Factory{Store: f.store},
		Publisher:  outbox.Publisher{Outbox: f.outbox, Logger: logger},
		Payments:   f.payments,
		Logger:     logger,
		Now:        f.clock.Now,
	}
	enabled := true
	err := f.store.PricingConfigs.Upsert(context.Background(), &domainpricing.Config{
		Scope:       domainpricing.ScopeGlobal,
		Enabled:     &enabled,
		ServiceFee:  &domainpricing.RateFee{Mode: domainpricing.ModePercentage, Value: 10},
		Tax:         &domainpricing.RateFee{Mode: domainpricing.ModePercentage, Value: 5},
		CleaningFee: &domainpricing.FlatFee{Amount: 20},
	})
	if err != nil {
		t.Fatalf("seed pricing: %v", err)
	}
	return f
}

func (f *fixture) listing(t *testing.T, id string, instant bool, pets domainlistings.PetPolicy) *domainlistings.Listing {
	t.Helper()
	l, err := domainlistings.NewListing(domainlistings.ListingID(id), "host-1", domainlistings.Details{
		Title:              "Cabin " + id,
		Currency:           "USD",
		NightlyPrice:       100,
		MinGuests:          1,
		MaxGuests:          4,
		PetPolicy:          pets,
		CancellationPolicy: domainlistings.PolicyModerate,
		InstantBook:        instant,
	}, t0)
	if err != nil {
		t.Fatalf("new listing: %v", err)
	}
	if err := l.Activate(t0); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := f.store.Listings.Save(context.Background(), l); err != nil {
		t.Fatalf("save listing: %v", err)
	}
	return l
}

func as(id string, role auth.Role) context.Context {
	return auth.ContextWithActor(context.Background(), auth.Actor{ID: id, Role: role})
}

func (f *fixture) create(ctx context.Context, listingID string, in, out time.Time, pets int) (*dto.Booking, error) {
	h := &bookinghandlers.CreateBookingHandler{Deps: f.deps}
	req := dto.BookingRequest{
		ListingID: listingID,
		CheckIn:   in,
		CheckOut:  out,
		Guests:    dto.GuestCounts{Adults: 2},
		Pets:      dto.PetDetails{HasPets: pets > 0, Count: pets},
	}
	return h.Handle(ctx, bookinghandlers.NewCreateBookingCommand(req, ""))
}

func (f *fixture) setStatus(ctx context.Context, id, status string) (*dto.Booking, error) {
	h := &bookinghandlers.UpdateBookingStatusHandler{Deps: f.deps}
	return h.Handle(ctx, bookinghandlers.UpdateBookingStatusCommand{BookingID: id, Status: status})
}

func containsAll(t *testing.T, got []string, want ...string) {
	t.Helper()
	seen := make(map[string]bool, len(got))
	for _, name := range got {
		seen[name] = true
	}
	for _, name := range want {
		if !seen[name] {
			t.Fatalf("events %v missing %s", got, name)
		}
	}
}

func TestCreateInstantBookingConfirmsAndBlocks(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})

	b, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != string(domainbooking.StatusConfirmed) || b.Type != string(domainbooking.TypeInstant) {
		t.Fatalf("status/type = %s/%s", b.Status, b.Type)
	}
	if b.Price.Subtotal != 300 || b.Price.ServiceFee != 30 || b.Price.Taxes != 18 || b.Price.Total != 368 {
		t.Fatalf("price = %+v", b.Price)
	}
	if b.Nights != 3 || b.TotalGuests != 2 || b.ExpiresAt != nil {
		t.Fatalf("derived fields = %d nights, %d guests, expires %v", b.Nights, b.TotalGuests, b.ExpiresAt)
	}
	if b.Payment.Status != string(domainbooking.PaymentSucceeded) {
		t.Fatalf("payment status = %s", b.Payment.Status)
	}

	ctx := context.Background()
	listing, _ := f.store.Listings.ByID(ctx, "l1")
	if len(listing.Overrides) != 1 || listing.Overrides[0].Available || !listing.Overrides[0].Range.CheckIn.Equal(checkIn) {
		t.Fatalf("overrides = %+v", listing.Overrides)
	}
	blocks, _ := f.store.BlockedDates.Active(ctx, "l1")
	if len(blocks) != 1 || blocks[0].EventUID != "booking-"+b.ID {
		t.Fatalf("blocked dates = %+v", blocks)
	}
	containsAll(t, f.outbox.Names(), "booking.requested", "booking.confirmed", "availability.blocked")
}

func TestCreateRequestBookingStaysPending(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{})

	b, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != string(domainbooking.StatusPending) {
		t.Fatalf("status = %s", b.Status)
	}
	if b.ExpiresAt == nil || !b.ExpiresAt.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("expires_at = %v", b.ExpiresAt)
	}
	if b.Payment.Status != string(domainbooking.PaymentRequiresConfirmation) || b.Payment.IntentID == "" {
		t.Fatalf("payment = %+v", b.Payment)
	}
	listing, _ := f.store.Listings.ByID(context.Background(), "l1")
	if len(listing.Overrides) != 0 {
		t.Fatalf("pending booking must not split overrides: %+v", listing.Overrides)
	}
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	if _, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkIn.AddDate(0, 0, 1), checkOut.AddDate(0, 0, 2), 0)
	if !errors.Is(err, domainbooking.ErrDateConflict) {
		t.Fatalf("overlap err = %v", err)
	}
	if _, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkOut, checkOut.AddDate(0, 0, 2), 0); err != nil {
		t.Fatalf("back-to-back booking: %v", err)
	}
}

func TestConcurrentOverlappingBookingsOneWins(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.create(as("guest-"+string(rune('a'+i)), auth.RoleGuest), "l1", checkIn, checkOut, 0)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domainbooking.ErrDateConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d bookings succeeded, want 1", won)
	}
}

func TestCreateBookingPetViolationLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{Allowed: false})

	_, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 1)
	if !errors.Is(err, domainbooking.ErrPetPolicyViolation) {
		t.Fatalf("err = %v", err)
	}
	ctx := context.Background()
	if got, _ := f.store.Bookings.ListByGuest(ctx, "guest-1"); len(got) != 0 {
		t.Fatalf("bookings created: %d", len(got))
	}
	if blocks, _ := f.store.BlockedDates.Active(ctx, "l1"); len(blocks) != 0 {
		t.Fatalf("blocked dates created: %d", len(blocks))
	}
	if cal, _ := f.store.Claims.Calendar(ctx, "l1"); len(cal.Claims) != 0 {
		t.Fatalf("claims created: %d", len(cal.Claims))
	}
}

func TestPaymentFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	f.payments.confirmErr = policies.ErrPaymentDeclined

	_, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if !errors.Is(err, policies.ErrPaymentDeclined) {
		t.Fatalf("err = %v", err)
	}
	f.payments.confirmErr = nil
	if _, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkIn, checkOut, 0); err != nil {
		t.Fatalf("dates should be free after failed payment: %v", err)
	}
}

type failingSaveFactory struct {
	memory.Factory
	err error
}

func (f failingSaveFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return failingSaveUnit{UnitOfWork: unit, err: f.err}, nil
}

type failingSaveUnit struct {
	uow.UnitOfWork
	err error
}

func (u failingSaveUnit) Bookings() domainbooking.Repository {
	return failingSaveRepo{Repository: u.UnitOfWork.Bookings(), err: u.err}
}

type failingSaveRepo struct {
	domainbooking.Repository
	err error
}

func (r failingSaveRepo) Save(context.Context, *domainbooking.Booking) error { return r.err }

func TestFailedSaveRefundsAndReleasesClaim(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	errWrite := errors.New("write failed")
	working := f.deps.UoWFactory
	f.deps.UoWFactory = failingSaveFactory{Factory: memory.Factory{Store: f.store}, err: errWrite}

	_, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if !errors.Is(err, errWrite) {
		t.Fatalf("err = %v", err)
	}
	if len(f.payments.refunds) != 1 {
		t.Fatalf("refunds = %v, want the captured charge back", f.payments.refunds)
	}
	if got := f.payments.refunds[0]; got.Amount != 368 {
		t.Fatalf("refund = %v, want 368", got)
	}
	stored, err := f.store.Bookings.ListByGuest(context.Background(), "guest-1")
	if err != nil || len(stored) != 0 {
		t.Fatalf("stored = %v, err = %v", stored, err)
	}

	f.deps.UoWFactory = working
	if _, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkIn, checkOut, 0); err != nil {
		t.Fatalf("dates should be free after failed save: %v", err)
	}
}

func TestRequestBookingFailedSaveNeedsNoRefund(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{})
	working := f.deps.UoWFactory
	f.deps.UoWFactory = failingSaveFactory{Factory: memory.Factory{Store: f.store}, err: errors.New("write failed")}

	if _, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0); err == nil {
		t.Fatal("expected save failure")
	}
	if len(f.payments.refunds) != 0 {
		t.Fatalf("refunds = %v, nothing was captured", f.payments.refunds)
	}
	f.deps.UoWFactory = working
	if _, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkIn, checkOut, 0); err != nil {
		t.Fatalf("dates should be free after failed save: %v", err)
	}
}

func TestExpiredPendingBookingFreesDates(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{})
	first, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.clock.Set(t0.Add(25 * time.Hour))
	avail := &bookinghandlers.CheckAvailabilityHandler{Deps: f.deps}
	res, err := avail.Handle(context.Background(), bookinghandlers.CheckAvailabilityQuery{ListingID: "l1", CheckIn: checkIn, CheckOut: checkOut})
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !res.Available {
		t.Fatalf("expired pending booking still occupies: %+v", res.Conflicts)
	}

	get := &bookinghandlers.GetBookingHandler{Deps: f.deps}
	view, err := get.Handle(as("guest-1", auth.RoleGuest), bookinghandlers.GetBookingQuery{BookingID: first.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Status != string(domainbooking.StatusExpired) {
		t.Fatalf("lazy status = %s", view.Status)
	}

	if _, err := f.setStatus(as("host-1", auth.RoleHost), first.ID, "confirmed"); !errors.Is(err, domainbooking.ErrInvalidStateTransition) {
		t.Fatalf("confirm expired err = %v", err)
	}
	cancel := &bookinghandlers.CancelBookingHandler{Deps: f.deps}
	if _, err := cancel.Handle(as("guest-1", auth.RoleGuest), bookinghandlers.CancelBookingCommand{BookingID: first.ID}); !errors.Is(err, domainbooking.ErrInvalidStateTransition) {
		t.Fatalf("cancel expired err = %v", err)
	}
	if len(f.payments.refunds) != 0 {
		t.Fatalf("refunds = %v", f.payments.refunds)
	}
	if _, err := f.create(as("guest-2", auth.RoleGuest), "l1", checkIn, checkOut, 0); err != nil {
		t.Fatalf("rebook: %v", err)
	}

	sweep := &bookinghandlers.ExpirePendingBookingsHandler{Deps: f.deps}
	out, err := sweep.Handle(auth.ContextWithActor(context.Background(), auth.System), bookinghandlers.ExpirePendingBookingsCommand{})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if out.Expired != 1 || out.IDs[0] != first.ID {
		t.Fatalf("sweep = %+v", out)
	}
	stored, _ := f.store.Bookings.ByID(context.Background(), domainbooking.BookingID(first.ID))
	if stored.Status != domainbooking.StatusExpired {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestConfirmThenCancelRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{Allowed: true, FeePerNight: 10, DepositPerPet: 50})
	created, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Price.PetFee != 30 || created.Price.PetDeposit != 50 {
		t.Fatalf("pet charges = %+v", created.Price)
	}

	if _, err := f.setStatus(as("guest-1", auth.RoleGuest), created.ID, "confirmed"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("guest confirm err = %v", err)
	}
	confirmed, err := f.setStatus(as("host-1", auth.RoleHost), created.ID, "confirmed")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Payment.Status != string(domainbooking.PaymentSucceeded) {
		t.Fatalf("payment = %s", confirmed.Payment.Status)
	}

	ctx := context.Background()
	f.clock.Set(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	cancel := &bookinghandlers.CancelBookingHandler{Deps: f.deps}
	res, err := cancel.Handle(as("guest-1", auth.RoleGuest), bookinghandlers.CancelBookingCommand{BookingID: created.ID, Reason: "plans changed"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Refund.Percent != 100 || res.Refund.Total.Amount != created.Price.Total {
		t.Fatalf("refund = %+v", res.Refund)
	}

	stored, _ := f.store.Bookings.ByID(ctx, domainbooking.BookingID(created.ID))
	if stored.Payment.Status != domainbooking.PaymentRefunded || stored.Payment.Refunded.Amount != created.Price.Total {
		t.Fatalf("stored payment = %+v", stored.Payment)
	}
	listing, _ := f.store.Listings.ByID(ctx, "l1")
	if len(listing.Overrides) != 1 || !listing.Overrides[0].Available {
		t.Fatalf("override not restored: %+v", listing.Overrides)
	}
	if blocks, _ := f.store.BlockedDates.Active(ctx, "l1"); len(blocks) != 0 {
		t.Fatalf("mirror not removed: %+v", blocks)
	}
	if cal, _ := f.store.Claims.Calendar(ctx, "l1"); len(cal.Claims) != 0 {
		t.Fatalf("claim not dropped: %+v", cal.Claims)
	}
	containsAll(t, f.outbox.Names(), "booking.cancelled", "availability.released")
}

func TestCancelInsideWindowFails(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	b, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Set(checkIn.Add(-12 * time.Hour))
	cancel := &bookinghandlers.CancelBookingHandler{Deps: f.deps}
	_, err = cancel.Handle(as("guest-1", auth.RoleGuest), bookinghandlers.CancelBookingCommand{BookingID: b.ID})
	if !errors.Is(err, domainbooking.ErrCancellationWindowClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefundFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	b, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.payments.refundErr = errors.New("processor down")
	cancel := &bookinghandlers.CancelBookingHandler{Deps: f.deps}
	if _, err := cancel.Handle(as("guest-1", auth.RoleGuest), bookinghandlers.CancelBookingCommand{BookingID: b.ID}); err != nil {
		t.Fatalf("cancel must not fail on refund error: %v", err)
	}
	stored, _ := f.store.Bookings.ByID(context.Background(), domainbooking.BookingID(b.ID))
	if stored.Status != domainbooking.StatusCancelled || stored.Payment.Status != domainbooking.PaymentRefundFailed {
		t.Fatalf("stored = %s / %s", stored.Status, stored.Payment.Status)
	}
}

func TestBookingVisibility(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", true, domainlistings.PetPolicy{})
	b, err := f.create(as("guest-1", auth.RoleGuest), "l1", checkIn, checkOut, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	get := &bookinghandlers.GetBookingHandler{Deps: f.deps}
	cases := []struct {
		name  string
		actor auth.Actor
		err   error
	}{
		{"guest", auth.Actor{ID: "guest-1", Role: auth.RoleGuest}, nil},
		{"host", auth.Actor{ID: "host-1", Role: auth.RoleHost}, nil},
		{"admin", auth.Actor{ID: "ops", Role: auth.RoleAdmin}, nil},
		{"stranger", auth.Actor{ID: "guest-2", Role: auth.RoleGuest}, auth.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := get.Handle(auth.ContextWithActor(context.Background(), tc.actor), bookinghandlers.GetBookingQuery{BookingID: b.ID})
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
		})
	}

	list := &bookinghandlers.ListBookingsHandler{Deps: f.deps}
	hostView, err := list.Handle(as("host-1", auth.RoleHost), bookinghandlers.ListBookingsQuery{As: "host"})
	if err != nil || len(hostView.Items) != 1 {
		t.Fatalf("host list = %+v, %v", hostView, err)
	}
	if _, err := list.Handle(as("guest-2", auth.RoleGuest), bookinghandlers.ListBookingsQuery{UserID: "guest-1"}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("foreign list err = %v", err)
	}
}

func TestCalculatePrice(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "l1", false, domainlistings.PetPolicy{})
	h := &bookinghandlers.CalculatePriceHandler{Deps: f.deps}

	quote, err := h.Handle(context.Background(), bookinghandlers.CalculatePriceQuery{ListingID: "l1", CheckIn: checkIn, CheckOut: checkOut, Guests: 2})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Breakdown.Total != 368 {
		t.Fatalf("total = %d", quote.Breakdown.Total)
	}
	if _, err := h.Handle(context.Background(), bookinghandlers.CalculatePriceQuery{ListingID: "l1", CheckIn: checkOut, CheckOut: checkIn}); !errors.Is(err, domainbooking.ErrInvalidDateRange) {
		t.Fatalf("inverted range err = %v", err)
	}
}
