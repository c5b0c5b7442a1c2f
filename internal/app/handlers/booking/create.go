package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/services/auth"
	availabilitysvc "staybook/internal/app/services/availability"
	pricingsvc "staybook/internal/app/services/pricing"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// CreateBookingCommand carries a normalized booking request. The guest is the
// actor of the request.
type CreateBookingCommand struct {
	Request         dto.BookingRequest `validate:"-"`
	ListingID       string             `json:"listing_id" validate:"required"`
	IdempotencyKeyV string             `json:"-" validate:"-"`
}

func NewCreateBookingCommand(req dto.BookingRequest, idempotencyKey string) CreateBookingCommand {
	return CreateBookingCommand{Request: req, ListingID: req.ListingID, IdempotencyKeyV: idempotencyKey}
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) AllowedRoles() []auth.Role { return []auth.Role{auth.RoleGuest, auth.RoleHost} }

type CreateBookingHandler struct {
	Deps
	IDGenerator func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	req := cmd.Request
	dr := daterange.DateRange{CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	if err := dr.Validate(); err != nil {
		return nil, domainbooking.ErrInvalidDateRange
	}

	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(req.ListingID))
	if err != nil {
		return nil, err
	}
	request := domainbooking.Request{
		Listing: listing,
		GuestID: actor.ID,
		Range:   dr,
		Guests: domainbooking.GuestCounts{
			Adults:   req.Guests.Adults,
			Children: req.Guests.Children,
			Infants:  req.Guests.Infants,
		},
		Pets: toDomainPets(req.Pets),
	}
	if err := request.Check(now); err != nil {
		return nil, err
	}

	ledger := h.ledger(unit)
	conflicts, err := ledger.Conflicts(execCtx, listing.ID, dr, now, "")
	if err != nil {
		return nil, err
	}
	if !conflicts.Empty() {
		h.overbookingPrevented(listing.ID, dr)
		return nil, domainbooking.ErrDateConflict
	}

	pets := request.Pets.Normalize()
	price, err := pricingsvc.Resolver{Configs: unit.PricingConfigs()}.Quote(execCtx, listing, dr, request.Guests.Total(), pets.Count)
	if err != nil {
		return nil, err
	}
	reference, err := domainbooking.GenerateUniqueReference(execCtx, now, unit.Bookings().ReferenceExists)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(h.newID()),
		Reference:  reference,
		Request:    request,
		Price:      price,
		Now:        now,
		PendingTTL: h.pendingTTL(),
	})
	if err != nil {
		return nil, err
	}

	if err := ledger.Claim(execCtx, b, now); err != nil {
		if errors.Is(err, domainbooking.ErrDateConflict) {
			h.overbookingPrevented(listing.ID, dr)
		}
		return nil, err
	}
	unit.AfterRollback(func(hookCtx context.Context) {
		h.abandon(hookCtx, ledger, b)
	})
	if err := h.takePayment(execCtx, b, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(execCtx, b); err != nil {
		return nil, err
	}
	if b.Status == domainbooking.StatusConfirmed {
		confirmed := b
		unit.AfterCommit(func(hookCtx context.Context) {
			ledger.OnConfirmed(hookCtx, confirmed, now)
		})
	}
	h.Publisher.Publish(execCtx, b)

	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("booking created",
		"booking_id", b.ID,
		"reference", b.Reference,
		"listing_id", b.ListingID,
		"status", b.Status,
		"total", b.Price.Total.Amount,
	)
	out := dto.MapBooking(b, now)
	return &out, nil
}

// takePayment opens the payment intent of a new booking. Instant bookings are
// charged right away; request bookings are charged on host approval.
func (h *CreateBookingHandler) takePayment(ctx context.Context, b *domainbooking.Booking, now time.Time) error {
	if h.Payments == nil {
		return nil
	}
	intent, err := h.Payments.CreateIntent(ctx, string(b.ID), b.Price.Total)
	if err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	b.AttachPaymentIntent(intent.ID, now)
	if b.Type != domainbooking.TypeInstant {
		return nil
	}
	if _, err := h.Payments.Confirm(ctx, intent.ID); err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	b.MarkPaymentSucceeded(now)
	return nil
}

// abandon undoes what a failed create leaves outside its unit: the claim, for
// stores that write through, and a payment already captured.
func (h *CreateBookingHandler) abandon(ctx context.Context, ledger *availabilitysvc.Ledger, b *domainbooking.Booking) {
	if err := ledger.DropClaim(ctx, b); err != nil {
		h.logger().Warn("claim not dropped after failed booking", "booking_id", b.ID, "error", err)
	}
	if h.Payments == nil || !b.Payment.Captured() {
		return
	}
	if _, err := h.Payments.Refund(ctx, b.Payment.IntentID, b.Price.Total); err != nil {
		h.logger().Error("payment not refunded after failed booking",
			"booking_id", b.ID,
			"intent_id", b.Payment.IntentID,
			"error", err,
		)
		return
	}
	h.logger().Info("payment refunded after failed booking", "booking_id", b.ID, "intent_id", b.Payment.IntentID)
}

func (h *CreateBookingHandler) overbookingPrevented(listingID domainlistings.ListingID, dr daterange.DateRange) {
	h.logger().Info("overlapping booking rejected", "listing_id", listingID, "check_in", dr.CheckIn, "check_out", dr.CheckOut)
}

func (h *CreateBookingHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

func toDomainPets(in dto.PetDetails) domainbooking.PetDetails {
	out := domainbooking.PetDetails{HasPets: in.HasPets, Count: in.Count}
	for _, p := range in.Pets {
		out.Pets = append(out.Pets, domainbooking.Pet{Type: p.Type, Name: p.Name})
	}
	return out
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                         = CreateBookingCommand{}
	_ auth.Restricted                                      = CreateBookingCommand{}
)
