package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

type UpdateBookingStatusCommand struct {
	BookingID string `json:"booking_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
	Reason    string `json:"reason"`
}

func (c UpdateBookingStatusCommand) Key() string { return updateBookingStatusKey }

// UpdateBookingStatusHandler drives the booking state machine. Entering
// confirmed blocks the dates; leaving the occupying states releases them.
// Both run after the status change committed and never undo it.
type UpdateBookingStatusHandler struct {
	Deps
}

func (h *UpdateBookingStatusHandler) Handle(ctx context.Context, cmd UpdateBookingStatusCommand) (*dto.Booking, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	target, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	if target == domainbooking.StatusCancelled {
		cancel := &CancelBookingHandler{Deps: h.Deps}
		res, err := cancel.Handle(ctx, CancelBookingCommand{BookingID: cmd.BookingID, Reason: cmd.Reason})
		if err != nil {
			return nil, err
		}
		return &res.Booking, nil
	}

	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	b, err := loadForActor(execCtx, unit.Bookings(), cmd.BookingID, actor)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, b, target); err != nil {
		return nil, err
	}
	now := h.now()
	if b.Expired(now) && target != domainbooking.StatusExpired {
		return nil, fmt.Errorf("%w: booking %s expired at %s", domainbooking.ErrInvalidStateTransition, b.ID, b.ExpiresAt.Format(time.RFC3339))
	}
	if !domainbooking.CanTransition(b.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", domainbooking.ErrInvalidStateTransition, b.Status, target)
	}

	ledger := h.ledger(unit)
	if target == domainbooking.StatusConfirmed {
		conflicts, err := ledger.Conflicts(execCtx, b.ListingID, b.Range, now, b.ID)
		if err != nil {
			return nil, err
		}
		if !conflicts.Empty() {
			return nil, domainbooking.ErrDateConflict
		}
		if err := h.capturePayment(execCtx, b, now); err != nil {
			return nil, err
		}
	}

	if err := b.TransitionTo(target, strings.TrimSpace(cmd.Reason), now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(execCtx, b); err != nil {
		return nil, err
	}
	switch target {
	case domainbooking.StatusConfirmed:
		unit.AfterCommit(func(hookCtx context.Context) { ledger.OnConfirmed(hookCtx, b, now) })
	case domainbooking.StatusDeclined, domainbooking.StatusExpired, domainbooking.StatusCheckedOut:
		unit.AfterCommit(func(hookCtx context.Context) { ledger.OnReleased(hookCtx, b, false, now) })
	}
	h.Publisher.Publish(execCtx, b)

	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("booking status changed", "booking_id", b.ID, "status", b.Status, "actor", actor.ID)
	out := dto.MapBooking(b, now)
	return &out, nil
}

func (h *UpdateBookingStatusHandler) capturePayment(ctx context.Context, b *domainbooking.Booking, now time.Time) error {
	if h.Payments == nil || b.Payment.IntentID == "" || b.Payment.Captured() {
		return nil
	}
	if _, err := h.Payments.Confirm(ctx, b.Payment.IntentID); err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	b.MarkPaymentSucceeded(now)
	return nil
}

// authorizeTransition lets hosts run the stay lifecycle of their bookings and
// leaves expiry to the system actor.
func authorizeTransition(actor auth.Actor, b *domainbooking.Booking, target domainbooking.Status) error {
	switch target {
	case domainbooking.StatusExpired:
		if actor.Role == auth.RoleSystem || actor.Role == auth.RoleAdmin {
			return nil
		}
	default:
		if isHostOrAdmin(actor, b) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not set status %s", auth.ErrForbidden, actor.Role, target)
}

var _ commands.Handler[UpdateBookingStatusCommand, *dto.Booking] = (*UpdateBookingStatusHandler)(nil)
