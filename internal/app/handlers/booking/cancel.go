package booking

import (
	"context"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

type CancelBookingCommand struct {
	BookingID string `json:"booking_id" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

// CancelBookingHandler cancels a pending or confirmed booking, computes the
// refund from the cancellation policy and releases the dates. The refund is
// paid out after commit; a failed payout is recorded on the booking.
type CancelBookingHandler struct {
	Deps
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.CancelBookingResult, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
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
	now := h.now()
	wasConfirmed := b.Status == domainbooking.StatusConfirmed
	refund, err := b.Cancel(strings.TrimSpace(cmd.Reason), h.cancellationWindow(), now)
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(execCtx, b); err != nil {
		return nil, err
	}
	ledger := h.ledger(unit)
	repo := unit.Bookings()
	unit.AfterCommit(func(hookCtx context.Context) {
		ledger.OnReleased(hookCtx, b, wasConfirmed, now)
		h.payRefund(hookCtx, repo, b, refund, now)
	})
	h.Publisher.Publish(execCtx, b)

	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("booking cancelled",
		"booking_id", b.ID,
		"actor", actor.ID,
		"refund_percent", refund.Percent,
		"refund_total", refund.Total.Amount,
	)
	return &dto.CancelBookingResult{
		Booking: dto.MapBooking(b, now),
		Refund:  dto.MapRefund(refund),
	}, nil
}

func (h *CancelBookingHandler) payRefund(ctx context.Context, repo domainbooking.Repository, b *domainbooking.Booking, refund domainbooking.Refund, now time.Time) {
	if h.Payments == nil || !b.Payment.Captured() || refund.Total.IsZero() {
		return
	}
	refundID, err := h.Payments.Refund(ctx, b.Payment.IntentID, refund.Total)
	if err != nil {
		h.logger().Warn("refund failed", "booking_id", b.ID, "amount", refund.Total.Amount, "error", err)
		b.MarkRefundFailed(err.Error(), now)
	} else {
		b.MarkRefunded(refundID, refund.Total, now)
	}
	if err := repo.Save(ctx, b); err != nil {
		h.logger().Warn("refund state not saved", "booking_id", b.ID, "error", err)
	}
}

var _ commands.Handler[CancelBookingCommand, *dto.CancelBookingResult] = (*CancelBookingHandler)(nil)
