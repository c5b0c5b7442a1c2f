package booking

import (
	"context"
	"errors"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

// ExpirePendingBookingsCommand sweeps pending bookings past their expiry.
type ExpirePendingBookingsCommand struct {
	Limit int `json:"limit" validate:"gte=0"`
}

func (c ExpirePendingBookingsCommand) Key() string { return expirePendingBookingsKey }

func (c ExpirePendingBookingsCommand) AllowedRoles() []auth.Role { return []auth.Role{auth.RoleSystem} }

// TxOptions commits every expiry on its own so one stale booking does not
// hold back the rest of the batch.
func (c ExpirePendingBookingsCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{NoTransaction: true}
}

type ExpirePendingBookingsHandler struct {
	Deps
}

func (h *ExpirePendingBookingsHandler) Handle(ctx context.Context, cmd ExpirePendingBookingsCommand) (*dto.ExpireResult, error) {
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, cmd.TxOptions())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultExpireBatch
	}
	now := h.now()
	due, err := unit.Bookings().PendingExpiredBefore(execCtx, now, limit)
	if err != nil {
		return nil, err
	}
	ledger := h.ledger(unit)
	result := &dto.ExpireResult{IDs: make([]string, 0, len(due))}
	for _, b := range due {
		if err := b.Expire(now); err != nil {
			continue
		}
		if err := unit.Bookings().Save(execCtx, b); err != nil {
			if errors.Is(err, domainbooking.ErrConcurrentUpdate) {
				h.logger().Info("booking changed during expiry sweep", "booking_id", b.ID)
				continue
			}
			return nil, err
		}
		expired := b
		unit.AfterCommit(func(hookCtx context.Context) { ledger.OnReleased(hookCtx, expired, false, now) })
		h.Publisher.Publish(execCtx, b)
		result.IDs = append(result.IDs, string(b.ID))
	}
	result.Expired = len(result.IDs)

	if err := commit(); err != nil {
		return nil, err
	}
	if result.Expired > 0 {
		h.logger().Info("pending bookings expired", "count", result.Expired)
	}
	return result, nil
}

var (
	_ commands.Handler[ExpirePendingBookingsCommand, *dto.ExpireResult] = (*ExpirePendingBookingsHandler)(nil)
	_ middleware.TxConfigurer                                           = ExpirePendingBookingsCommand{}
	_ auth.Restricted                                                   = ExpirePendingBookingsCommand{}
)
